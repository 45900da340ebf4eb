package router

import (
	"context"
	"database/sql"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	mem "petsy-backend/internal/adapters/storage/memory"
	pg "petsy-backend/internal/adapters/storage/postgres"
	"petsy-backend/internal/domain/appointments"
	"petsy-backend/internal/domain/carerequests"
	"petsy-backend/internal/domain/conversations"
	"petsy-backend/internal/domain/healthrecords"
	"petsy-backend/internal/domain/notifications"
	"petsy-backend/internal/domain/orders"
	"petsy-backend/internal/domain/payments"
	"petsy-backend/internal/domain/pets"
	"petsy-backend/internal/domain/timeline"
	"petsy-backend/internal/domain/users"
	"petsy-backend/internal/domain/workflow"
	"petsy-backend/internal/middleware"
	"petsy-backend/internal/ports/auth"
	"petsy-backend/internal/realtime"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	// Opcional: broker para el fan-out de notificaciones hacia consumidores
	// externos. nil = solo write-then-push.
	Broker notifications.Publisher

	Log zerolog.Logger
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	var (
		userRepo         users.Repository
		petRepo          pets.Repository
		recordRepo       healthrecords.Repository
		notificationRepo notifications.Repository
		conversationRepo conversations.Repository
		careRequestRepo  carerequests.Repository
		appointmentRepo  appointments.Repository
		orderRepo        orders.Repository
		paymentRepo      payments.Repository
		timelineRepo     timeline.Repository
	)

	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			}
		}
	}

	if db != nil {
		userRepo = pg.NewUsersRepo(db)
		petRepo = pg.NewPetsRepo(db)
		recordRepo = pg.NewHealthRecordsRepo(db)
		notificationRepo = pg.NewNotificationsRepo(db)
		conversationRepo = pg.NewConversationsRepo(db)
		careRequestRepo = pg.NewCareRequestsRepo(db)
		appointmentRepo = pg.NewAppointmentsRepo(db)
		orderRepo = pg.NewOrdersRepo(db)
		paymentRepo = pg.NewPaymentsRepo(db)
		timelineRepo = pg.NewTimelineRepo(db)
	} else {
		userRepo = mem.NewUserRepo()
		petRepo = mem.NewPetRepo()
		recordRepo = mem.NewHealthRecordRepo()
		notificationRepo = mem.NewNotificationRepo()
		conversationRepo = mem.NewConversationRepo()
		careRequestRepo = mem.NewCareRequestRepo()
		appointmentRepo = mem.NewAppointmentRepo()
		orderRepo = mem.NewOrderRepo()
		paymentRepo = mem.NewPaymentRepo()
		timelineRepo = mem.NewTimelineRepo()
	}

	registry := realtime.NewRegistry(opts.Log)

	// Services por módulo
	usersSvc := users.NewService(userRepo)
	petsSvc := pets.NewService(petRepo)
	recordsSvc := healthrecords.NewService(recordRepo, petsSvc)
	timelineSvc := timeline.NewService(timelineRepo)
	notifSvc := notifications.NewService(notificationRepo, registry, usersSvc, opts.Broker, opts.Log)
	conversationsSvc := conversations.NewService(conversationRepo, notifSvc, registry)
	careRequestsSvc := carerequests.NewService(careRequestRepo, petsSvc, recordsSvc, timelineSvc, notifSvc)
	appointmentsSvc := appointments.NewService(appointmentRepo, petsSvc, timelineSvc, notifSvc)
	paymentsSvc := payments.NewService(paymentRepo, appointmentConfirmer{svc: appointmentsSvc})
	ordersSvc := orders.NewService(orderRepo, timelineSvc, notifSvc)

	gateway := realtime.NewGateway(registry, conversationsSvc, opts.Log)

	// Cada request autenticado refresca el directorio local de usuarios.
	r.Use(ensureUser(usersSvc))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/docs/openapi.json", func(w http.ResponseWriter, req *http.Request) {
		http.ServeFile(w, req, "docs/openapi.json")
	})
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/openapi.json")))

	// Rutas por módulo
	users.RegisterRoutes(r, usersSvc)
	pets.RegisterRoutes(r, petsSvc)
	healthrecords.RegisterRoutes(r, recordsSvc)
	notifications.RegisterRoutes(r, notifSvc)
	conversations.RegisterRoutes(r, conversationsSvc)
	carerequests.RegisterRoutes(r, careRequestsSvc)
	appointments.RegisterRoutes(r, appointmentsSvc)
	payments.RegisterRoutes(r, paymentsSvc)
	orders.RegisterRoutes(r, ordersSvc)
	orders.RegisterAdminRoutes(r, ordersSvc)

	r.Get("/ws", gateway.Handle())

	return r
}

// appointmentConfirmer adapta el servicio de citas al puerto que consume pagos.
type appointmentConfirmer struct {
	svc *appointments.Service
}

func (a appointmentConfirmer) ConfirmFromPayment(ctx context.Context, appointmentID string, payer workflow.Actor) error {
	_, err := a.svc.ConfirmFromPayment(ctx, appointmentID, payer)
	return err
}

func ensureUser(svc *users.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if claims, ok := middleware.GetClaims(req.Context()); ok && claims.UserID != "" {
				_ = svc.Ensure(req.Context(), claims.UserID, workflow.Role(claims.Role))
			}
			next.ServeHTTP(w, req)
		})
	}
}
