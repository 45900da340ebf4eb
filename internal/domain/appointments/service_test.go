package appointments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"petsy-backend/internal/domain/notifications"
	"petsy-backend/internal/domain/timeline"
	"petsy-backend/internal/domain/workflow"
	"petsy-backend/internal/realtime"
)

// -------------------------
// Test fakes
// -------------------------

type testRepo struct {
	mu   sync.Mutex
	byID map[string]Appointment
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Appointment{}}
}

func (r *testRepo) Create(ctx context.Context, a Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[a.ID] = a
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return Appointment{}, workflow.ErrNotFound
	}
	return a, nil
}

func (r *testRepo) ListByUser(ctx context.Context, userID string) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Appointment, 0)
	for _, a := range r.byID {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *testRepo) ListByProvider(ctx context.Context, providerID string) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Appointment, 0)
	for _, a := range r.byID {
		if a.ProviderID == providerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *testRepo) UpdateStatus(ctx context.Context, id string, from, to Status, upd TransitionUpdate, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return workflow.ErrNotFound
	}
	if a.Status != from {
		return workflow.ErrStaleState
	}

	a.Status = to
	if upd.StatusReason != nil {
		a.StatusReason = *upd.StatusReason
	}
	a.UpdatedAt = at
	r.byID[id] = a
	return nil
}

type testPets struct {
	owners map[string]string
}

func (p *testPets) OwnerOf(ctx context.Context, petID string) (string, error) {
	owner, ok := p.owners[petID]
	if !ok {
		return "", errors.New("pet not found")
	}
	return owner, nil
}

type testTimelineRepo struct {
	mu     sync.Mutex
	events []timeline.Event
}

func (r *testTimelineRepo) Append(ctx context.Context, e timeline.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *testTimelineRepo) ListByInstance(ctx context.Context, t timeline.InstanceType, instanceID string) ([]timeline.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]timeline.Event, 0)
	for _, e := range r.events {
		if e.InstanceType == t && e.InstanceID == instanceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *testTimelineRepo) countAction(instanceID, action string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, e := range r.events {
		if e.InstanceID == instanceID && e.Action == action {
			count++
		}
	}
	return count
}

type testNotifRepo struct {
	mu    sync.Mutex
	items []notifications.Notification
}

func (r *testNotifRepo) Create(ctx context.Context, n notifications.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	return nil
}

func (r *testNotifRepo) GetByID(ctx context.Context, id string) (notifications.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.items {
		if n.ID == id {
			return n, nil
		}
	}
	return notifications.Notification{}, errors.New("not found")
}

func (r *testNotifRepo) ListByUser(ctx context.Context, userID string, limit int) ([]notifications.Notification, error) {
	return nil, nil
}

func (r *testNotifRepo) MarkRead(ctx context.Context, id string) error        { return nil }
func (r *testNotifRepo) MarkAllRead(ctx context.Context, userID string) error { return nil }

func (r *testNotifRepo) countFor(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.items {
		if n.UserID == userID {
			count++
		}
	}
	return count
}

func (r *testNotifRepo) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.items))
	for _, n := range r.items {
		out = append(out, n.Type)
	}
	return out
}

type nopPusher struct{}

func (nopPusher) SendToUser(userID string, ev realtime.Event) {}

type emptyRoles struct{}

func (emptyRoles) IDsByRole(ctx context.Context, role string) ([]string, error) { return nil, nil }

// -------------------------
// Env
// -------------------------

type testEnv struct {
	svc       *Service
	repo      *testRepo
	tlRepo    *testTimelineRepo
	notifRepo *testNotifRepo
}

func newTestEnv() *testEnv {
	repo := newTestRepo()
	tlRepo := &testTimelineRepo{}
	notifRepo := &testNotifRepo{}

	tlSvc := timeline.NewService(tlRepo)
	notifSvc := notifications.NewService(notifRepo, nopPusher{}, emptyRoles{}, nil, zerolog.Nop())
	pets := &testPets{owners: map[string]string{"pet-1": "owner-1"}}

	return &testEnv{
		svc:       NewService(repo, pets, tlSvc, notifSvc),
		repo:      repo,
		tlRepo:    tlRepo,
		notifRepo: notifRepo,
	}
}

var (
	owner  = workflow.Actor{ID: "owner-1", Role: workflow.RoleUser}
	clinic = workflow.Actor{ID: "clinic-1", Role: workflow.RoleClinic}
)

func mustBook(t *testing.T, env *testEnv) Appointment {
	t.Helper()
	a, err := env.svc.Create(context.Background(), owner, CreateInput{
		PetID:       "pet-1",
		ProviderID:  clinic.ID,
		ServiceType: "grooming",
		ScheduledAt: time.Now().Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return a
}

// -------------------------
// Tests
// -------------------------

func TestCreate_NotifiesChosenProvider(t *testing.T) {
	env := newTestEnv()

	a := mustBook(t, env)
	if a.Status != StatusPending {
		t.Fatalf("expected pending, got %s", a.Status)
	}
	if env.notifRepo.countFor(clinic.ID) != 1 {
		t.Fatalf("expected 1 provider notification on create, got %d", env.notifRepo.countFor(clinic.ID))
	}
}

// Las notificaciones de citas llevan su propio tipo durable, no el de
// care requests: el tipo es lo que el cliente usa para rutear.
func TestNotifications_CarryAppointmentType(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	a := mustBook(t, env)
	if _, err := env.svc.ConfirmFromPayment(ctx, a.ID, owner); err != nil {
		t.Fatalf("confirm from payment: %v", err)
	}
	if _, err := env.svc.Transition(ctx, a.ID, clinic, TransitionInput{Action: ActionComplete}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	types := env.notifRepo.types()
	if len(types) == 0 {
		t.Fatalf("expected notifications")
	}
	for i, typ := range types {
		if typ != "appointment" {
			t.Fatalf("notification %d: expected type appointment, got %s", i, typ)
		}
	}
}

func TestConcurrentCancelVsConfirm_ExactlyOneWins(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	a := mustBook(t, env)

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, results[0] = env.svc.Transition(ctx, a.ID, owner, TransitionInput{Action: ActionCancel})
	}()
	go func() {
		defer wg.Done()
		_, results[1] = env.svc.Transition(ctx, a.ID, clinic, TransitionInput{Action: ActionConfirm})
	}()
	wg.Wait()

	got, _ := env.repo.GetByID(ctx, a.ID)

	switch got.Status {
	case StatusCancelled:
		// El confirm perdió y reevaluó contra cancelled: edge inexistente.
		if !errors.Is(results[1], workflow.ErrInvalidTransition) && results[1] != nil {
			t.Fatalf("expected loser confirm to fail with ErrInvalidTransition or win first, got %v", results[1])
		}
		if env.tlRepo.countAction(a.ID, string(ActionCancel)) != 1 {
			t.Fatalf("expected exactly 1 cancel event")
		}
	case StatusConfirmed:
		if env.tlRepo.countAction(a.ID, string(ActionConfirm)) != 1 {
			t.Fatalf("expected exactly 1 confirm event")
		}
	case StatusCompleted:
		t.Fatalf("unexpected final status %s", got.Status)
	default:
		// cancel ganó después del confirm (confirmed -> cancelled es legal):
		// ambos eventos existen pero cada uno exactamente una vez.
		if env.tlRepo.countAction(a.ID, string(ActionCancel)) > 1 ||
			env.tlRepo.countAction(a.ID, string(ActionConfirm)) > 1 {
			t.Fatalf("expected no duplicated transition events")
		}
	}

	// Nunca dos aplicaciones del mismo edge.
	if env.tlRepo.countAction(a.ID, string(ActionCancel))+env.tlRepo.countAction(a.ID, string(ActionConfirm)) > 2 {
		t.Fatalf("a transition was applied more than once")
	}
}

func TestConfirmFromPayment_DrivesPendingToConfirmed(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	a := mustBook(t, env)

	got, err := env.svc.ConfirmFromPayment(ctx, a.ID, owner)
	if err != nil {
		t.Fatalf("confirm from payment: %v", err)
	}
	if got.Status != StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", got.Status)
	}

	// Idempotente: un segundo pago exitoso no duplica eventos.
	eventsBefore := env.tlRepo.countAction(a.ID, "payment_confirm")
	if _, err := env.svc.ConfirmFromPayment(ctx, a.ID, owner); err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if env.tlRepo.countAction(a.ID, "payment_confirm") != eventsBefore {
		t.Fatalf("expected no extra payment_confirm event on idempotent call")
	}

	// Ambas puntas notificadas una sola vez.
	if env.notifRepo.countFor(owner.ID) != 1 {
		t.Fatalf("expected 1 requester notification, got %d", env.notifRepo.countFor(owner.ID))
	}
}

func TestConfirmFromPayment_OnlyPayerOrAdmin(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	a := mustBook(t, env)

	stranger := workflow.Actor{ID: "stranger", Role: workflow.RoleUser}
	if _, err := env.svc.ConfirmFromPayment(ctx, a.ID, stranger); !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("expected NotFound for non-payer, got %v", err)
	}

	// Cancelada no puede confirmarse por pago.
	if _, err := env.svc.Transition(ctx, a.ID, owner, TransitionInput{Action: ActionCancel}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := env.svc.ConfirmFromPayment(ctx, a.ID, owner); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for cancelled appointment, got %v", err)
	}
}

func TestReject_ReasonVisibleToRequester(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	a := mustBook(t, env)

	if _, err := env.svc.Transition(ctx, a.ID, clinic, TransitionInput{
		Action:       ActionReject,
		StatusReason: "fully booked that day",
	}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	got, err := env.svc.GetForActor(ctx, a.ID, owner)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusRejected {
		t.Fatalf("expected rejected, got %s", got.Status)
	}
	if got.StatusReason != "fully booked that day" {
		t.Fatalf("expected reason visible to requester, got %q", got.StatusReason)
	}
}

func TestAuthorize_RolesOnFixedProvider(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	a := mustBook(t, env)

	// El requester no puede confirmar su propia cita.
	if _, err := env.svc.Transition(ctx, a.ID, owner, TransitionInput{Action: ActionConfirm}); !errors.Is(err, workflow.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for requester confirm, got %v", err)
	}

	// Otro provider no asignado es un extraño: NotFound.
	otherVet := workflow.Actor{ID: "vet-9", Role: workflow.RoleVet}
	if _, err := env.svc.Transition(ctx, a.ID, otherVet, TransitionInput{Action: ActionConfirm}); !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("expected NotFound for unassigned provider, got %v", err)
	}

	// El provider asignado no puede cancelar (eso es reject/no_show).
	if _, err := env.svc.Transition(ctx, a.ID, clinic, TransitionInput{Action: ActionCancel}); !errors.Is(err, workflow.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for provider cancel, got %v", err)
	}
}

func TestTerminalStates_HaveNoExits(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	a := mustBook(t, env)
	if _, err := env.svc.Transition(ctx, a.ID, clinic, TransitionInput{Action: ActionNoShow}); err != nil {
		t.Fatalf("no_show: %v", err)
	}

	for _, action := range []Action{ActionConfirm, ActionComplete, ActionCancel, ActionReject} {
		_, err := env.svc.Transition(ctx, a.ID, clinic, TransitionInput{Action: action})
		if errors.Is(err, workflow.ErrForbidden) {
			// cancel es del requester; el gate de rol corre antes que el de estado.
			continue
		}
		if !errors.Is(err, workflow.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition from no_show via %s, got %v", action, err)
		}
	}
}
