package appointments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"petsy-backend/internal/domain/notifications"
	"petsy-backend/internal/domain/timeline"
	"petsy-backend/internal/domain/workflow"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

// PetOwnership evita el ciclo de imports con pets.
type PetOwnership interface {
	OwnerOf(ctx context.Context, petID string) (string, error)
}

type Service struct {
	repo  Repository
	pets  PetOwnership
	tl    *timeline.Service
	notif *notifications.Service
	now   func() time.Time
}

func NewService(repo Repository, pets PetOwnership, tl *timeline.Service, notif *notifications.Service) *Service {
	return &Service{
		repo:  repo,
		pets:  pets,
		tl:    tl,
		notif: notif,
		now:   time.Now,
	}
}

type CreateInput struct {
	PetID       string
	ProviderID  string
	ServiceType string
	ScheduledAt time.Time
	Notes       string
}

func (s *Service) Create(ctx context.Context, actor workflow.Actor, in CreateInput) (Appointment, error) {
	if strings.TrimSpace(in.PetID) == "" || strings.TrimSpace(in.ProviderID) == "" {
		return Appointment{}, ErrInvalidInput
	}
	if in.ScheduledAt.IsZero() {
		return Appointment{}, ErrInvalidInput
	}

	owner, err := s.pets.OwnerOf(ctx, in.PetID)
	if err != nil || owner != actor.ID {
		return Appointment{}, ErrInvalidInput
	}

	now := s.now()
	a := Appointment{
		ID:          uuid.NewString(),
		UserID:      actor.ID,
		PetID:       in.PetID,
		ProviderID:  strings.TrimSpace(in.ProviderID),
		ServiceType: strings.TrimSpace(in.ServiceType),
		ScheduledAt: in.ScheduledAt,
		Notes:       strings.TrimSpace(in.Notes),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return Appointment{}, err
	}

	_, _ = s.tl.Record(ctx, timeline.InstanceAppointment, a.ID, actor, "create", string(a.Status), "")

	// El provider elegido se entera de la reserva.
	_, _ = s.notif.Notify(ctx, a.ProviderID, notifications.Input{
		Type:  "appointment",
		Title: "New appointment request",
		Body:  a.ServiceType,
		Data: map[string]any{
			"appointment_id": a.ID,
			"pet_id":         a.PetID,
			"status":         string(a.Status),
			"action":         "create",
		},
	})

	return a, nil
}

type TransitionInput struct {
	Action       Action
	StatusReason string
}

// Transition valida actor + edge y aplica el update condicional; en carrera
// se reevalúa una vez contra el estado nuevo.
func (s *Service) Transition(ctx context.Context, id string, actor workflow.Actor, in TransitionInput) (Appointment, error) {
	for attempt := 0; attempt < 2; attempt++ {
		a, err := s.load(ctx, id)
		if err != nil {
			return Appointment{}, err
		}

		out, err := s.apply(ctx, a, actor, in)
		if errors.Is(err, workflow.ErrStaleState) {
			continue
		}
		return out, err
	}
	return Appointment{}, workflow.ErrStaleState
}

func (s *Service) apply(ctx context.Context, a Appointment, actor workflow.Actor, in TransitionInput) (Appointment, error) {
	target, known := targetOf(in.Action)
	if !known {
		return Appointment{}, workflow.ErrValidationFailed
	}

	if err := authorize(a, actor, in.Action); err != nil {
		return Appointment{}, err
	}

	if !transitions.Can(a.Status, target) {
		return Appointment{}, workflow.ErrInvalidTransition
	}

	upd := TransitionUpdate{}
	if reason := strings.TrimSpace(in.StatusReason); reason != "" {
		upd.StatusReason = &reason
	}

	if err := s.repo.UpdateStatus(ctx, a.ID, a.Status, target, upd, s.now()); err != nil {
		return Appointment{}, err
	}

	updated, err := s.load(ctx, a.ID)
	if err != nil {
		return Appointment{}, err
	}

	_, _ = s.tl.Record(ctx, timeline.InstanceAppointment, updated.ID, actor, string(in.Action), string(updated.Status), in.StatusReason)

	s.notifyTransition(ctx, updated, actor, in.Action)

	return updated, nil
}

// ConfirmFromPayment es el entry point que usa el flujo de pagos: un pago
// exitoso lleva la cita a confirmed. Si ya está confirmed es no-op; el resto
// de los estados rechaza igual que una transición normal.
func (s *Service) ConfirmFromPayment(ctx context.Context, id string, payer workflow.Actor) (Appointment, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if a.UserID != payer.ID && !payer.IsAdmin() {
		return Appointment{}, workflow.ErrNotFound
	}
	if a.Status == StatusConfirmed {
		return a, nil
	}
	if !transitions.Can(a.Status, StatusConfirmed) {
		return Appointment{}, workflow.ErrInvalidTransition
	}

	if err := s.repo.UpdateStatus(ctx, a.ID, a.Status, StatusConfirmed, TransitionUpdate{}, s.now()); err != nil {
		return Appointment{}, err
	}

	updated, err := s.load(ctx, a.ID)
	if err != nil {
		return Appointment{}, err
	}

	_, _ = s.tl.Record(ctx, timeline.InstanceAppointment, updated.ID, payer, "payment_confirm", string(updated.Status), "")

	// Confirmación automática: se enteran ambas puntas.
	data := map[string]any{
		"appointment_id": updated.ID,
		"status":         string(updated.Status),
		"action":         "payment_confirm",
	}
	_, _ = s.notif.Notify(ctx, updated.ProviderID, notifications.Input{
		Type:  "appointment",
		Title: "Appointment confirmed",
		Body:  updated.ServiceType,
		Data:  data,
	})
	_, _ = s.notif.Notify(ctx, updated.UserID, notifications.Input{
		Type:  "appointment",
		Title: "Appointment confirmed",
		Body:  updated.ServiceType,
		Data:  data,
	})

	return updated, nil
}

// authorize: cancel es del requester; confirm/complete/reject/no_show del
// provider asignado. Admin pasa el gate de ownership, nunca el de estado.
// Actores ajenos reciben NotFound.
func authorize(a Appointment, actor workflow.Actor, action Action) error {
	if actor.IsAdmin() {
		return nil
	}

	participant := actor.ID == a.UserID || actor.ID == a.ProviderID

	switch action {
	case ActionCancel:
		if actor.ID == a.UserID {
			return nil
		}
	case ActionConfirm, ActionComplete, ActionReject, ActionNoShow:
		if actor.IsProvider() && actor.ID == a.ProviderID {
			return nil
		}
	}

	if participant {
		return workflow.ErrForbidden
	}
	return workflow.ErrNotFound
}

func (s *Service) notifyTransition(ctx context.Context, a Appointment, actor workflow.Actor, action Action) {
	data := map[string]any{
		"appointment_id": a.ID,
		"pet_id":         a.PetID,
		"status":         string(a.Status),
		"action":         string(action),
	}
	if a.StatusReason != "" {
		data["status_reason"] = a.StatusReason
	}

	if action == ActionCancel {
		_, _ = s.notif.Notify(ctx, a.ProviderID, notifications.Input{
			Type:  "appointment",
			Title: "Appointment cancelled",
			Body:  a.ServiceType,
			Data:  data,
		})
		return
	}

	titles := map[Action]string{
		ActionConfirm:  "Appointment confirmed",
		ActionComplete: "Appointment completed",
		ActionReject:   "Appointment rejected",
		ActionNoShow:   "Appointment marked as no-show",
	}
	_, _ = s.notif.Notify(ctx, a.UserID, notifications.Input{
		Type:  "appointment",
		Title: titles[action],
		Body:  a.ServiceType,
		Data:  data,
	})
}

func (s *Service) GetForActor(ctx context.Context, id string, actor workflow.Actor) (Appointment, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if !canSee(a, actor) {
		return Appointment{}, workflow.ErrNotFound
	}
	return a, nil
}

func (s *Service) Timeline(ctx context.Context, id string, actor workflow.Actor) ([]timeline.Event, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(a, actor) {
		return nil, workflow.ErrNotFound
	}
	return s.tl.ListByInstance(ctx, timeline.InstanceAppointment, id)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Appointment, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) ListByProvider(ctx context.Context, providerID string) ([]Appointment, error) {
	return s.repo.ListByProvider(ctx, providerID)
}

func canSee(a Appointment, actor workflow.Actor) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.ID == a.UserID || actor.ID == a.ProviderID
}

func (s *Service) load(ctx context.Context, id string) (Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Appointment{}, workflow.ErrNotFound
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Appointment{}, workflow.ErrNotFound
	}
	return a, nil
}
