package carerequests

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"petsy-backend/internal/domain/healthrecords"
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
	repo    Repository
	pets    PetOwnership
	records *healthrecords.Service
	tl      *timeline.Service
	notif   *notifications.Service
	now     func() time.Time
}

func NewService(repo Repository, pets PetOwnership, records *healthrecords.Service, tl *timeline.Service, notif *notifications.Service) *Service {
	return &Service{
		repo:    repo,
		pets:    pets,
		records: records,
		tl:      tl,
		notif:   notif,
		now:     time.Now,
	}
}

type CreateInput struct {
	PetID       string
	Title       string
	Description string
	Priority    string
}

func (s *Service) Create(ctx context.Context, actor workflow.Actor, in CreateInput) (CareRequest, error) {
	if strings.TrimSpace(in.PetID) == "" || strings.TrimSpace(in.Title) == "" {
		return CareRequest{}, ErrInvalidInput
	}

	// El request es siempre sobre una mascota propia.
	owner, err := s.pets.OwnerOf(ctx, in.PetID)
	if err != nil || owner != actor.ID {
		return CareRequest{}, ErrInvalidInput
	}

	priority := strings.TrimSpace(in.Priority)
	if priority == "" {
		priority = "medium"
	}

	now := s.now()
	cr := CareRequest{
		ID:          uuid.NewString(),
		UserID:      actor.ID,
		PetID:       in.PetID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Priority:    priority,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, cr); err != nil {
		return CareRequest{}, err
	}

	_, _ = s.tl.Record(ctx, timeline.InstanceCareRequest, cr.ID, actor, "create", string(cr.Status), "")

	// Los admins se enteran de cada solicitud nueva.
	_ = s.notif.NotifyRole(ctx, string(workflow.RoleAdmin), notifications.Input{
		Type:  "care_request",
		Title: "New care request",
		Body:  cr.Title,
		Data: map[string]any{
			"care_request_id": cr.ID,
			"pet_id":          cr.PetID,
			"status":          string(cr.Status),
			"action":          "create",
		},
	})

	return cr, nil
}

type TransitionInput struct {
	Action       Action
	Diagnosis    string
	Prescription string
	Notes        string
}

// Transition valida actor + edge, aplica el update condicional y dispara
// timeline + notificaciones. Si el update pierde contra una transición
// concurrente se reevalúa una vez contra el estado nuevo.
func (s *Service) Transition(ctx context.Context, id string, actor workflow.Actor, in TransitionInput) (CareRequest, error) {
	for attempt := 0; attempt < 2; attempt++ {
		cr, err := s.load(ctx, id)
		if err != nil {
			return CareRequest{}, err
		}

		out, err := s.apply(ctx, cr, actor, in)
		if errors.Is(err, workflow.ErrStaleState) {
			continue
		}
		return out, err
	}
	return CareRequest{}, workflow.ErrStaleState
}

func (s *Service) apply(ctx context.Context, cr CareRequest, actor workflow.Actor, in TransitionInput) (CareRequest, error) {
	target, known := targetOf(in.Action)
	if !known {
		return CareRequest{}, workflow.ErrValidationFailed
	}

	if err := authorize(cr, actor, in.Action); err != nil {
		return CareRequest{}, err
	}

	// Fail closed: primero validez del edge, después payload, después write.
	if !transitions.Can(cr.Status, target) {
		return CareRequest{}, workflow.ErrInvalidTransition
	}

	upd := TransitionUpdate{}
	switch in.Action {
	case ActionAccept:
		provider := actor.ID
		upd.ProviderID = &provider
	case ActionComplete:
		// Edge legal pero payload obligatorio: diagnosis + prescription.
		if strings.TrimSpace(in.Diagnosis) == "" || strings.TrimSpace(in.Prescription) == "" {
			return CareRequest{}, workflow.ErrValidationFailed
		}
		dx := strings.TrimSpace(in.Diagnosis)
		rx := strings.TrimSpace(in.Prescription)
		notes := strings.TrimSpace(in.Notes)
		upd.Diagnosis = &dx
		upd.Prescription = &rx
		upd.Notes = &notes
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, cr.ID, cr.Status, target, upd, now); err != nil {
		return CareRequest{}, err
	}

	updated, err := s.load(ctx, cr.ID)
	if err != nil {
		return CareRequest{}, err
	}

	// Side effect propio de este variant: al completar se sincroniza el
	// historial clínico de la mascota en la misma operación lógica. Si el
	// write derivado falla, la transición no se reporta exitosa.
	if in.Action == ActionComplete {
		if _, err := s.records.Create(ctx, healthrecords.CreateInput{
			PetID:         updated.PetID,
			RecordType:    "care_request",
			Title:         updated.Title,
			Diagnosis:     updated.Diagnosis,
			Prescription:  updated.Prescription,
			Notes:         updated.Notes,
			CareRequestID: updated.ID,
			Date:          now,
		}); err != nil {
			return CareRequest{}, err
		}
	}

	_, _ = s.tl.Record(ctx, timeline.InstanceCareRequest, updated.ID, actor, string(in.Action), string(updated.Status), in.Notes)

	s.notifyTransition(ctx, updated, actor, in.Action)

	return updated, nil
}

// authorize implementa el guard del §role-gated: requester para cancel,
// provider elegible/asignado para accept/start/complete, admin bypass de
// ownership (nunca de validez de estado). Para actores ajenos el error es
// NotFound: la existencia del request es información de sus participantes.
func authorize(cr CareRequest, actor workflow.Actor, action Action) error {
	if actor.IsAdmin() {
		return nil
	}

	participant := actor.ID == cr.UserID || (cr.ProviderID != "" && actor.ID == cr.ProviderID)

	switch action {
	case ActionCancel:
		if actor.ID == cr.UserID {
			return nil
		}
	case ActionAccept:
		if actor.IsProvider() && (cr.ProviderID == "" || cr.ProviderID == actor.ID) {
			return nil
		}
	case ActionStart, ActionComplete:
		if actor.IsProvider() && cr.ProviderID == actor.ID {
			return nil
		}
	}

	if participant {
		return workflow.ErrForbidden
	}
	return workflow.ErrNotFound
}

func (s *Service) notifyTransition(ctx context.Context, cr CareRequest, actor workflow.Actor, action Action) {
	data := map[string]any{
		"care_request_id": cr.ID,
		"pet_id":          cr.PetID,
		"status":          string(cr.Status),
		"action":          string(action),
	}

	if action == ActionCancel {
		// Cambio del requester: se entera el provider asignado, o los admins
		// si nadie tomó el request todavía.
		in := notifications.Input{
			Type:  "care_request",
			Title: "Care request cancelled",
			Body:  cr.Title,
			Data:  data,
		}
		if cr.ProviderID != "" && cr.ProviderID != actor.ID {
			_, _ = s.notif.Notify(ctx, cr.ProviderID, in)
		} else {
			_ = s.notif.NotifyRole(ctx, string(workflow.RoleAdmin), in)
		}
		return
	}

	// Cambios del provider: se entera el requester.
	titles := map[Action]string{
		ActionAccept:   "Care request accepted",
		ActionStart:    "Care request in progress",
		ActionComplete: "Care request completed",
	}
	_, _ = s.notif.Notify(ctx, cr.UserID, notifications.Input{
		Type:  "care_request",
		Title: titles[action],
		Body:  cr.Title,
		Data:  data,
	})
}

// GetForActor aplica el mismo gate de visibilidad que las transiciones.
func (s *Service) GetForActor(ctx context.Context, id string, actor workflow.Actor) (CareRequest, error) {
	cr, err := s.load(ctx, id)
	if err != nil {
		return CareRequest{}, err
	}
	if !canSee(cr, actor) {
		return CareRequest{}, workflow.ErrNotFound
	}
	return cr, nil
}

// Timeline devuelve los eventos en orden de creación, solo para
// requester, provider (actual o pasado vía eventos) o admin.
func (s *Service) Timeline(ctx context.Context, id string, actor workflow.Actor) ([]timeline.Event, error) {
	cr, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !canSee(cr, actor) {
		// Providers que participaron antes de una reasignación siguen viendo
		// la historia: aparecen como actores en el timeline.
		events, err := s.tl.ListByInstance(ctx, timeline.InstanceCareRequest, id)
		if err != nil {
			return nil, workflow.ErrNotFound
		}
		for _, e := range events {
			if e.ActorID == actor.ID {
				return events, nil
			}
		}
		return nil, workflow.ErrNotFound
	}

	return s.tl.ListByInstance(ctx, timeline.InstanceCareRequest, id)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]CareRequest, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) ListForProvider(ctx context.Context, providerID string) ([]CareRequest, error) {
	return s.repo.ListForProvider(ctx, providerID)
}

func canSee(cr CareRequest, actor workflow.Actor) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.ID == cr.UserID || (cr.ProviderID != "" && actor.ID == cr.ProviderID)
}

func (s *Service) load(ctx context.Context, id string) (CareRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return CareRequest{}, workflow.ErrNotFound
	}
	cr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return CareRequest{}, workflow.ErrNotFound
	}
	return cr, nil
}
