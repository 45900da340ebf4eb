package timeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"petsy-backend/internal/domain/workflow"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// Record agrega un evento de transición al timeline de la instancia.
func (s *Service) Record(ctx context.Context, t InstanceType, instanceID string, actor workflow.Actor, action, status, notes string) (Event, error) {
	if t == "" || strings.TrimSpace(instanceID) == "" {
		return Event{}, ErrInvalidInput
	}
	if strings.TrimSpace(actor.ID) == "" || actor.Role == "" {
		return Event{}, ErrInvalidInput
	}
	if strings.TrimSpace(action) == "" || strings.TrimSpace(status) == "" {
		return Event{}, ErrInvalidInput
	}

	e := Event{
		ID:           uuid.NewString(),
		InstanceType: t,
		InstanceID:   instanceID,
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		Action:       action,
		Status:       status,
		Notes:        strings.TrimSpace(notes),
		CreatedAt:    s.now(),
	}

	if err := s.repo.Append(ctx, e); err != nil {
		return Event{}, err
	}
	return e, nil
}

func (s *Service) ListByInstance(ctx context.Context, t InstanceType, instanceID string) ([]Event, error) {
	if t == "" || strings.TrimSpace(instanceID) == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByInstance(ctx, t, instanceID)
}

// Replay pliega los eventos en orden y devuelve el status resultante.
func Replay(events []Event) (string, bool) {
	if len(events) == 0 {
		return "", false
	}
	return events[len(events)-1].Status, true
}
