package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"petsy-backend/internal/domain/workflow"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
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

// Ensure registra (o refresca) al actor en el directorio local. Se invoca
// desde el router con cada request autenticado: el directorio queda poblado
// a partir de tokens verificados, sin flujo de signup propio.
func (s *Service) Ensure(ctx context.Context, id string, role workflow.Role) error {
	id = strings.TrimSpace(id)
	if id == "" || role == "" {
		return ErrInvalidInput
	}

	now := s.now()
	existing, err := s.repo.GetByID(ctx, id)
	if err == nil {
		if existing.Role == role {
			return nil
		}
		existing.Role = role
		existing.UpdatedAt = now
		return s.repo.Upsert(ctx, existing)
	}

	return s.repo.Upsert(ctx, User{
		ID:        id,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, ErrInvalidInput
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// IDsByRole resuelve destinatarios para notify_role.
func (s *Service) IDsByRole(ctx context.Context, role string) ([]string, error) {
	items, err := s.repo.ListByRole(ctx, workflow.Role(role))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, u := range items {
		out = append(out, u.ID)
	}
	return out, nil
}
