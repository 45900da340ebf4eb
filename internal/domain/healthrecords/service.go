package healthrecords

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
	ErrNotFound     = errors.New("not found")
)

// PetOwnership evita el ciclo de imports con pets.
type PetOwnership interface {
	OwnerOf(ctx context.Context, petID string) (string, error)
}

type Service struct {
	repo Repository
	pets PetOwnership
	now  func() time.Time
}

func NewService(repo Repository, pets PetOwnership) *Service {
	return &Service{
		repo: repo,
		pets: pets,
		now:  time.Now,
	}
}

type CreateInput struct {
	PetID         string
	RecordType    string
	Title         string
	Diagnosis     string
	Prescription  string
	Notes         string
	CareRequestID string
	Date          time.Time
}

func (s *Service) Create(ctx context.Context, in CreateInput) (HealthRecord, error) {
	if strings.TrimSpace(in.PetID) == "" || strings.TrimSpace(in.RecordType) == "" {
		return HealthRecord{}, ErrInvalidInput
	}

	owner, err := s.pets.OwnerOf(ctx, in.PetID)
	if err != nil {
		return HealthRecord{}, ErrNotFound
	}

	now := s.now()
	date := in.Date
	if date.IsZero() {
		date = now
	}

	rec := HealthRecord{
		ID:            uuid.NewString(),
		PetID:         in.PetID,
		UserID:        owner,
		RecordType:    strings.TrimSpace(in.RecordType),
		Title:         strings.TrimSpace(in.Title),
		Diagnosis:     strings.TrimSpace(in.Diagnosis),
		Prescription:  strings.TrimSpace(in.Prescription),
		Notes:         strings.TrimSpace(in.Notes),
		CareRequestID: strings.TrimSpace(in.CareRequestID),
		Date:          date,
		CreatedAt:     now,
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return HealthRecord{}, err
	}
	return rec, nil
}

// ListForActor devuelve el historial solo al dueño de la mascota o a un admin.
// Para cualquier otro actor la respuesta es NotFound: no filtramos existencia.
func (s *Service) ListForActor(ctx context.Context, petID string, actor workflow.Actor) ([]HealthRecord, error) {
	owner, err := s.pets.OwnerOf(ctx, petID)
	if err != nil {
		return nil, ErrNotFound
	}
	if owner != actor.ID && !actor.IsAdmin() {
		return nil, ErrNotFound
	}
	return s.repo.ListByPet(ctx, petID)
}
