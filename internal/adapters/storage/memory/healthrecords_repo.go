package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"petsy-backend/internal/domain/healthrecords"
)

type healthRecordRepo struct {
	mu   sync.RWMutex
	byID map[string]healthrecords.HealthRecord
}

func NewHealthRecordRepo() healthrecords.Repository {
	return &healthRecordRepo{
		byID: make(map[string]healthrecords.HealthRecord),
	}
}

func (r *healthRecordRepo) Create(ctx context.Context, rec healthrecords.HealthRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.ID == "" {
		return errors.New("record id required")
	}
	if _, exists := r.byID[rec.ID]; exists {
		return errors.New("record already exists")
	}
	r.byID[rec.ID] = rec
	return nil
}

func (r *healthRecordRepo) ListByPet(ctx context.Context, petID string) ([]healthrecords.HealthRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]healthrecords.HealthRecord, 0)
	for _, rec := range r.byID {
		if rec.PetID == petID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
