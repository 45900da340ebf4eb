package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"petsy-backend/internal/domain/payments"
)

type paymentRepo struct {
	mu   sync.RWMutex
	byID map[string]payments.Payment
}

func NewPaymentRepo() payments.Repository {
	return &paymentRepo{
		byID: make(map[string]payments.Payment),
	}
}

func (r *paymentRepo) Create(ctx context.Context, p payments.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		return errors.New("payment id required")
	}
	if _, exists := r.byID[p.ID]; exists {
		return errors.New("payment already exists")
	}
	r.byID[p.ID] = p
	return nil
}

func (r *paymentRepo) GetByID(ctx context.Context, id string) (payments.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return payments.Payment{}, ErrNotFound
	}
	return p, nil
}

func (r *paymentRepo) Update(ctx context.Context, p payments.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[p.ID]; !exists {
		return ErrNotFound
	}
	r.byID[p.ID] = p
	return nil
}

func (r *paymentRepo) ListByUser(ctx context.Context, userID string) ([]payments.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]payments.Payment, 0)
	for _, p := range r.byID {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
