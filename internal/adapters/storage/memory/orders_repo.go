package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"petsy-backend/internal/domain/orders"
	"petsy-backend/internal/domain/workflow"
)

type orderRepo struct {
	mu   sync.RWMutex
	byID map[string]orders.Order
}

func NewOrderRepo() orders.Repository {
	return &orderRepo{
		byID: make(map[string]orders.Order),
	}
}

func (r *orderRepo) Create(ctx context.Context, o orders.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o.ID == "" {
		return errors.New("order id required")
	}
	if _, exists := r.byID[o.ID]; exists {
		return errors.New("order already exists")
	}
	r.byID[o.ID] = o
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (orders.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.byID[id]
	if !ok {
		return orders.Order{}, workflow.ErrNotFound
	}
	return o, nil
}

func (r *orderRepo) ListByBuyer(ctx context.Context, buyerID string) ([]orders.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]orders.Order, 0)
	for _, o := range r.byID {
		if o.BuyerUserID == buyerID {
			out = append(out, o)
		}
	}
	sortOrders(out)
	return out, nil
}

func (r *orderRepo) ListBySeller(ctx context.Context, sellerID string) ([]orders.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]orders.Order, 0)
	for _, o := range r.byID {
		if o.SellerUserID == sellerID {
			out = append(out, o)
		}
	}
	sortOrders(out)
	return out, nil
}

func (r *orderRepo) List(ctx context.Context) ([]orders.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]orders.Order, 0, len(r.byID))
	for _, o := range r.byID {
		out = append(out, o)
	}
	sortOrders(out)
	return out, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id string, from, to orders.Status, upd orders.TransitionUpdate, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.byID[id]
	if !ok {
		return workflow.ErrNotFound
	}
	if o.Status != from {
		return workflow.ErrStaleState
	}

	o.Status = to
	if upd.StatusReason != nil {
		o.StatusReason = *upd.StatusReason
	}
	o.UpdatedAt = at

	r.byID[id] = o
	return nil
}

func sortOrders(items []orders.Order) {
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
}
