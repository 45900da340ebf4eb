package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"petsy-backend/internal/domain/carerequests"
	"petsy-backend/internal/domain/workflow"
)

type careRequestRepo struct {
	mu   sync.RWMutex
	byID map[string]carerequests.CareRequest
}

func NewCareRequestRepo() carerequests.Repository {
	return &careRequestRepo{
		byID: make(map[string]carerequests.CareRequest),
	}
}

func (r *careRequestRepo) Create(ctx context.Context, cr carerequests.CareRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cr.ID == "" {
		return errors.New("care request id required")
	}
	if _, exists := r.byID[cr.ID]; exists {
		return errors.New("care request already exists")
	}
	r.byID[cr.ID] = cr
	return nil
}

func (r *careRequestRepo) GetByID(ctx context.Context, id string) (carerequests.CareRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cr, ok := r.byID[id]
	if !ok {
		return carerequests.CareRequest{}, workflow.ErrNotFound
	}
	return cr, nil
}

func (r *careRequestRepo) ListByUser(ctx context.Context, userID string) ([]carerequests.CareRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]carerequests.CareRequest, 0)
	for _, cr := range r.byID {
		if cr.UserID == userID {
			out = append(out, cr)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (r *careRequestRepo) ListForProvider(ctx context.Context, providerID string) ([]carerequests.CareRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]carerequests.CareRequest, 0)
	for _, cr := range r.byID {
		unassignedPending := cr.Status == carerequests.StatusPending && cr.ProviderID == ""
		if unassignedPending || cr.ProviderID == providerID {
			out = append(out, cr)
		}
	}
	sortByCreated(out)
	return out, nil
}

// UpdateStatus es el punto de serialización del workflow: compara contra el
// status esperado bajo el mismo lock que escribe.
func (r *careRequestRepo) UpdateStatus(ctx context.Context, id string, from, to carerequests.Status, upd carerequests.TransitionUpdate, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cr, ok := r.byID[id]
	if !ok {
		return workflow.ErrNotFound
	}
	if cr.Status != from {
		return workflow.ErrStaleState
	}

	cr.Status = to
	if upd.ProviderID != nil {
		cr.ProviderID = *upd.ProviderID
	}
	if upd.Diagnosis != nil {
		cr.Diagnosis = *upd.Diagnosis
	}
	if upd.Prescription != nil {
		cr.Prescription = *upd.Prescription
	}
	if upd.Notes != nil {
		cr.Notes = *upd.Notes
	}
	cr.UpdatedAt = at

	r.byID[id] = cr
	return nil
}

func sortByCreated(items []carerequests.CareRequest) {
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
}
