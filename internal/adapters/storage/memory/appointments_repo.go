package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"petsy-backend/internal/domain/appointments"
	"petsy-backend/internal/domain/workflow"
)

type appointmentRepo struct {
	mu   sync.RWMutex
	byID map[string]appointments.Appointment
}

func NewAppointmentRepo() appointments.Repository {
	return &appointmentRepo{
		byID: make(map[string]appointments.Appointment),
	}
}

func (r *appointmentRepo) Create(ctx context.Context, a appointments.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == "" {
		return errors.New("appointment id required")
	}
	if _, exists := r.byID[a.ID]; exists {
		return errors.New("appointment already exists")
	}
	r.byID[a.ID] = a
	return nil
}

func (r *appointmentRepo) GetByID(ctx context.Context, id string) (appointments.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return appointments.Appointment{}, workflow.ErrNotFound
	}
	return a, nil
}

func (r *appointmentRepo) ListByUser(ctx context.Context, userID string) ([]appointments.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]appointments.Appointment, 0)
	for _, a := range r.byID {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (r *appointmentRepo) ListByProvider(ctx context.Context, providerID string) ([]appointments.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]appointments.Appointment, 0)
	for _, a := range r.byID {
		if a.ProviderID == providerID {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (r *appointmentRepo) UpdateStatus(ctx context.Context, id string, from, to appointments.Status, upd appointments.TransitionUpdate, at time.Time) error {
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

func sortAppointments(items []appointments.Appointment) {
	sort.Slice(items, func(i, j int) bool { return items[i].ScheduledAt.Before(items[j].ScheduledAt) })
}
