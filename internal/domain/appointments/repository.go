package appointments

import (
	"context"
	"time"
)

// TransitionUpdate son los campos que acompañan una transición. nil = no tocar.
type TransitionUpdate struct {
	StatusReason *string
}

type Repository interface {
	Create(ctx context.Context, a Appointment) error
	GetByID(ctx context.Context, id string) (Appointment, error)
	ListByUser(ctx context.Context, userID string) ([]Appointment, error)
	ListByProvider(ctx context.Context, providerID string) ([]Appointment, error)

	// UpdateStatus aplica solo si el status actual es `from`. Si otra
	// transición ganó la carrera devuelve workflow.ErrStaleState; si el id
	// no existe, workflow.ErrNotFound.
	UpdateStatus(ctx context.Context, id string, from, to Status, upd TransitionUpdate, at time.Time) error
}
