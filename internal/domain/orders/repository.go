package orders

import (
	"context"
	"time"
)

// TransitionUpdate son los campos que acompañan una transición. nil = no tocar.
type TransitionUpdate struct {
	StatusReason *string
}

type Repository interface {
	Create(ctx context.Context, o Order) error
	GetByID(ctx context.Context, id string) (Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]Order, error)
	ListBySeller(ctx context.Context, sellerID string) ([]Order, error)
	List(ctx context.Context) ([]Order, error)

	// UpdateStatus aplica solo si el status actual es `from`. Si otra
	// transición ganó la carrera devuelve workflow.ErrStaleState; si el id
	// no existe, workflow.ErrNotFound.
	UpdateStatus(ctx context.Context, id string, from, to Status, upd TransitionUpdate, at time.Time) error
}
