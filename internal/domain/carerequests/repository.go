package carerequests

import (
	"context"
	"time"
)

// TransitionUpdate son los campos que acompañan una transición.
// nil = no tocar.
type TransitionUpdate struct {
	ProviderID   *string
	Diagnosis    *string
	Prescription *string
	Notes        *string
}

type Repository interface {
	Create(ctx context.Context, cr CareRequest) error
	GetByID(ctx context.Context, id string) (CareRequest, error)
	ListByUser(ctx context.Context, userID string) ([]CareRequest, error)

	// ListForProvider: pendientes sin asignar + las asignadas al provider.
	ListForProvider(ctx context.Context, providerID string) ([]CareRequest, error)

	// UpdateStatus es el update condicional: aplica solo si el status actual
	// es `from`. Si otra transición ganó la carrera devuelve
	// workflow.ErrStaleState; si el id no existe, workflow.ErrNotFound.
	UpdateStatus(ctx context.Context, id string, from, to Status, upd TransitionUpdate, at time.Time) error
}
