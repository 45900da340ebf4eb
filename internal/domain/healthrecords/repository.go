package healthrecords

import "context"

type Repository interface {
	Create(ctx context.Context, rec HealthRecord) error

	// ListByPet devuelve los records más recientes primero.
	ListByPet(ctx context.Context, petID string) ([]HealthRecord, error)
}
