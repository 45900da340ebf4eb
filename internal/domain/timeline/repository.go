package timeline

import "context"

type Repository interface {
	Append(ctx context.Context, e Event) error

	// ListByInstance devuelve los eventos en orden de creación ascendente.
	// El orden es requisito de corrección: los clientes reconstruyen el
	// historial de status a partir de él.
	ListByInstance(ctx context.Context, t InstanceType, instanceID string) ([]Event, error)
}
