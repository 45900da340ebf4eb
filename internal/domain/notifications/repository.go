package notifications

import "context"

type Repository interface {
	Create(ctx context.Context, n Notification) error
	GetByID(ctx context.Context, id string) (Notification, error)

	// ListByUser devuelve las más recientes primero.
	ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error)

	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) error
}
