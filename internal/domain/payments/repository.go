package payments

import "context"

type Repository interface {
	Create(ctx context.Context, p Payment) error
	GetByID(ctx context.Context, id string) (Payment, error)
	Update(ctx context.Context, p Payment) error
	ListByUser(ctx context.Context, userID string) ([]Payment, error)
}
