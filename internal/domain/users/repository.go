package users

import (
	"context"

	"petsy-backend/internal/domain/workflow"
)

type Repository interface {
	Upsert(ctx context.Context, u User) error
	GetByID(ctx context.Context, id string) (User, error)
	ListByRole(ctx context.Context, role workflow.Role) ([]User, error)
	List(ctx context.Context) ([]User, error)
}
