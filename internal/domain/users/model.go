package users

import (
	"time"

	"petsy-backend/internal/domain/workflow"
)

// User es la proyección mínima de identidad que el core necesita:
// id + role para guards y fan-out por rol. El resto del perfil vive
// en el proveedor de auth.
type User struct {
	ID    string
	Email string
	Name  string
	Role  workflow.Role

	CreatedAt time.Time
	UpdatedAt time.Time
}
