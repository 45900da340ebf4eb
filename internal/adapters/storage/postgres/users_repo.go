package postgres

import (
	"context"
	"database/sql"
	"strings"

	"petsy-backend/internal/domain/users"
	"petsy-backend/internal/domain/workflow"
)

type UsersRepo struct {
	db *sql.DB
}

func NewUsersRepo(db *sql.DB) *UsersRepo {
	return &UsersRepo{db: db}
}

func (r *UsersRepo) Upsert(ctx context.Context, u users.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, role, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			updated_at = EXCLUDED.updated_at
	`,
		u.ID,
		u.Email,
		u.Name,
		string(u.Role),
		u.CreatedAt,
		u.UpdatedAt,
	)
	return err
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (users.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return users.User{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)

	return scanUser(row.Scan)
}

func (r *UsersRepo) ListByRole(ctx context.Context, role workflow.Role) ([]users.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, name, role, created_at, updated_at
		FROM users
		WHERE role = $1
		ORDER BY id ASC
	`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectUsers(rows)
}

func (r *UsersRepo) List(ctx context.Context) ([]users.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, name, role, created_at, updated_at
		FROM users
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectUsers(rows)
}

func scanUser(scan func(dest ...any) error) (users.User, error) {
	var u users.User
	var role string
	if err := scan(&u.ID, &u.Email, &u.Name, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return users.User{}, ErrNotFound
		}
		return users.User{}, err
	}
	u.Role = workflow.Role(role)
	return u, nil
}

func collectUsers(rows *sql.Rows) ([]users.User, error) {
	out := make([]users.User, 0)
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
