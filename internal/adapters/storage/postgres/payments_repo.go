package postgres

import (
	"context"
	"database/sql"
	"strings"

	"petsy-backend/internal/domain/payments"
)

type PaymentsRepo struct {
	db *sql.DB
}

func NewPaymentsRepo(db *sql.DB) *PaymentsRepo {
	return &PaymentsRepo{db: db}
}

func (r *PaymentsRepo) Create(ctx context.Context, p payments.Payment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (
			id, user_id, appointment_id, order_id,
			amount, method, status,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		p.ID,
		p.UserID,
		p.AppointmentID,
		p.OrderID,
		p.Amount,
		p.Method,
		string(p.Status),
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

func (r *PaymentsRepo) GetByID(ctx context.Context, id string) (payments.Payment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return payments.Payment{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, appointment_id, order_id, amount, method, status, created_at, updated_at
		FROM payments
		WHERE id = $1
	`, id)

	return scanPayment(row.Scan)
}

func (r *PaymentsRepo) Update(ctx context.Context, p payments.Payment) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, p.ID, string(p.Status), p.UpdatedAt)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PaymentsRepo) ListByUser(ctx context.Context, userID string) ([]payments.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, appointment_id, order_id, amount, method, status, created_at, updated_at
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]payments.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(scan func(dest ...any) error) (payments.Payment, error) {
	var p payments.Payment
	var status string
	if err := scan(
		&p.ID,
		&p.UserID,
		&p.AppointmentID,
		&p.OrderID,
		&p.Amount,
		&p.Method,
		&status,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return payments.Payment{}, ErrNotFound
		}
		return payments.Payment{}, err
	}
	p.Status = payments.Status(status)
	return p, nil
}
