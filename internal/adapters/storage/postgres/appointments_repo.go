package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"petsy-backend/internal/domain/appointments"
	"petsy-backend/internal/domain/workflow"
)

type AppointmentsRepo struct {
	db *sql.DB
}

func NewAppointmentsRepo(db *sql.DB) *AppointmentsRepo {
	return &AppointmentsRepo{db: db}
}

func (r *AppointmentsRepo) Create(ctx context.Context, a appointments.Appointment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO appointments (
			id, user_id, pet_id, provider_id,
			service_type, scheduled_at, notes, status_reason,
			status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		a.ID,
		a.UserID,
		a.PetID,
		a.ProviderID,
		a.ServiceType,
		a.ScheduledAt,
		a.Notes,
		a.StatusReason,
		string(a.Status),
		a.CreatedAt,
		a.UpdatedAt,
	)
	return err
}

func (r *AppointmentsRepo) GetByID(ctx context.Context, id string) (appointments.Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return appointments.Appointment{}, workflow.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, selectAppointment+` WHERE id = $1`, id)
	return scanAppointment(row.Scan)
}

func (r *AppointmentsRepo) ListByUser(ctx context.Context, userID string) ([]appointments.Appointment, error) {
	rows, err := r.db.QueryContext(ctx, selectAppointment+`
		WHERE user_id = $1
		ORDER BY scheduled_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *AppointmentsRepo) ListByProvider(ctx context.Context, providerID string) ([]appointments.Appointment, error) {
	rows, err := r.db.QueryContext(ctx, selectAppointment+`
		WHERE provider_id = $1
		ORDER BY scheduled_at ASC
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *AppointmentsRepo) UpdateStatus(ctx context.Context, id string, from, to appointments.Status, upd appointments.TransitionUpdate, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE appointments
		SET
			status = $3,
			status_reason = COALESCE($4, status_reason),
			updated_at = $5
		WHERE id = $1 AND status = $2
	`,
		id,
		string(from),
		string(to),
		upd.StatusReason,
		at,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return workflow.ErrNotFound
		}
		return workflow.ErrStaleState
	}
	return nil
}

const selectAppointment = `
	SELECT
		id, user_id, pet_id, provider_id,
		service_type, scheduled_at, notes, status_reason,
		status, created_at, updated_at
	FROM appointments`

func scanAppointment(scan func(dest ...any) error) (appointments.Appointment, error) {
	var a appointments.Appointment
	var status string
	if err := scan(
		&a.ID,
		&a.UserID,
		&a.PetID,
		&a.ProviderID,
		&a.ServiceType,
		&a.ScheduledAt,
		&a.Notes,
		&a.StatusReason,
		&status,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return appointments.Appointment{}, workflow.ErrNotFound
		}
		return appointments.Appointment{}, err
	}
	a.Status = appointments.Status(status)
	return a, nil
}

func collectAppointments(rows *sql.Rows) ([]appointments.Appointment, error) {
	out := make([]appointments.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
