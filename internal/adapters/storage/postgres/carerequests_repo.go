package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"petsy-backend/internal/domain/carerequests"
	"petsy-backend/internal/domain/workflow"
)

type CareRequestsRepo struct {
	db *sql.DB
}

func NewCareRequestsRepo(db *sql.DB) *CareRequestsRepo {
	return &CareRequestsRepo{db: db}
}

func (r *CareRequestsRepo) Create(ctx context.Context, cr carerequests.CareRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO care_requests (
			id, user_id, pet_id, provider_id,
			title, description, priority,
			diagnosis, prescription, notes,
			status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		cr.ID,
		cr.UserID,
		cr.PetID,
		cr.ProviderID,
		cr.Title,
		cr.Description,
		cr.Priority,
		cr.Diagnosis,
		cr.Prescription,
		cr.Notes,
		string(cr.Status),
		cr.CreatedAt,
		cr.UpdatedAt,
	)
	return err
}

func (r *CareRequestsRepo) GetByID(ctx context.Context, id string) (carerequests.CareRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return carerequests.CareRequest{}, workflow.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, selectCareRequest+` WHERE id = $1`, id)
	return scanCareRequest(row.Scan)
}

func (r *CareRequestsRepo) ListByUser(ctx context.Context, userID string) ([]carerequests.CareRequest, error) {
	rows, err := r.db.QueryContext(ctx, selectCareRequest+`
		WHERE user_id = $1
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectCareRequests(rows)
}

func (r *CareRequestsRepo) ListForProvider(ctx context.Context, providerID string) ([]carerequests.CareRequest, error) {
	rows, err := r.db.QueryContext(ctx, selectCareRequest+`
		WHERE (status = 'pending' AND provider_id = '') OR provider_id = $1
		ORDER BY created_at ASC
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectCareRequests(rows)
}

// UpdateStatus es el update condicional: el WHERE sobre status garantiza que
// a lo sumo una transición gana desde un estado dado.
func (r *CareRequestsRepo) UpdateStatus(ctx context.Context, id string, from, to carerequests.Status, upd carerequests.TransitionUpdate, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE care_requests
		SET
			status = $3,
			provider_id = COALESCE($4, provider_id),
			diagnosis = COALESCE($5, diagnosis),
			prescription = COALESCE($6, prescription),
			notes = COALESCE($7, notes),
			updated_at = $8
		WHERE id = $1 AND status = $2
	`,
		id,
		string(from),
		string(to),
		upd.ProviderID,
		upd.Diagnosis,
		upd.Prescription,
		upd.Notes,
		at,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// Perdimos la carrera o el id no existe; distinguimos con una lectura.
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM care_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return workflow.ErrNotFound
		}
		return workflow.ErrStaleState
	}
	return nil
}

const selectCareRequest = `
	SELECT
		id, user_id, pet_id, provider_id,
		title, description, priority,
		diagnosis, prescription, notes,
		status, created_at, updated_at
	FROM care_requests`

func scanCareRequest(scan func(dest ...any) error) (carerequests.CareRequest, error) {
	var cr carerequests.CareRequest
	var status string
	if err := scan(
		&cr.ID,
		&cr.UserID,
		&cr.PetID,
		&cr.ProviderID,
		&cr.Title,
		&cr.Description,
		&cr.Priority,
		&cr.Diagnosis,
		&cr.Prescription,
		&cr.Notes,
		&status,
		&cr.CreatedAt,
		&cr.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return carerequests.CareRequest{}, workflow.ErrNotFound
		}
		return carerequests.CareRequest{}, err
	}
	cr.Status = carerequests.Status(status)
	return cr, nil
}

func collectCareRequests(rows *sql.Rows) ([]carerequests.CareRequest, error) {
	out := make([]carerequests.CareRequest, 0)
	for rows.Next() {
		cr, err := scanCareRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}
