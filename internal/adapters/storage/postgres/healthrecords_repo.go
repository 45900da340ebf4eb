package postgres

import (
	"context"
	"database/sql"
	"strings"

	"petsy-backend/internal/domain/healthrecords"
)

type HealthRecordsRepo struct {
	db *sql.DB
}

func NewHealthRecordsRepo(db *sql.DB) *HealthRecordsRepo {
	return &HealthRecordsRepo{db: db}
}

func (r *HealthRecordsRepo) Create(ctx context.Context, rec healthrecords.HealthRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO health_records (
			id, pet_id, user_id,
			record_type, title,
			diagnosis, prescription, notes,
			care_request_id,
			date, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		rec.ID,
		rec.PetID,
		rec.UserID,
		rec.RecordType,
		rec.Title,
		rec.Diagnosis,
		rec.Prescription,
		rec.Notes,
		rec.CareRequestID,
		rec.Date,
		rec.CreatedAt,
	)
	return err
}

func (r *HealthRecordsRepo) ListByPet(ctx context.Context, petID string) ([]healthrecords.HealthRecord, error) {
	petID = strings.TrimSpace(petID)
	if petID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id, pet_id, user_id,
			record_type, title,
			diagnosis, prescription, notes,
			care_request_id,
			date, created_at
		FROM health_records
		WHERE pet_id = $1
		ORDER BY created_at DESC
	`, petID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]healthrecords.HealthRecord, 0)
	for rows.Next() {
		var rec healthrecords.HealthRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.PetID,
			&rec.UserID,
			&rec.RecordType,
			&rec.Title,
			&rec.Diagnosis,
			&rec.Prescription,
			&rec.Notes,
			&rec.CareRequestID,
			&rec.Date,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
