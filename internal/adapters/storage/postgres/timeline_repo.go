package postgres

import (
	"context"
	"database/sql"

	"petsy-backend/internal/domain/timeline"
	"petsy-backend/internal/domain/workflow"
)

type TimelineRepo struct {
	db *sql.DB
}

func NewTimelineRepo(db *sql.DB) *TimelineRepo {
	return &TimelineRepo{db: db}
}

func (r *TimelineRepo) Append(ctx context.Context, e timeline.Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO timeline_events (
			id, instance_type, instance_id,
			actor_id, actor_role,
			action, status, notes,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		e.ID,
		string(e.InstanceType),
		e.InstanceID,
		e.ActorID,
		string(e.ActorRole),
		e.Action,
		e.Status,
		e.Notes,
		e.CreatedAt,
	)
	return err
}

// El ORDER BY es requisito de corrección: los clientes reconstruyen el
// historial de status a partir de la secuencia.
func (r *TimelineRepo) ListByInstance(ctx context.Context, t timeline.InstanceType, instanceID string) ([]timeline.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, instance_type, instance_id, actor_id, actor_role, action, status, notes, created_at
		FROM timeline_events
		WHERE instance_type = $1 AND instance_id = $2
		ORDER BY created_at ASC, id ASC
	`, string(t), instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]timeline.Event, 0)
	for rows.Next() {
		var e timeline.Event
		var instanceType, actorRole string
		if err := rows.Scan(
			&e.ID,
			&instanceType,
			&e.InstanceID,
			&e.ActorID,
			&actorRole,
			&e.Action,
			&e.Status,
			&e.Notes,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.InstanceType = timeline.InstanceType(instanceType)
		e.ActorRole = workflow.Role(actorRole)
		out = append(out, e)
	}
	return out, rows.Err()
}
