package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo persists audit events.
//
// Assumed table:
//   audit_events (id, action, entity_type, entity_id, actor_user_id,
//                 device_id, details, created_at)
// with an INSERT-only policy.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, action, entity_type, entity_id, actor_user_id, device_id, details, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.Action,
		e.EntityType,
		e.EntityID,
		e.ActorUserID,
		e.DeviceID,
		e.Details,
		e.CreatedAt,
	)
	return err
}
