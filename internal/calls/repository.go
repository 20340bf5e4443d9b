package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository is the persistence contract for call records.
//
// Finish is the linchpin: it transitions active -> terminal as ONE
// conditional update. Exactly one caller wins; everyone after gets
// ErrAlreadyTerminal. The settlement debit hangs off that guarantee.

type Repository interface {
	Insert(ctx context.Context, c Call) error
	Get(ctx context.Context, callID string) (Call, error)
	// Finish moves an active call to the given terminal status, recording
	// duration and end time. ErrNotFound for unknown ids,
	// ErrAlreadyTerminal when the call already left active.
	Finish(ctx context.Context, callID string, status CallStatus, durationSeconds int, endedAt time.Time) (Call, error)
	List(ctx context.Context, f ListFilter) ([]Call, int, error)
}

// PostgresRepo implements Repository on Postgres.
//
// Assumed table: calls (call_id primary key, voucher_id nullable).

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const callColumns = `
call_id, voucher_id, device_id, phone_number, country_code, call_type,
status, duration_seconds, started_at, ended_at`

func (r *PostgresRepo) Insert(ctx context.Context, c Call) error {
	const q = `
INSERT INTO calls (` + callColumns + `
) VALUES (
  $1,NULLIF($2,''),NULLIF($3,''),$4,$5,$6,$7,$8,$9,$10
)
`
	_, err := r.db.ExecContext(ctx, q,
		c.CallID,
		c.VoucherID,
		c.DeviceID,
		c.PhoneNumber,
		c.CountryCode,
		c.CallType,
		c.Status,
		c.DurationSeconds,
		c.StartedAt,
		c.EndedAt,
	)
	return err
}

func scanCall(row *sql.Row) (Call, error) {
	var c Call
	var voucherID, deviceID sql.NullString
	err := row.Scan(
		&c.CallID,
		&voucherID,
		&deviceID,
		&c.PhoneNumber,
		&c.CountryCode,
		&c.CallType,
		&c.Status,
		&c.DurationSeconds,
		&c.StartedAt,
		&c.EndedAt,
	)
	if err != nil {
		return Call{}, err
	}
	c.VoucherID = voucherID.String
	c.DeviceID = deviceID.String
	return c, nil
}

func (r *PostgresRepo) Get(ctx context.Context, callID string) (Call, error) {
	const q = `SELECT ` + callColumns + ` FROM calls WHERE call_id = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, callID))
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, ErrNotFound
	}
	return c, err
}

func (r *PostgresRepo) Finish(ctx context.Context, callID string, status CallStatus, durationSeconds int, endedAt time.Time) (Call, error) {
	// Conditional transition: only an active row moves. Zero rows means the
	// call either does not exist or is already terminal, disambiguated below.
	const q = `
UPDATE calls
SET status = $2, duration_seconds = $3, ended_at = $4
WHERE call_id = $1 AND status = 'active'
RETURNING ` + callColumns + `
`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, callID, status, durationSeconds, endedAt))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.Get(ctx, callID); getErr != nil {
			return Call{}, getErr
		}
		return Call{}, ErrAlreadyTerminal
	}
	return c, err
}

func (r *PostgresRepo) List(ctx context.Context, f ListFilter) ([]Call, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE ($1::text IS NULL OR voucher_id = $1)
  AND ($2::text IS NULL OR status = $2)
ORDER BY started_at DESC
LIMIT $3 OFFSET $4
`
	var voucherID, status any
	if f.VoucherID != "" {
		voucherID = f.VoucherID
	}
	if f.Status != "" {
		status = string(f.Status)
	}

	rows, err := r.db.QueryContext(ctx, q, voucherID, status, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		var c Call
		var vID, dID sql.NullString
		if err := rows.Scan(
			&c.CallID, &vID, &dID, &c.PhoneNumber, &c.CountryCode, &c.CallType,
			&c.Status, &c.DurationSeconds, &c.StartedAt, &c.EndedAt,
		); err != nil {
			return nil, 0, err
		}
		c.VoucherID = vID.String
		c.DeviceID = dID.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	const cq = `
SELECT COUNT(*) FROM calls
WHERE ($1::text IS NULL OR voucher_id = $1)
  AND ($2::text IS NULL OR status = $2)
`
	var total int
	if err := r.db.QueryRowContext(ctx, cq, voucherID, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
