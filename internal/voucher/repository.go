package voucher

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"callcard-platform/pkg/utils"

	"github.com/jackc/pgx/v5/pgconn"
)

// Repository is the persistence contract for the voucher ledger.
//
// Implementations must provide storage-level atomicity:
// - Insert fails on duplicate code via a unique constraint, not a pre-check.
// - BindDevice and Debit are single conditional updates; two of them on the
//   same voucher id serialize, different ids never block each other.
// - InsertBatch is all-or-nothing.

type Repository interface {
	Insert(ctx context.Context, v Voucher) error
	InsertBatch(ctx context.Context, b Batch, vouchers []Voucher) error
	GetByID(ctx context.Context, id string) (Voucher, error)
	GetByCode(ctx context.Context, code string) (Voucher, error)
	// BindDevice sets device_id iff it is currently unset (first-writer-wins).
	// Returns true when this call performed the bind.
	BindDevice(ctx context.Context, id, deviceID string, now time.Time) (bool, error)
	// Debit applies max(0, remaining-minutes) and flips the used flags when
	// the balance first reaches zero, all in one atomic operation.
	Debit(ctx context.Context, id string, minutes int, now time.Time) (Voucher, error)
	SetActive(ctx context.Context, id string, active bool, now time.Time) (Voucher, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f ListFilter) ([]Voucher, int, error)
}

// PostgresRepo implements Repository on Postgres.
//
// Assumed tables:
// - vouchers (unique index on code)
// - voucher_batches
// Calls reference vouchers by id without a foreign-key cascade; deleting a
// voucher leaves its call history intact.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const voucherColumns = `
id, code, batch_id, duration_minutes, remaining_minutes,
is_used, is_active, device_id, used_at, expires_at,
created_by, created_at, updated_at`

func scanVoucher(row *sql.Row) (Voucher, error) {
	var v Voucher
	var batchID, deviceID, createdBy sql.NullString
	err := row.Scan(
		&v.ID,
		&v.Code,
		&batchID,
		&v.DurationMinutes,
		&v.RemainingMinutes,
		&v.IsUsed,
		&v.IsActive,
		&deviceID,
		&v.UsedAt,
		&v.ExpiresAt,
		&createdBy,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return Voucher{}, err
	}
	v.BatchID = batchID.String
	v.DeviceID = deviceID.String
	v.CreatedBy = createdBy.String
	return v, nil
}

func (r *PostgresRepo) Insert(ctx context.Context, v Voucher) error {
	const q = `
INSERT INTO vouchers (` + voucherColumns + `
) VALUES (
  $1,$2,NULLIF($3,''),$4,$5,$6,$7,NULLIF($8,''),$9,$10,NULLIF($11,''),$12,$13
)
`
	_, err := r.db.ExecContext(ctx, q,
		v.ID,
		v.Code,
		v.BatchID,
		v.DurationMinutes,
		v.RemainingMinutes,
		v.IsUsed,
		v.IsActive,
		v.DeviceID,
		v.UsedAt,
		v.ExpiresAt,
		v.CreatedBy,
		v.CreatedAt,
		v.UpdatedAt,
	)
	return mapPgErr(err)
}

func (r *PostgresRepo) InsertBatch(ctx context.Context, b Batch, vouchers []Voucher) error {
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const bq = `
INSERT INTO voucher_batches (id, quantity, duration_minutes, created_by, created_at)
VALUES ($1,$2,$3,NULLIF($4,''),$5)
`
		if _, err := tx.ExecContext(ctx, bq, b.ID, b.Quantity, b.DurationMinutes, b.CreatedBy, b.CreatedAt); err != nil {
			return mapPgErr(err)
		}

		const vq = `
INSERT INTO vouchers (` + voucherColumns + `
) VALUES (
  $1,$2,NULLIF($3,''),$4,$5,$6,$7,NULLIF($8,''),$9,$10,NULLIF($11,''),$12,$13
)
`
		for _, v := range vouchers {
			if _, err := tx.ExecContext(ctx, vq,
				v.ID, v.Code, v.BatchID, v.DurationMinutes, v.RemainingMinutes,
				v.IsUsed, v.IsActive, v.DeviceID, v.UsedAt, v.ExpiresAt,
				v.CreatedBy, v.CreatedAt, v.UpdatedAt,
			); err != nil {
				// Any single failure rolls back the whole batch.
				return mapPgErr(err)
			}
		}
		return nil
	})
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Voucher, error) {
	const q = `SELECT ` + voucherColumns + ` FROM vouchers WHERE id = $1`
	v, err := scanVoucher(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Voucher{}, ErrNotFound
	}
	return v, err
}

func (r *PostgresRepo) GetByCode(ctx context.Context, code string) (Voucher, error) {
	const q = `SELECT ` + voucherColumns + ` FROM vouchers WHERE code = $1`
	v, err := scanVoucher(r.db.QueryRowContext(ctx, q, code))
	if errors.Is(err, sql.ErrNoRows) {
		return Voucher{}, ErrNotFound
	}
	return v, err
}

func (r *PostgresRepo) BindDevice(ctx context.Context, id, deviceID string, now time.Time) (bool, error) {
	// Conditional update: only the first writer binds; everyone else is a no-op.
	const q = `
UPDATE vouchers
SET device_id = $2, updated_at = $3
WHERE id = $1 AND device_id IS NULL
`
	res, err := r.db.ExecContext(ctx, q, id, deviceID, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepo) Debit(ctx context.Context, id string, minutes int, now time.Time) (Voucher, error) {
	// One round trip computes the new balance and flags; concurrent debits on
	// the same row serialize on the row lock, so no update is ever lost.
	const q = `
UPDATE vouchers
SET remaining_minutes = GREATEST(remaining_minutes - $2, 0),
    is_used = CASE WHEN GREATEST(remaining_minutes - $2, 0) = 0 THEN TRUE ELSE is_used END,
    used_at = CASE WHEN GREATEST(remaining_minutes - $2, 0) = 0 THEN COALESCE(used_at, $3) ELSE used_at END,
    updated_at = $3
WHERE id = $1
RETURNING ` + voucherColumns + `
`
	v, err := scanVoucher(r.db.QueryRowContext(ctx, q, id, minutes, now))
	if errors.Is(err, sql.ErrNoRows) {
		return Voucher{}, ErrNotFound
	}
	return v, err
}

func (r *PostgresRepo) SetActive(ctx context.Context, id string, active bool, now time.Time) (Voucher, error) {
	const q = `
UPDATE vouchers
SET is_active = $2, updated_at = $3
WHERE id = $1
RETURNING ` + voucherColumns + `
`
	v, err := scanVoucher(r.db.QueryRowContext(ctx, q, id, active, now))
	if errors.Is(err, sql.ErrNoRows) {
		return Voucher{}, ErrNotFound
	}
	return v, err
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM vouchers WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) List(ctx context.Context, f ListFilter) ([]Voucher, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	const q = `
SELECT ` + voucherColumns + `
FROM vouchers
WHERE ($1::boolean IS NULL OR is_used = $1)
  AND ($2::boolean IS NULL OR is_active = $2)
  AND ($3::text IS NULL OR batch_id = $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`
	var batchID any
	if f.BatchID != "" {
		batchID = f.BatchID
	}
	rows, err := r.db.QueryContext(ctx, q, nullableBool(f.IsUsed), nullableBool(f.IsActive), batchID, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Voucher
	for rows.Next() {
		var v Voucher
		var bID, deviceID, createdBy sql.NullString
		if err := rows.Scan(
			&v.ID, &v.Code, &bID, &v.DurationMinutes, &v.RemainingMinutes,
			&v.IsUsed, &v.IsActive, &deviceID, &v.UsedAt, &v.ExpiresAt,
			&createdBy, &v.CreatedAt, &v.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		v.BatchID = bID.String
		v.DeviceID = deviceID.String
		v.CreatedBy = createdBy.String
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	const cq = `
SELECT COUNT(*) FROM vouchers
WHERE ($1::boolean IS NULL OR is_used = $1)
  AND ($2::boolean IS NULL OR is_active = $2)
  AND ($3::text IS NULL OR batch_id = $3)
`
	var total int
	if err := r.db.QueryRowContext(ctx, cq, nullableBool(f.IsUsed), nullableBool(f.IsActive), batchID).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

// mapPgErr translates a Postgres unique violation into the ledger's
// conflict sentinel so the allocator can retry with a fresh code.
func mapPgErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrCodeExists
	}
	return err
}
