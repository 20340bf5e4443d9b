package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - Audit is a side channel: writes are best-effort and must never block
//   or fail ledger/settlement operations.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Event struct {
	ID string `json:"id" db:"id"`

	// Action indicates the business category of the audit record.
	Action Action `json:"action" db:"action"`

	// EntityType and EntityID name the record the action touched
	// (voucher, voucher_batch, call).
	EntityType string `json:"entity_type" db:"entity_type"`
	EntityID   string `json:"entity_id" db:"entity_id"`

	// ActorUserID is the authenticated admin causing the event (if applicable).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`

	// DeviceID identifies the anonymous calling device (if applicable).
	DeviceID string `json:"device_id,omitempty" db:"device_id"`

	// Details is optional JSON for full context.
	Details string `json:"details,omitempty" db:"details"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Action string

const (
	ActionVoucherCreated      Action = "voucher_created"
	ActionVoucherBatchCreated Action = "voucher_batch_created"
	ActionVoucherValidated    Action = "voucher_validated"
	ActionVoucherRebindNoop   Action = "voucher_rebind_ignored"
	ActionVoucherDebited      Action = "voucher_debited"
	ActionVoucherStateChanged Action = "voucher_state_changed"
	ActionVoucherDeleted      Action = "voucher_deleted"
	ActionCallStarted         Action = "call_started"
	ActionCallCompleted       Action = "call_completed"
	ActionCallCancelled       Action = "call_cancelled"
	ActionCallFailed          Action = "call_failed"
)

const (
	EntityVoucher      = "voucher"
	EntityVoucherBatch = "voucher_batch"
	EntityCall         = "call"
)
