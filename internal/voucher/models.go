package voucher

import "time"

// Voucher is a prepaid, single-code unit of call-time.
//
// Balance invariants:
// - 0 <= RemainingMinutes <= DurationMinutes, and RemainingMinutes only
//   ever decreases.
// - IsUsed flips false->true exactly once, when RemainingMinutes first
//   reaches 0; UsedAt is written once and never overwritten.
// - All balance updates are single atomic storage operations, never a
//   read-then-write in application code.
//
// Binding invariant:
// - DeviceID is set at most once, by the first device to validate the
//   code. Later devices are NOT rejected; the original binding stays.

type Voucher struct {
	ID      string `json:"id" db:"id"`
	Code    string `json:"code" db:"code"`
	BatchID string `json:"batch_id,omitempty" db:"batch_id"`

	// DurationMinutes is the total granted at creation; immutable.
	DurationMinutes  int `json:"duration_minutes" db:"duration_minutes"`
	RemainingMinutes int `json:"remaining_minutes" db:"remaining_minutes"`

	IsUsed   bool `json:"is_used" db:"is_used"`
	IsActive bool `json:"is_active" db:"is_active"`

	DeviceID string `json:"device_id,omitempty" db:"device_id"`

	UsedAt    *time.Time `json:"used_at,omitempty" db:"used_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`

	CreatedBy string    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Expired reports whether the voucher's optional expiry has passed.
func (v Voucher) Expired(now time.Time) bool {
	return v.ExpiresAt != nil && now.After(*v.ExpiresAt)
}

// Batch groups vouchers created in one bulk operation.
// Immutable once created; member vouchers reference it via BatchID.
type Batch struct {
	ID              string    `json:"id" db:"id"`
	Quantity        int       `json:"quantity" db:"quantity"`
	DurationMinutes int       `json:"duration_minutes" db:"duration_minutes"`
	CreatedBy       string    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// ValidationResult is the outcome of checking a code for redemption.
// Disqualifying conditions are a normal outcome (Valid=false), not errors.
type ValidationResult struct {
	Valid            bool   `json:"valid"`
	RemainingMinutes int    `json:"remaining_minutes,omitempty"`
	VoucherID        string `json:"voucher_id,omitempty"`
}

// ListFilter narrows admin listings. Nil pointers mean "any".
type ListFilter struct {
	IsUsed   *bool
	IsActive *bool
	BatchID  string
	Limit    int
	Offset   int
}
