package calls

import "time"

// Call represents one metered phone call authorized by a voucher.
//
// State machine: active -> {completed, failed, cancelled}. Terminal states
// never transition again; the transition itself is a conditional storage
// update, which is what makes the end-of-call debit exactly-once.
//
// VoucherID is a relation, not ownership: deleting the voucher leaves the
// call record behind with a dangling reference.

type Call struct {
	CallID    string `json:"call_id" db:"call_id"`
	VoucherID string `json:"voucher_id,omitempty" db:"voucher_id"`
	DeviceID  string `json:"device_id,omitempty" db:"device_id"`

	PhoneNumber string `json:"phone_number" db:"phone_number"`
	CountryCode string `json:"country_code" db:"country_code"`

	// CallType is informational (local/national/international); it plays
	// no part in billing math.
	CallType CallType `json:"call_type" db:"call_type"`

	Status CallStatus `json:"status" db:"status"`

	// DurationSeconds stays 0 until the call completes.
	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
}

type CallStatus string

const (
	CallStatusActive    CallStatus = "active"
	CallStatusCompleted CallStatus = "completed"
	CallStatusFailed    CallStatus = "failed"
	CallStatusCancelled CallStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusCancelled:
		return true
	default:
		return false
	}
}

type CallType string

const (
	CallTypeLocal         CallType = "local"
	CallTypeNational      CallType = "national"
	CallTypeInternational CallType = "international"
)

func ValidCallType(t CallType) bool {
	switch t {
	case CallTypeLocal, CallTypeNational, CallTypeInternational:
		return true
	default:
		return false
	}
}

// BilledMinutes converts a measured call duration into the minute debit:
// rounded UP to the next whole minute, so a 1-second call bills a full
// minute and a 0-second call bills nothing.
func BilledMinutes(durationSeconds int) int {
	if durationSeconds <= 0 {
		return 0
	}
	return (durationSeconds + 59) / 60
}

// ListFilter narrows admin call listings.
type ListFilter struct {
	VoucherID string
	Status    CallStatus
	Limit     int
	Offset    int
}
