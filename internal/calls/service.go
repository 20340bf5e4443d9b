package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"callcard-platform/internal/audit"
	"callcard-platform/internal/voucher"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("call not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAlreadyTerminal    = errors.New("call already terminal")
	ErrVoucherUnavailable = errors.New("voucher unavailable")
	ErrTimeout            = errors.New("storage timeout")
)

const defaultStorageTimeout = 5 * time.Second

// VoucherLedger is the slice of the voucher service the settlement engine
// needs: an eligibility read and the debit.
type VoucherLedger interface {
	Get(ctx context.Context, id string) (voucher.Voucher, error)
	Debit(ctx context.Context, voucherID string, minutes int) (int, error)
}

// Service is the call settlement engine. It opens call records against
// eligible vouchers and converts measured durations into ledger debits.
//
// Settlement invariants:
// - Eligibility is re-checked at call start, independent of any earlier
//   validation; a voucher can go bad in between.
// - StartCall does not reserve minutes. Two concurrent calls on one
//   voucher can both start and jointly overdraw; the debit clamps at zero.
//   Preserved on purpose, not an oversight.
// - The active->terminal transition is conditional in storage, so the
//   debit runs exactly once per call no matter how often EndCall is hit.
type Service struct {
	repo   Repository
	ledger VoucherLedger
	sink   audit.Sink

	// clock is injectable for deterministic tests.
	clock   func() time.Time
	timeout time.Duration
}

func NewService(repo Repository, ledger VoucherLedger, sink audit.Sink, storageTimeout time.Duration) *Service {
	if storageTimeout <= 0 {
		storageTimeout = defaultStorageTimeout
	}
	return &Service{repo: repo, ledger: ledger, sink: sink, clock: time.Now, timeout: storageTimeout}
}

type StartRequest struct {
	VoucherID   string   `json:"voucher_id"`
	PhoneNumber string   `json:"phone_number"`
	CountryCode string   `json:"country_code"`
	CallType    CallType `json:"call_type"`
}

type StartResult struct {
	CallID string `json:"call_id"`
	// RemainingMinutes is a snapshot at call start; nothing is reserved.
	RemainingMinutes int `json:"remaining_minutes"`
}

func (s *Service) StartCall(ctx context.Context, req StartRequest) (StartResult, error) {
	if req.VoucherID == "" || req.PhoneNumber == "" || req.CountryCode == "" {
		return StartResult{}, ErrInvalidArgument
	}
	if !ValidCallType(req.CallType) {
		return StartResult{}, ErrInvalidArgument
	}

	now := s.clock().UTC()

	v, err := s.ledger.Get(ctx, req.VoucherID)
	if errors.Is(err, voucher.ErrNotFound) {
		return StartResult{}, ErrVoucherUnavailable
	}
	if err != nil {
		return StartResult{}, mapStorageErr(err)
	}
	if !v.IsActive || v.IsUsed || v.RemainingMinutes <= 0 || v.Expired(now) {
		return StartResult{}, ErrVoucherUnavailable
	}

	c := Call{
		CallID:      uuid.NewString(),
		VoucherID:   v.ID,
		DeviceID:    v.DeviceID,
		PhoneNumber: req.PhoneNumber,
		CountryCode: req.CountryCode,
		CallType:    req.CallType,
		Status:      CallStatusActive,
		StartedAt:   now,
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.repo.Insert(opCtx, c); err != nil {
		return StartResult{}, mapStorageErr(err)
	}

	s.record(ctx, audit.Event{
		Action:     audit.ActionCallStarted,
		EntityType: audit.EntityCall,
		EntityID:   c.CallID,
		DeviceID:   c.DeviceID,
		Details:    fmt.Sprintf(`{"voucher_id":%q,"call_type":%q}`, v.ID, req.CallType),
	})

	return StartResult{CallID: c.CallID, RemainingMinutes: v.RemainingMinutes}, nil
}

type EndResult struct {
	BilledMinutes    int `json:"billed_minutes"`
	RemainingMinutes int `json:"remaining_minutes"`
}

// EndCall settles a finished call: flips it to completed (exactly once)
// and debits ceil(seconds/60) minutes from the authorizing voucher.
func (s *Service) EndCall(ctx context.Context, callID string, actualDurationSeconds int) (EndResult, error) {
	if callID == "" {
		return EndResult{}, ErrInvalidArgument
	}
	if actualDurationSeconds < 0 {
		return EndResult{}, ErrInvalidArgument
	}

	now := s.clock().UTC()

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	c, err := s.repo.Finish(opCtx, callID, CallStatusCompleted, actualDurationSeconds, now)
	if err != nil {
		return EndResult{}, mapStorageErr(err)
	}

	minutes := BilledMinutes(actualDurationSeconds)

	remaining := 0
	if c.VoucherID != "" {
		remaining, err = s.ledger.Debit(ctx, c.VoucherID, minutes)
		if errors.Is(err, voucher.ErrNotFound) {
			// Voucher deleted while the call ran. The call record stays
			// completed; there is simply no balance left to settle against.
			remaining, err = 0, nil
		}
		if err != nil {
			return EndResult{}, mapStorageErr(err)
		}
	}

	s.record(ctx, audit.Event{
		Action:     audit.ActionCallCompleted,
		EntityType: audit.EntityCall,
		EntityID:   c.CallID,
		DeviceID:   c.DeviceID,
		Details:    fmt.Sprintf(`{"seconds":%d,"minutes":%d,"remaining_minutes":%d}`, actualDurationSeconds, minutes, remaining),
	})

	return EndResult{BilledMinutes: minutes, RemainingMinutes: remaining}, nil
}

// CancelCall marks an active call cancelled. Nothing is billed.
func (s *Service) CancelCall(ctx context.Context, callID string) error {
	return s.terminate(ctx, callID, CallStatusCancelled, audit.ActionCallCancelled)
}

// FailCall marks an active call failed. Nothing is billed.
func (s *Service) FailCall(ctx context.Context, callID string) error {
	return s.terminate(ctx, callID, CallStatusFailed, audit.ActionCallFailed)
}

func (s *Service) terminate(ctx context.Context, callID string, status CallStatus, action audit.Action) error {
	if callID == "" {
		return ErrInvalidArgument
	}

	now := s.clock().UTC()

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	c, err := s.repo.Finish(opCtx, callID, status, 0, now)
	if err != nil {
		return mapStorageErr(err)
	}

	s.record(ctx, audit.Event{
		Action:     action,
		EntityType: audit.EntityCall,
		EntityID:   c.CallID,
		DeviceID:   c.DeviceID,
	})
	return nil
}

// Get fetches a call by id for the admin surface.
func (s *Service) Get(ctx context.Context, callID string) (Call, error) {
	if callID == "" {
		return Call{}, ErrInvalidArgument
	}
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	c, err := s.repo.Get(opCtx, callID)
	if err != nil {
		return Call{}, mapStorageErr(err)
	}
	return c, nil
}

// List pages call records for the admin surface.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Call, int, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	items, total, err := s.repo.List(opCtx, f)
	if err != nil {
		return nil, 0, mapStorageErr(err)
	}
	return items, total, nil
}

func (s *Service) record(ctx context.Context, e audit.Event) {
	if s.sink == nil {
		return
	}
	s.sink.Record(ctx, e)
}

func mapStorageErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}
