package voucher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"callcard-platform/internal/audit"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("voucher not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrCodeExists      = errors.New("voucher code already exists")
	ErrUnavailable     = errors.New("voucher allocation unavailable")
	ErrTimeout         = errors.New("storage timeout")
)

const defaultStorageTimeout = 5 * time.Second

// Service is the voucher ledger: the only writer of voucher balances and
// usage flags.
//
// Ledger invariants:
// - Debit is one atomic read-modify-write per voucher id; concurrent
//   debits serialize in storage, never in application code.
// - Code uniqueness is enforced by the storage constraint; the allocator
//   treats ErrCodeExists as "pick a fresh candidate".
// - Audit notifications are best-effort and never fail an operation.
type Service struct {
	repo Repository
	sink audit.Sink

	// clock is injectable for deterministic tests.
	clock   func() time.Time
	timeout time.Duration
}

func NewService(repo Repository, sink audit.Sink, storageTimeout time.Duration) *Service {
	if storageTimeout <= 0 {
		storageTimeout = defaultStorageTimeout
	}
	return &Service{repo: repo, sink: sink, clock: time.Now, timeout: storageTimeout}
}

type CreateRequest struct {
	DurationMinutes int        `json:"duration_minutes"`
	Code            string     `json:"code"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	CreatedBy       string     `json:"created_by,omitempty"`
}

// Create inserts a fresh voucher. The code must be unique across all
// vouchers ever created (case-insensitive); duplicates return ErrCodeExists.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Voucher, error) {
	if req.DurationMinutes <= 0 {
		return Voucher{}, ErrInvalidArgument
	}
	code := NormalizeCode(req.Code)
	if !isValidCode(code) {
		return Voucher{}, ErrInvalidArgument
	}

	now := s.clock().UTC()
	v := Voucher{
		ID:               uuid.NewString(),
		Code:             code,
		DurationMinutes:  req.DurationMinutes,
		RemainingMinutes: req.DurationMinutes,
		IsUsed:           false,
		IsActive:         true,
		ExpiresAt:        req.ExpiresAt,
		CreatedBy:        req.CreatedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.repo.Insert(opCtx, v); err != nil {
		return Voucher{}, mapStorageErr(err)
	}

	s.record(ctx, audit.Event{
		Action:      audit.ActionVoucherCreated,
		EntityType:  audit.EntityVoucher,
		EntityID:    v.ID,
		ActorUserID: req.CreatedBy,
		Details:     fmt.Sprintf(`{"duration_minutes":%d}`, v.DurationMinutes),
	})
	return v, nil
}

// Validate checks a code for redemption. Disqualifying conditions return
// Valid=false, never an error; errors are reserved for storage faults.
//
// On the first successful validation the voucher is bound to the device.
// A later validation from a different device still succeeds and does NOT
// rebind: the no-op is recorded to audit only. Whether silent acceptance
// is the right call is an open product question; the behavior here
// deliberately matches what shipped.
func (s *Service) Validate(ctx context.Context, code, deviceID string) (ValidationResult, error) {
	code = NormalizeCode(code)
	if code == "" {
		return ValidationResult{Valid: false}, nil
	}

	now := s.clock().UTC()

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	v, err := s.repo.GetByCode(opCtx, code)
	if errors.Is(err, ErrNotFound) {
		return ValidationResult{Valid: false}, nil
	}
	if err != nil {
		return ValidationResult{}, mapStorageErr(err)
	}

	if !v.IsActive || v.IsUsed || v.RemainingMinutes <= 0 || v.Expired(now) {
		return ValidationResult{Valid: false}, nil
	}

	if deviceID != "" {
		switch {
		case v.DeviceID == "":
			bindCtx, cancelBind := context.WithTimeout(ctx, s.timeout)
			defer cancelBind()
			bound, err := s.repo.BindDevice(bindCtx, v.ID, deviceID, now)
			if err != nil {
				return ValidationResult{}, mapStorageErr(err)
			}
			if bound {
				v.DeviceID = deviceID
			}
		case v.DeviceID != deviceID:
			// Silent no-op; surfaced to fraud review via audit only.
			s.record(ctx, audit.Event{
				Action:     audit.ActionVoucherRebindNoop,
				EntityType: audit.EntityVoucher,
				EntityID:   v.ID,
				DeviceID:   deviceID,
				Details:    fmt.Sprintf(`{"bound_device_id":%q}`, v.DeviceID),
			})
		}
	}

	s.record(ctx, audit.Event{
		Action:     audit.ActionVoucherValidated,
		EntityType: audit.EntityVoucher,
		EntityID:   v.ID,
		DeviceID:   deviceID,
	})

	return ValidationResult{
		Valid:            true,
		RemainingMinutes: v.RemainingMinutes,
		VoucherID:        v.ID,
	}, nil
}

// Debit reduces the balance by minutes, clamped at zero, and flips the
// used flags exactly once. Applied fully or not at all.
func (s *Service) Debit(ctx context.Context, voucherID string, minutes int) (int, error) {
	if voucherID == "" || minutes < 0 {
		return 0, ErrInvalidArgument
	}

	now := s.clock().UTC()

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	v, err := s.repo.Debit(opCtx, voucherID, minutes, now)
	if err != nil {
		return 0, mapStorageErr(err)
	}

	s.record(ctx, audit.Event{
		Action:     audit.ActionVoucherDebited,
		EntityType: audit.EntityVoucher,
		EntityID:   v.ID,
		DeviceID:   v.DeviceID,
		Details:    fmt.Sprintf(`{"minutes":%d,"remaining_minutes":%d}`, minutes, v.RemainingMinutes),
	})
	return v.RemainingMinutes, nil
}

// Get fetches a voucher by id for the admin surface.
func (s *Service) Get(ctx context.Context, id string) (Voucher, error) {
	if id == "" {
		return Voucher{}, ErrInvalidArgument
	}
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	v, err := s.repo.GetByID(opCtx, id)
	if err != nil {
		return Voucher{}, mapStorageErr(err)
	}
	return v, nil
}

// List pages vouchers for the admin surface.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Voucher, int, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	items, total, err := s.repo.List(opCtx, f)
	if err != nil {
		return nil, 0, mapStorageErr(err)
	}
	return items, total, nil
}

// SetActive administratively enables or disables a voucher. Independent of
// the usage flags: deactivation never touches the balance.
func (s *Service) SetActive(ctx context.Context, id string, active bool, actor string) (Voucher, error) {
	if id == "" {
		return Voucher{}, ErrInvalidArgument
	}
	now := s.clock().UTC()

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	v, err := s.repo.SetActive(opCtx, id, active, now)
	if err != nil {
		return Voucher{}, mapStorageErr(err)
	}

	s.record(ctx, audit.Event{
		Action:      audit.ActionVoucherStateChanged,
		EntityType:  audit.EntityVoucher,
		EntityID:    v.ID,
		ActorUserID: actor,
		Details:     fmt.Sprintf(`{"is_active":%t}`, active),
	})
	return v, nil
}

// Delete removes a voucher. Call records keep referencing the dead id;
// the relation is informational, not ownership.
func (s *Service) Delete(ctx context.Context, id, actor string) error {
	if id == "" {
		return ErrInvalidArgument
	}
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.repo.Delete(opCtx, id); err != nil {
		return mapStorageErr(err)
	}

	s.record(ctx, audit.Event{
		Action:      audit.ActionVoucherDeleted,
		EntityType:  audit.EntityVoucher,
		EntityID:    id,
		ActorUserID: actor,
	})
	return nil
}

// createBatch persists a batch and its members all-or-nothing.
// Used by the allocator only.
func (s *Service) createBatch(ctx context.Context, b Batch, vouchers []Voucher) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.repo.InsertBatch(opCtx, b, vouchers); err != nil {
		return mapStorageErr(err)
	}

	s.record(ctx, audit.Event{
		Action:      audit.ActionVoucherBatchCreated,
		EntityType:  audit.EntityVoucherBatch,
		EntityID:    b.ID,
		ActorUserID: b.CreatedBy,
		Details:     fmt.Sprintf(`{"quantity":%d,"duration_minutes":%d}`, b.Quantity, b.DurationMinutes),
	})
	return nil
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
