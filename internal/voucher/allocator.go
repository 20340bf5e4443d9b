package voucher

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Allocator hands out vouchers with unique codes.
//
// Candidate codes are random; uniqueness is settled by the ledger's
// storage constraint, not by a pre-check. An insert that loses the race
// comes back as ErrCodeExists and the allocator retries with a fresh
// candidate, up to maxAttempts, then surfaces ErrUnavailable.

const (
	MinBatchQuantity = 1
	MaxBatchQuantity = 1000
)

type Allocator struct {
	svc         *Service
	maxAttempts int
}

func NewAllocator(svc *Service, maxAttempts int) *Allocator {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Allocator{svc: svc, maxAttempts: maxAttempts}
}

// Allocate creates one voucher with a freshly generated unique code.
func (a *Allocator) Allocate(ctx context.Context, durationMinutes int, createdBy string, expiresAt *time.Time) (Voucher, error) {
	if durationMinutes <= 0 {
		return Voucher{}, ErrInvalidArgument
	}

	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return Voucher{}, err
		}
		v, err := a.svc.Create(ctx, CreateRequest{
			DurationMinutes: durationMinutes,
			Code:            code,
			ExpiresAt:       expiresAt,
			CreatedBy:       createdBy,
		})
		if errors.Is(err, ErrCodeExists) {
			continue
		}
		if err != nil {
			return Voucher{}, err
		}
		return v, nil
	}
	return Voucher{}, ErrUnavailable
}

// AllocateBatch creates quantity vouchers sharing one duration, all
// referencing a single batch record, in one all-or-nothing transaction.
// A collision anywhere aborts and the whole batch is retried with fresh
// codes. Returned vouchers are in creation order.
func (a *Allocator) AllocateBatch(ctx context.Context, quantity, durationMinutes int, createdBy string) (Batch, []Voucher, error) {
	if quantity < MinBatchQuantity || quantity > MaxBatchQuantity {
		return Batch{}, nil, ErrInvalidArgument
	}
	if durationMinutes <= 0 {
		return Batch{}, nil, ErrInvalidArgument
	}

	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		now := a.svc.clock().UTC()
		b := Batch{
			ID:              uuid.NewString(),
			Quantity:        quantity,
			DurationMinutes: durationMinutes,
			CreatedBy:       createdBy,
			CreatedAt:       now,
		}

		vouchers := make([]Voucher, 0, quantity)
		seen := make(map[string]struct{}, quantity)
		for len(vouchers) < quantity {
			code, err := GenerateCode()
			if err != nil {
				return Batch{}, nil, err
			}
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			vouchers = append(vouchers, Voucher{
				ID:               uuid.NewString(),
				Code:             code,
				BatchID:          b.ID,
				DurationMinutes:  durationMinutes,
				RemainingMinutes: durationMinutes,
				IsActive:         true,
				CreatedBy:        createdBy,
				CreatedAt:        now,
				UpdatedAt:        now,
			})
		}

		err := a.svc.createBatch(ctx, b, vouchers)
		if errors.Is(err, ErrCodeExists) {
			continue
		}
		if err != nil {
			return Batch{}, nil, err
		}
		return b, vouchers, nil
	}
	return Batch{}, nil, ErrUnavailable
}
