package voucher

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository used in tests.
//
// All mutations happen under one lock, which gives it the same atomicity
// the Postgres implementation gets from single-statement updates: debits
// on one voucher serialize, and no partial batch is ever visible.

type MemoryRepo struct {
	mu       sync.Mutex
	byID     map[string]*Voucher
	idByCode map[string]string
	batches  map[string]Batch
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:     make(map[string]*Voucher),
		idByCode: make(map[string]string),
		batches:  make(map[string]Batch),
	}
}

func (r *MemoryRepo) Insert(ctx context.Context, v Voucher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(v)
}

func (r *MemoryRepo) insertLocked(v Voucher) error {
	if _, ok := r.idByCode[v.Code]; ok {
		return ErrCodeExists
	}
	cp := v
	r.byID[v.ID] = &cp
	r.idByCode[v.Code] = v.ID
	return nil
}

func (r *MemoryRepo) InsertBatch(ctx context.Context, b Batch, vouchers []Voucher) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Validate everything first so a late failure cannot leave a partial batch.
	seen := make(map[string]struct{}, len(vouchers))
	for _, v := range vouchers {
		if _, ok := r.idByCode[v.Code]; ok {
			return ErrCodeExists
		}
		if _, ok := seen[v.Code]; ok {
			return ErrCodeExists
		}
		seen[v.Code] = struct{}{}
	}

	r.batches[b.ID] = b
	for _, v := range vouchers {
		if err := r.insertLocked(v); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.byID[id]
	if !ok {
		return Voucher{}, ErrNotFound
	}
	return *v, nil
}

func (r *MemoryRepo) GetByCode(ctx context.Context, code string) (Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.idByCode[code]
	if !ok {
		return Voucher{}, ErrNotFound
	}
	return *r.byID[id], nil
}

func (r *MemoryRepo) BindDevice(ctx context.Context, id, deviceID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if v.DeviceID != "" {
		return false, nil
	}
	v.DeviceID = deviceID
	v.UpdatedAt = now
	return true, nil
}

func (r *MemoryRepo) Debit(ctx context.Context, id string, minutes int, now time.Time) (Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.byID[id]
	if !ok {
		return Voucher{}, ErrNotFound
	}

	newRemaining := v.RemainingMinutes - minutes
	if newRemaining < 0 {
		newRemaining = 0
	}
	v.RemainingMinutes = newRemaining
	if newRemaining == 0 {
		v.IsUsed = true
		if v.UsedAt == nil {
			t := now
			v.UsedAt = &t
		}
	}
	v.UpdatedAt = now
	return *v, nil
}

func (r *MemoryRepo) SetActive(ctx context.Context, id string, active bool, now time.Time) (Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.byID[id]
	if !ok {
		return Voucher{}, ErrNotFound
	}
	v.IsActive = active
	v.UpdatedAt = now
	return *v, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.idByCode, v.Code)
	delete(r.byID, id)
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, f ListFilter) ([]Voucher, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []Voucher
	for _, v := range r.byID {
		if f.IsUsed != nil && v.IsUsed != *f.IsUsed {
			continue
		}
		if f.IsActive != nil && v.IsActive != *f.IsActive {
			continue
		}
		if f.BatchID != "" && v.BatchID != f.BatchID {
			continue
		}
		all = append(all, *v)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Offset >= len(all) {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[f.Offset:end], total, nil
}

// Batches returns a copy of the stored batch records.
func (r *MemoryRepo) Batches() []Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Batch, 0, len(r.batches))
	for _, b := range r.batches {
		out = append(out, b)
	}
	return out
}
