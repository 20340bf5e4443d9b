package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository used in tests. Finish runs under
// one lock, so the active->terminal transition is atomic exactly like the
// conditional SQL update.

type MemoryRepo struct {
	mu    sync.Mutex
	byID  map[string]*Call
	order []string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]*Call)}
}

func (r *MemoryRepo) Insert(ctx context.Context, c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := c
	r.byID[c.CallID] = &cp
	r.order = append(r.order, c.CallID)
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, callID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[callID]
	if !ok {
		return Call{}, ErrNotFound
	}
	return *c, nil
}

func (r *MemoryRepo) Finish(ctx context.Context, callID string, status CallStatus, durationSeconds int, endedAt time.Time) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[callID]
	if !ok {
		return Call{}, ErrNotFound
	}
	if c.Status != CallStatusActive {
		return Call{}, ErrAlreadyTerminal
	}
	c.Status = status
	c.DurationSeconds = durationSeconds
	t := endedAt
	c.EndedAt = &t
	return *c, nil
}

func (r *MemoryRepo) List(ctx context.Context, f ListFilter) ([]Call, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []Call
	for _, id := range r.order {
		c := r.byID[id]
		if f.VoucherID != "" && c.VoucherID != f.VoucherID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		all = append(all, *c)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].StartedAt.After(all[j].StartedAt) })

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
