package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only. No Update/Delete methods exist.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Sink is what the ledger and settlement services see: a place to drop
// events without caring whether they land.
type Sink interface {
	Record(ctx context.Context, e Event)
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to devices.
// - Record is fire-and-forget; a caller aborting its request does not
//   cancel the audit write, and a failed write never propagates.

type Service struct {
	repo    Repository
	log     *slog.Logger
	clock   func() time.Time
	timeout time.Duration
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log, clock: time.Now, timeout: 3 * time.Second}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

// Append writes an event synchronously. Used by tests and by Record.
func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Action == "" {
		return ErrInvalidEvent
	}
	if e.EntityType == "" || e.EntityID == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// Record appends the event in the background. It detaches from the caller's
// context so request cancellation after a committed debit cannot drop the
// trail, and it never surfaces an error.
func (s *Service) Record(_ context.Context, e Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.Append(ctx, e); err != nil {
			s.log.Warn("audit append failed", "action", e.Action, "entity_id", e.EntityID, "err", err)
		}
	}()
}

// Tee fans one append out to several repositories (e.g. Postgres + Kafka).
// The first error is returned but later repositories are still attempted.
func Tee(repos ...Repository) Repository {
	return teeRepo(repos)
}

type teeRepo []Repository

func (t teeRepo) Append(ctx context.Context, e Event) error {
	var first error
	for _, r := range t {
		if err := r.Append(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
