// Package schedule owns publication-slot assignment for the publish queue.
//
// Slots form a monotonically increasing sequence: each new slot lands one
// publication interval after the current queue tail. Every read-then-write of
// publication dates runs inside a transaction holding the scheduler advisory
// lock, so concurrent ingestion passes cannot compute the same tail.
package schedule

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/ndemidov/tubecast/internal/storage"
)

// DefaultInterval is the spacing between consecutive publication slots.
const DefaultInterval = 4 * time.Hour

// Catalog is the slice of the item store the scheduler needs. The Querier
// passed to the per-row methods is the locked transaction.
type Catalog interface {
	WithSchedulerLock(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
	LatestScheduledAt(ctx context.Context, q storage.Querier) (time.Time, bool, error)
	SetPublicationDate(ctx context.Context, q storage.Querier, id string, t time.Time) error
	RebasePending(ctx context.Context, q storage.Querier, t time.Time) (int64, error)
	ListPendingDownloadedIDs(ctx context.Context, q storage.Querier) ([]string, error)
}

type Scheduler struct {
	catalog  Catalog
	interval time.Duration
	now      func() time.Time
	logger   *zerolog.Logger
}

func New(catalog Catalog, interval time.Duration, logger *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Scheduler{
		catalog:  catalog,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// NextSlot returns the next free publication slot: the current queue tail plus
// one interval, or now when the queue is empty.
func (s *Scheduler) NextSlot(ctx context.Context) (time.Time, error) {
	var slot time.Time

	err := s.WithNextSlot(ctx, func(_ context.Context, _ storage.Querier, t time.Time) error {
		slot = t
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}

	return slot, nil
}

// WithNextSlot computes the next slot and runs fn against the same locked
// transaction. The write that consumes the slot commits before the lock is
// released, so two concurrent callers can never be handed the same tail.
func (s *Scheduler) WithNextSlot(ctx context.Context, fn func(ctx context.Context, q storage.Querier, slot time.Time) error) error {
	return s.catalog.WithSchedulerLock(ctx, func(ctx context.Context, tx pgx.Tx) error {
		slot, err := s.nextSlot(ctx, tx)
		if err != nil {
			return err
		}

		return fn(ctx, tx, slot)
	})
}

func (s *Scheduler) nextSlot(ctx context.Context, q storage.Querier) (time.Time, error) {
	tail, ok, err := s.catalog.LatestScheduledAt(ctx, q)
	if err != nil {
		return time.Time{}, err
	}

	if !ok {
		return s.now(), nil
	}

	return tail.Add(s.interval), nil
}

// RebaseToNow resets the publication date of every active, unposted item to
// the current time. Used to reset the queue baseline after an outage before
// reshuffling.
func (s *Scheduler) RebaseToNow(ctx context.Context) (int64, error) {
	var rebased int64

	err := s.catalog.WithSchedulerLock(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error

		rebased, err = s.catalog.RebasePending(ctx, tx, s.now())

		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info().Int64("items", rebased).Msg("rebased pending items to now")

	return rebased, nil
}

// ReshufflePending rebases all pending items to now, then reassigns slots to
// active, unposted, downloaded items in a random order; that order becomes
// the new publish order. Both steps share one locked transaction so no slot
// is handed out against a half-rebased queue. Items not yet downloaded are
// rebased to now but get no new slot. Membership never changes, only
// ordering.
func (s *Scheduler) ReshufflePending(ctx context.Context) (int, error) {
	var reshuffled int

	err := s.catalog.WithSchedulerLock(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := s.catalog.RebasePending(ctx, tx, s.now()); err != nil {
			return err
		}

		ids, err := s.catalog.ListPendingDownloadedIDs(ctx, tx)
		if err != nil {
			return err
		}

		for _, id := range ids {
			slot, err := s.nextSlot(ctx, tx)
			if err != nil {
				return err
			}

			if err := s.catalog.SetPublicationDate(ctx, tx, id, slot); err != nil {
				return err
			}

			reshuffled++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info().Int("items", reshuffled).Msg("reshuffled pending items")

	return reshuffled, nil
}
