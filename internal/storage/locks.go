package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// schedulerLockID guards publication-slot assignment. Every writer of
// publication_date for the pending queue must go through WithSchedulerLock so
// that concurrent ingestion passes cannot compute the same queue tail.
const schedulerLockID = int64(7401)

// WithSchedulerLock runs fn inside a transaction holding the scheduler
// advisory lock. The lock is transaction-scoped, so it is released on commit
// and rollback alike.
func (db *DB) WithSchedulerLock(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin scheduler tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", schedulerLockID); err != nil {
		return fmt.Errorf("acquire scheduler lock: %w", err)
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit scheduler tx: %w", err)
	}

	return nil
}

// WithSessionLock runs fn while holding a session-level advisory lock.
// Session locks belong to the connection that took them, so one connection is
// held out of the pool for the whole call and both lock and unlock run on it.
// Returns false without running fn when the lock is held elsewhere.
func (db *DB) WithSessionLock(ctx context.Context, lockID int64, fn func(ctx context.Context) error) (bool, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired); err != nil {
		return false, fmt.Errorf("try advisory lock: %w", err)
	}

	if !acquired {
		return false, nil
	}

	defer func() {
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", lockID); err != nil {
			db.Logger.Warn().Err(err).Int64("lock_id", lockID).Msg("failed to release session lock")
		}
	}()

	return true, fn(ctx)
}
