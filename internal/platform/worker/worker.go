// Package worker provides the poll loop shared by the ingest, process,
// post and cleanup modes.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// PassFunc runs one pass over the pending work. It should return quickly
// when there is nothing to do.
type PassFunc func(ctx context.Context) error

// Config configures a worker loop.
type Config struct {
	// Name identifies the worker for logging.
	Name string

	// PollInterval is the time between passes.
	PollInterval time.Duration

	// Pass is called each iteration.
	Pass PassFunc

	// Once makes the loop run a single pass and exit.
	Once bool

	// OnError is called when Pass returns an error.
	// Return true to continue, false to exit the loop.
	OnError func(err error) bool

	// Logger for the worker.
	Logger *zerolog.Logger
}

// Loop runs passes until the context is canceled or OnError asks to stop.
// Returns ctx.Err() on cancellation, nil after a single pass in Once mode.
func Loop(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	logger.Info().Str("worker", cfg.Name).Bool("once", cfg.Once).Msg("worker started")
	defer logger.Info().Str("worker", cfg.Name).Msg("worker stopped")

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("worker %s: %w", cfg.Name, err)
		}

		if err := cfg.Pass(ctx); err != nil {
			if cfg.OnError != nil && !cfg.OnError(err) {
				return err
			}

			logger.Error().Err(err).Str("worker", cfg.Name).Msg("pass failed")
		}

		if cfg.Once {
			return nil
		}

		if err := Wait(ctx, cfg.PollInterval); err != nil {
			return err
		}
	}
}

// Wait blocks until duration elapses or the context is canceled.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// RunWithTimeout runs fn with a timeout derived from the parent context.
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return fn(timeoutCtx)
}
