package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeLocker struct {
	acquired bool
	err      error
	calls    int
}

func (l *fakeLocker) WithSessionLock(ctx context.Context, _ int64, fn func(ctx context.Context) error) (bool, error) {
	l.calls++

	if l.err != nil {
		return false, l.err
	}

	if !l.acquired {
		return false, nil
	}

	return true, fn(ctx)
}

func TestLockedPassRunsWhenLockAcquired(t *testing.T) {
	logger := zerolog.Nop()

	var ran bool

	pass := lockedPass(&fakeLocker{acquired: true}, 1, &logger, func(context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, pass(context.Background()))
	require.True(t, ran)
}

func TestLockedPassSkipsWhenLockHeldElsewhere(t *testing.T) {
	logger := zerolog.Nop()
	locker := &fakeLocker{acquired: false}

	var ran bool

	pass := lockedPass(locker, 1, &logger, func(context.Context) error {
		ran = true
		return nil
	})

	// Held elsewhere means skip, not fail; the next tick tries again.
	require.NoError(t, pass(context.Background()))
	require.False(t, ran)
	require.Equal(t, 1, locker.calls)
}

func TestLockedPassPropagatesLockError(t *testing.T) {
	logger := zerolog.Nop()
	locker := &fakeLocker{err: errors.New("connection refused")}

	pass := lockedPass(locker, 1, &logger, func(context.Context) error { return nil })

	require.Error(t, pass(context.Background()))
}

func TestTelegramClientHasFiniteTimeout(t *testing.T) {
	require.Equal(t, 30*time.Second, telegramClient(30*time.Second).Timeout)

	// Zero config must never mean an unbounded client.
	require.Positive(t, telegramClient(0).Timeout)
}
