package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoopOnceRunsSinglePass(t *testing.T) {
	var passes int

	err := Loop(context.Background(), Config{
		Name: "test",
		Once: true,
		Pass: func(context.Context) error {
			passes++
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Loop() error = %v", err)
	}

	if passes != 1 {
		t.Fatalf("passes = %d, want 1", passes)
	}
}

func TestLoopStopsWhenOnErrorReturnsFalse(t *testing.T) {
	fatal := errors.New("fatal")

	err := Loop(context.Background(), Config{
		Name:         "test",
		PollInterval: time.Millisecond,
		Pass: func(context.Context) error {
			return fatal
		},
		OnError: func(error) bool { return false },
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("Loop() error = %v, want %v", err, fatal)
	}
}

func TestLoopReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var passes int

	err := Loop(ctx, Config{
		Name:         "test",
		PollInterval: time.Hour,
		Pass: func(context.Context) error {
			passes++
			cancel()
			return nil
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Loop() error = %v, want context.Canceled", err)
	}

	if passes != 1 {
		t.Fatalf("passes = %d, want 1", passes)
	}
}

func TestWaitZeroDurationReturnsImmediately(t *testing.T) {
	if err := Wait(context.Background(), 0); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func TestWaitInterruptedByCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Wait(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait() error = %v, want context.Canceled", err)
	}
}
