package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "timerbot/pkg/logx"
)

func TestServiceSetValidation(t *testing.T) {
	t.Parallel()
	s := New(time.UTC, logx.Nop())
	noop := func(context.Context) error { return nil }

	if err := s.Set(Job{Schedule: "@hourly", Run: noop}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := s.Set(Job{Name: "x", Schedule: "@hourly"}); err == nil {
		t.Fatal("expected error for nil run")
	}
	if err := s.Set(Job{Name: "x", Schedule: "61 * * * *", Run: noop}); err == nil {
		t.Fatal("expected error for bad cron field")
	}
	if err := s.Set(Job{Name: "x", Schedule: "@hourly", Run: noop}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	// Empty schedule unregisters.
	if err := s.Set(Job{Name: "x", Run: noop}); err != nil {
		t.Fatalf("Set(remove): %v", err)
	}
	if s.Remove("x") {
		t.Fatal("job should already be gone")
	}
}

func TestServiceRunsJobs(t *testing.T) {
	t.Parallel()
	s := New(time.UTC, logx.Nop())

	var runs atomic.Int32
	done := make(chan struct{}, 1)
	err := s.Set(Job{Name: "tick", Schedule: "* * * * * *", Timeout: time.Second, Run: func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("job context has no deadline")
		}
		runs.Add(1)
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	}})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	t.Cleanup(func() {
		stopCtx, c := context.WithTimeout(context.Background(), time.Second)
		defer c()
		s.Stop(stopCtx)
	})

	if next, ok := s.Next("tick"); !ok || next.IsZero() {
		t.Fatalf("Next = %v, %v", next, ok)
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
	if runs.Load() == 0 {
		t.Fatal("runs = 0")
	}
}
