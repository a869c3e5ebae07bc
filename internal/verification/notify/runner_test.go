package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunnerExecutesTasks(t *testing.T) {
	r := NewRunner(RunnerConfig{Workers: 2, QueueSize: 8, Timeout: time.Second}, nil, nil)
	r.Start(context.Background())

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		if !r.Submit("count", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}) {
			t.Fatal("expected task to be accepted")
		}
	}
	r.Stop()
	if got := ran.Load(); got != 5 {
		t.Fatalf("expected 5 tasks, got %d", got)
	}
	if r.Submit("late", func(context.Context) error { return nil }) {
		t.Fatal("expected submit after stop to be rejected")
	}
}

func TestRunnerAppliesTimeoutAndRecoversPanics(t *testing.T) {
	r := NewRunner(RunnerConfig{Workers: 1, QueueSize: 4, Timeout: 20 * time.Millisecond}, nil, nil)
	r.Start(context.Background())

	deadline := make(chan error, 1)
	r.Submit("panics", func(context.Context) error { panic("boom") })
	r.Submit("hangs", func(ctx context.Context) error {
		<-ctx.Done()
		deadline <- ctx.Err()
		return ctx.Err()
	})
	r.Stop()

	select {
	case err := <-deadline:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
	default:
		t.Fatal("hanging task did not observe its timeout")
	}
}

func TestRunnerSubmitNeverBlocks(t *testing.T) {
	r := NewRunner(RunnerConfig{Workers: 1, QueueSize: 1, Timeout: time.Second}, nil, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	r.Start(context.Background())

	r.Submit("block", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started
	if !r.Submit("queued", func(context.Context) error { return nil }) {
		t.Fatal("expected second task to fit the queue")
	}

	done := make(chan bool, 1)
	go func() { done <- r.Submit("overflow", func(context.Context) error { return nil }) }()
	select {
	case accepted := <-done:
		if accepted {
			t.Fatal("expected overflow task to be dropped")
		}
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}
	close(release)
	r.Stop()
}
