package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/clawdbot/sheep/pkg/consolidate"
)

// blockingRunner holds each run until released, recording starts.
type blockingRunner struct {
	mu      sync.Mutex
	starts  []string
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{release: make(chan struct{})}
}

func (r *blockingRunner) Consolidate(ctx context.Context, agentID string) (*consolidate.Result, error) {
	r.mu.Lock()
	r.starts = append(r.starts, agentID)
	r.mu.Unlock()
	<-r.release
	return &consolidate.Result{}, nil
}

func (r *blockingRunner) started() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.starts...)
}

func TestTriggerCollisionDropped(t *testing.T) {
	runner := newBlockingRunner()
	s, err := New(Config{Runner: runner, MinInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	type outcome struct {
		res *consolidate.Result
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := s.Trigger(ctx, "agent-x", true)
		first <- outcome{res, err}
	}()

	// Wait for the first run to be in flight.
	deadline := time.After(2 * time.Second)
	for len(runner.started()) == 0 {
		select {
		case <-deadline:
			t.Fatal("first run never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if !s.Active("agent-x") {
		t.Fatal("agent not marked active during run")
	}

	// Colliding trigger for the same agent: dropped, returns nil.
	res, err := s.Trigger(ctx, "agent-x", false)
	if err != nil || res != nil {
		t.Fatalf("colliding Trigger() = %v, %v; want nil, nil", res, err)
	}
	if got := runner.started(); len(got) != 1 {
		t.Fatalf("starts = %v, want one", got)
	}

	// A different agent proceeds.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := s.Trigger(ctx, "agent-y", true); err != nil {
			t.Errorf("agent-y Trigger() error = %v", err)
		}
	}()
	for len(runner.started()) < 2 {
		select {
		case <-deadline:
			t.Fatal("agent-y run never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	close(runner.release)
	o := <-first
	if o.err != nil || o.res == nil {
		t.Fatalf("first Trigger() = %v, %v", o.res, o.err)
	}
	<-done

	// After the first completes, a forced re-trigger starts a new run.
	if _, err := s.Trigger(ctx, "agent-x", true); err != nil {
		t.Fatalf("forced re-trigger error = %v", err)
	}
	if got := runner.started(); len(got) != 3 {
		t.Fatalf("starts = %v, want three", got)
	}
}

func TestTriggerMinInterval(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	calls := 0
	s, err := New(Config{
		Runner: RunnerFunc(func(ctx context.Context, agentID string) (*consolidate.Result, error) {
			calls++
			return &consolidate.Result{}, nil
		}),
		MinInterval: time.Hour,
		now:         func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if res, _ := s.Trigger(ctx, "a", false); res == nil {
		t.Fatal("first trigger should run")
	}
	if res, _ := s.Trigger(ctx, "a", false); res != nil {
		t.Fatal("second trigger inside min interval should be dropped")
	}
	if res, _ := s.Trigger(ctx, "a", true); res == nil {
		t.Fatal("forced trigger should run")
	}
	now = now.Add(2 * time.Hour)
	if res, _ := s.Trigger(ctx, "a", false); res == nil {
		t.Fatal("trigger after interval should run")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestParseCron(t *testing.T) {
	spec, err := parseCron("30 3 * * *")
	if err != nil {
		t.Fatalf("parseCron() error = %v", err)
	}
	if !spec.matches(time.Date(2026, 8, 25, 3, 30, 0, 0, time.UTC)) {
		t.Fatal("03:30 should match")
	}
	if spec.matches(time.Date(2026, 8, 25, 3, 31, 0, 0, time.UTC)) {
		t.Fatal("03:31 should not match")
	}

	every15, err := parseCron("*/15 * * * *")
	if err != nil {
		t.Fatalf("parseCron() error = %v", err)
	}
	for _, m := range []int{0, 15, 30, 45} {
		if !every15.matches(time.Date(2026, 8, 25, 10, m, 0, 0, time.UTC)) {
			t.Fatalf("minute %d should match */15", m)
		}
	}
	if every15.matches(time.Date(2026, 8, 25, 10, 7, 0, 0, time.UTC)) {
		t.Fatal("minute 7 should not match */15")
	}

	if _, err := parseCron("61 * * * *"); err == nil {
		t.Fatal("out-of-range minute should fail")
	}
	if _, err := parseCron("* * *"); err == nil {
		t.Fatal("three fields should fail")
	}
}

func TestCronSweepOncePerDay(t *testing.T) {
	now := time.Date(2026, 8, 25, 3, 30, 0, 0, time.UTC)
	calls := 0
	s, err := New(Config{
		Runner: RunnerFunc(func(ctx context.Context, agentID string) (*consolidate.Result, error) {
			calls++
			return &consolidate.Result{}, nil
		}),
		Cron: "30 3 * * *",
		now:  func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.Observe("a")

	ctx := context.Background()
	s.cronSweep(ctx)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	// Same minute again: already ran today.
	s.cronSweep(ctx)
	if calls != 1 {
		t.Fatalf("calls = %d after repeat, want 1", calls)
	}
	// Next day fires again.
	now = now.AddDate(0, 0, 1)
	s.cronSweep(ctx)
	if calls != 2 {
		t.Fatalf("calls = %d next day, want 2", calls)
	}
}

func TestIdleSweep(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	calls := 0
	s, err := New(Config{
		Runner: RunnerFunc(func(ctx context.Context, agentID string) (*consolidate.Result, error) {
			calls++
			return &consolidate.Result{}, nil
		}),
		IdleThreshold: 30 * time.Minute,
		MinInterval:   time.Hour,
		now:           func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.Observe("a")

	ctx := context.Background()
	s.idleSweep(ctx)
	if calls != 0 {
		t.Fatal("agent not yet idle, sweep should not trigger")
	}
	now = now.Add(45 * time.Minute)
	s.idleSweep(ctx)
	if calls != 1 {
		t.Fatalf("calls = %d after idle, want 1", calls)
	}
}
