package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunLimitedRespectsCeiling(t *testing.T) {
	const limit = 2
	const n = 8

	var inFlight, peak atomic.Int32
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = func() error {
			cur := inFlight.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		}
	}

	errs := RunLimited(context.Background(), tasks, limit)
	for i, err := range errs {
		if err != nil {
			t.Errorf("errs[%d] = %v, want nil", i, err)
		}
	}
	if got := peak.Load(); got > limit {
		t.Fatalf("peak in-flight = %d, want <= %d", got, limit)
	}
	if got := inFlight.Load(); got != 0 {
		t.Fatalf("in-flight after return = %d, want 0", got)
	}
}

// A failing task settles its own slot; the rest run to completion.
func TestRunLimitedErrorIsolation(t *testing.T) {
	boom := errors.New("boom")
	var ran atomic.Int32
	tasks := []Task{
		func() error { ran.Add(1); return nil },
		func() error { ran.Add(1); return boom },
		func() error { ran.Add(1); return nil },
		func() error { ran.Add(1); return nil },
	}

	errs := RunLimited(context.Background(), tasks, 2)
	if got := ran.Load(); got != 4 {
		t.Fatalf("ran = %d, want 4", got)
	}
	if errs[1] != boom {
		t.Errorf("errs[1] = %v, want boom", errs[1])
	}
	for _, i := range []int{0, 2, 3} {
		if errs[i] != nil {
			t.Errorf("errs[%d] = %v, want nil", i, errs[i])
		}
	}
}

func TestRunLimitedZeroLimitFallsBack(t *testing.T) {
	var peak, inFlight atomic.Int32
	tasks := make([]Task, 6)
	for i := range tasks {
		tasks[i] = func() error {
			cur := inFlight.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		}
	}
	RunLimited(context.Background(), tasks, 0)
	if got := peak.Load(); got > DefaultConcurrency {
		t.Fatalf("peak = %d, want <= default %d", got, DefaultConcurrency)
	}
}

// Tasks still queued when the context expires settle with the context
// error instead of running.
func TestRunLimitedContextExpiry(t *testing.T) {
	release := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	var ran atomic.Int32
	blocker := func() error {
		ran.Add(1)
		<-release
		return nil
	}
	tasks := []Task{blocker, blocker, blocker, blocker}

	done := make(chan []error, 1)
	go func() { done <- RunLimited(ctx, tasks, 2) }()

	// Let the first two occupy both slots, then expire the rest.
	deadline := time.After(5 * time.Second)
	for ran.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for slots to fill")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	// Give the two queued goroutines time to observe the cancellation
	// while both slots are still held.
	time.Sleep(50 * time.Millisecond)
	close(release)

	errs := <-done
	var canceled int
	for _, err := range errs {
		if errors.Is(err, context.Canceled) {
			canceled++
		}
	}
	if canceled != 2 {
		t.Fatalf("canceled = %d, want the 2 queued tasks", canceled)
	}
	if got := ran.Load(); got != 2 {
		t.Fatalf("ran = %d, want 2", got)
	}
}

func TestRunLimitedEmpty(t *testing.T) {
	errs := RunLimited(context.Background(), nil, 3)
	if len(errs) != 0 {
		t.Fatalf("errs = %v, want empty", errs)
	}
}
