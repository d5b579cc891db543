package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const (
	// DefaultPollInterval is how often an active server-side job is
	// re-probed while waiting for it to resolve.
	DefaultPollInterval = 2 * time.Second
	// DefaultPollCeiling bounds how long a poll loop may run before it
	// is abandoned, a second cancellation path independent of the
	// per-tick stop condition.
	DefaultPollCeiling = 5 * time.Minute
)

// ModuleUpdate is one visible state change reported by the coordinator.
type ModuleUpdate struct {
	Module  ModuleKey
	Status  ModuleStatus
	Content json.RawMessage
	ErrMsg  string
}

// Coordinator reconciles client state with server-side generation jobs
// that may have outlived the previous run: a job found active is tracked
// by polling until it resolves, a job already completed triggers an
// immediate content refetch, and modules with neither a job nor content
// are reported back for a fresh generation.
type Coordinator struct {
	client       *Client
	pollInterval time.Duration
	pollCeiling  time.Duration

	mu  sync.Mutex
	ran bool
}

// NewCoordinator creates a coordinator with the default poll settings.
func NewCoordinator(client *Client) *Coordinator {
	return &Coordinator{
		client:       client,
		pollInterval: DefaultPollInterval,
		pollCeiling:  DefaultPollCeiling,
	}
}

// SetPollInterval overrides the poll cadence. Zero or negative values
// are ignored.
func (c *Coordinator) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.pollInterval = d
	}
}

// SetPollCeiling overrides the absolute polling time limit.
func (c *Coordinator) SetPollCeiling(d time.Duration) {
	if d > 0 {
		c.pollCeiling = d
	}
}

// Run resolves every session's server-side state and returns the modules
// that need a fresh generation (no job, no persisted content). It runs
// at most once per coordinator lifetime; later calls are no-ops. Updates
// are delivered on the calling goroutine per module but modules resolve
// concurrently, so the callback must be safe for concurrent use.
func (c *Coordinator) Run(ctx context.Context, sessions []*Session, update func(ModuleUpdate)) []ModuleKey {
	c.mu.Lock()
	if c.ran {
		c.mu.Unlock()
		return nil
	}
	c.ran = true
	c.mu.Unlock()

	var wg sync.WaitGroup
	var pendingMu sync.Mutex
	var pending []ModuleKey

	for _, sess := range sessions {
		wg.Add(1)
		go func(sess *Session) {
			defer wg.Done()
			if c.checkSession(ctx, sess, update) {
				pendingMu.Lock()
				pending = append(pending, sess.Module())
				pendingMu.Unlock()
			}
		}(sess)
	}
	wg.Wait()

	return pending
}

// checkSession resolves one module and reports whether it still needs a
// fresh generation.
func (c *Coordinator) checkSession(ctx context.Context, sess *Session, update func(ModuleUpdate)) bool {
	module := sess.Module()

	resumed, job, err := sess.TryResume(ctx)
	if err != nil {
		Warnf("Resume check for %s failed: %v", module, err)
		return false
	}
	if resumed {
		// The session attached to the live stream and drove its own
		// updates to a terminal state; nothing left to coordinate.
		return false
	}

	state := JobNone
	if job != nil {
		state = job.State
	}

	switch state {
	case JobActive:
		update(ModuleUpdate{Module: module, Status: StatusLoading})
		c.track(ctx, module, update)
		return false
	case JobCompleted:
		// Completed before we ever showed a loading state: refetch
		// straight to complete.
		c.refetch(ctx, module, update)
		return false
	case JobError:
		update(ModuleUpdate{Module: module, Status: StatusError, ErrMsg: "generation failed"})
		return false
	default:
		content, err := c.client.FetchContent(ctx, module)
		if err != nil {
			Debugf("Content check for %s: %v", module, err)
			return true
		}
		if content != nil {
			update(ModuleUpdate{Module: module, Status: StatusComplete, Content: content})
			return false
		}
		return true
	}
}

// track polls an active job until it resolves or the ceiling passes.
// When the ceiling fires the loop is abandoned without a further update;
// an orphaned poll must not outlive its usefulness.
func (c *Coordinator) track(ctx context.Context, module ModuleKey, update func(ModuleUpdate)) {
	pollCtx, cancel := context.WithTimeout(ctx, c.pollCeiling)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pollCtx.Done():
			Warnf("Gave up waiting on %s after %s", module, c.pollCeiling)
			return
		case <-ticker.C:
		}

		probe, err := c.client.StreamStatus(pollCtx, module)
		if err != nil {
			Debugf("Status poll for %s: %v", module, err)
			continue
		}
		if probe.Resumed {
			// Polling never asks to attach; drop the body and keep
			// treating the job as active.
			probe.Body.Close()
			continue
		}

		state := JobNone
		if probe.Job != nil {
			state = probe.Job.State
		}
		switch state {
		case JobActive:
			continue
		case JobCompleted:
			c.refetch(pollCtx, module, update)
			return
		default:
			// error, or the job vanished out from under us
			update(ModuleUpdate{Module: module, Status: StatusError, ErrMsg: "generation failed"})
			return
		}
	}
}

// refetch pulls freshly persisted content and flips the module complete.
func (c *Coordinator) refetch(ctx context.Context, module ModuleKey, update func(ModuleUpdate)) {
	content, err := c.client.FetchContent(ctx, module)
	if err != nil {
		update(ModuleUpdate{Module: module, Status: StatusError, ErrMsg: failureMessage(err)})
		return
	}
	update(ModuleUpdate{Module: module, Status: StatusComplete, Content: content})
}
