package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
)

// SessionHandler receives UI-visible updates from a generation session.
// The owner folds content payloads into its own model; the session only
// tracks lifecycle.
type SessionHandler struct {
	OnContent func(payload json.RawMessage)
	OnStatus  func(module ModuleKey, status ModuleStatus)
}

// Session is the per-module state machine owning one generation
// lifecycle: starting, resuming, aborting, and reporting terminal state.
// A session that reached Complete or Error stays there; retry is a new
// Start call, which implicitly aborts anything still in flight
// (last request wins, never two simultaneous requests per session).
type Session struct {
	client  *Client
	module  ModuleKey
	handler SessionHandler

	mu          sync.Mutex
	status      ModuleStatus
	errMsg      string
	cancel      context.CancelFunc
	resumeTried bool
}

// NewSession creates an idle session for one module.
func NewSession(client *Client, module ModuleKey, handler SessionHandler) *Session {
	return &Session{
		client:  client,
		module:  module,
		handler: handler,
		status:  StatusIdle,
	}
}

// Module returns the module this session owns.
func (s *Session) Module() ModuleKey {
	return s.module
}

// Status returns the current lifecycle state.
func (s *Session) Status() ModuleStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ErrMessage returns the failure message when Status is StatusError.
func (s *Session) ErrMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Start issues a fresh generation request and consumes the stream to a
// terminal state. It blocks until the stream settles; the returned error
// is nil for a completed or aborted run.
func (s *Session) Start(ctx context.Context, instructions string) error {
	reqCtx := s.begin(ctx)
	body, err := s.client.StartGeneration(reqCtx, s.module, instructions)
	if err != nil {
		return s.settle(err)
	}
	return s.consume(reqCtx, body)
}

// AddMore grows an existing result set instead of replacing it. The
// state machine is the same as Start; content callbacks carry items the
// caller appends, and the caller dedups against what it already holds.
func (s *Session) AddMore(ctx context.Context, count int, instructions string) error {
	reqCtx := s.begin(ctx)
	body, err := s.client.AddMore(reqCtx, s.module, count, instructions)
	if err != nil {
		return s.settle(err)
	}
	return s.consume(reqCtx, body)
}

// TryResume probes the status endpoint at most once per session
// instance. A 204 or non-OK probe leaves the session idle and reports
// the job state (nil when there is nothing to report). When the probe
// carries the resumed-stream marker, the session attaches to the body
// mid-stream: it goes straight to streaming, frames simply start
// arriving partway through.
func (s *Session) TryResume(ctx context.Context) (bool, *JobStatus, error) {
	s.mu.Lock()
	if s.resumeTried {
		s.mu.Unlock()
		return false, nil, nil
	}
	s.resumeTried = true
	s.mu.Unlock()

	probe, err := s.client.StreamStatus(ctx, s.module)
	if err != nil {
		if IsAPIError(err) {
			// Non-OK probe means nothing to resume, not a session failure.
			Debugf("Status probe for %s: %v", s.module, err)
			return false, nil, nil
		}
		return false, nil, err
	}
	if !probe.Resumed {
		return false, probe.Job, nil
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.status = StatusStreaming
	s.errMsg = ""
	s.mu.Unlock()
	s.notify(StatusStreaming)

	return true, nil, s.consume(reqCtx, probe.Body)
}

// Abort cancels any in-flight request. The resulting rejection is
// classified as cancellation and lands the session in idle, not error.
func (s *Session) Abort() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// begin cancels any prior in-flight request and moves to loading.
func (s *Session) begin(ctx context.Context) context.Context {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.status = StatusLoading
	s.errMsg = ""
	s.mu.Unlock()
	s.notify(StatusLoading)
	return reqCtx
}

// consume drives the stream consumer over the response body and settles
// the session from whatever terminal the stream produced. The body is
// closed on every exit path.
func (s *Session) consume(ctx context.Context, body io.ReadCloser) error {
	defer body.Close()

	var frameErr string
	sawFrameErr := false
	h := StreamHandler{
		OnContent: func(p json.RawMessage) {
			s.markStreaming()
			if s.handler.OnContent != nil {
				s.handler.OnContent(p)
			}
		},
		OnError: func(msg string) {
			sawFrameErr = true
			frameErr = msg
		},
	}

	err := ConsumeStream(ctx, body, h)
	switch {
	case err != nil:
		return s.settle(err)
	case sawFrameErr:
		return s.settle(&StreamError{Message: frameErr})
	default:
		s.setStatus(StatusComplete, "")
		return nil
	}
}

// settle maps a failure to its terminal state: cancellation back to
// idle, everything else to error with the most specific message
// available.
func (s *Session) settle(err error) error {
	if IsAbortError(err) {
		s.setStatus(StatusIdle, "")
		return nil
	}
	s.setStatus(StatusError, failureMessage(err))
	return err
}

// markStreaming flips loading to streaming on the first content frame.
func (s *Session) markStreaming() {
	s.mu.Lock()
	if s.status != StatusLoading {
		s.mu.Unlock()
		return
	}
	s.status = StatusStreaming
	s.mu.Unlock()
	s.notify(StatusStreaming)
}

func (s *Session) setStatus(status ModuleStatus, errMsg string) {
	s.mu.Lock()
	s.status = status
	s.errMsg = errMsg
	s.cancel = nil
	s.mu.Unlock()
	s.notify(status)
}

func (s *Session) notify(status ModuleStatus) {
	if s.handler.OnStatus != nil {
		s.handler.OnStatus(s.module, status)
	}
}

// failureMessage prefers the server-provided message over generic text.
func failureMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var streamErr *StreamError
	if errors.As(err, &streamErr) && streamErr.Message != "" {
		return streamErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "generation failed"
}
