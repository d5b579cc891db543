package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// statusRecorder collects the lifecycle transitions a session reports.
type statusRecorder struct {
	mu       sync.Mutex
	statuses []ModuleStatus
	contents []string
}

func (r *statusRecorder) handler() SessionHandler {
	return SessionHandler{
		OnContent: func(p json.RawMessage) {
			r.mu.Lock()
			r.contents = append(r.contents, string(p))
			r.mu.Unlock()
		},
		OnStatus: func(_ ModuleKey, status ModuleStatus) {
			r.mu.Lock()
			r.statuses = append(r.statuses, status)
			r.mu.Unlock()
		},
	}
}

func (r *statusRecorder) snapshot() ([]ModuleStatus, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ModuleStatus(nil), r.statuses...), append([]string(nil), r.contents...)
}

func streamServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}))
}

func TestSessionStartCompletes(t *testing.T) {
	srv := streamServer(t,
		`data: {"type":"data-partial","data":{"data":"He"}}`,
		`data: {"type":"data-partial","data":{"data":"Hello"}}`,
		`data: {"type":"data-complete","data":{"data":"Hello world"}}`,
	)
	defer srv.Close()

	var rec statusRecorder
	sess := NewSession(NewClient(srv.URL), ModuleBrief, rec.handler())

	if err := sess.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := sess.Status(); got != StatusComplete {
		t.Fatalf("status = %v, want complete", got)
	}

	statuses, contents := rec.snapshot()
	wantStatuses := []ModuleStatus{StatusLoading, StatusStreaming, StatusComplete}
	if len(statuses) != len(wantStatuses) {
		t.Fatalf("statuses = %v, want %v", statuses, wantStatuses)
	}
	for i := range wantStatuses {
		if statuses[i] != wantStatuses[i] {
			t.Errorf("statuses[%d] = %v, want %v", i, statuses[i], wantStatuses[i])
		}
	}
	if len(contents) != 3 || contents[2] != `"Hello world"` {
		t.Errorf("contents = %v, want three snapshots ending in the complete payload", contents)
	}
}

func TestSessionStartFrameError(t *testing.T) {
	srv := streamServer(t,
		`data: {"type":"data-partial","data":{"data":"partial"}}`,
		`data: {"type":"error","error":"rate limited"}`,
	)
	defer srv.Close()

	var rec statusRecorder
	sess := NewSession(NewClient(srv.URL), ModuleMCQs, rec.handler())

	err := sess.Start(context.Background(), "")
	if !IsStreamError(err) {
		t.Fatalf("err = %v, want stream error", err)
	}
	if got := sess.Status(); got != StatusError {
		t.Fatalf("status = %v, want error", got)
	}
	if got := sess.ErrMessage(); got != "rate limited" {
		t.Errorf("ErrMessage = %q, want %q", got, "rate limited")
	}
}

func TestSessionStartNonOKResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":"too many concurrent generations"}`)
	}))
	defer srv.Close()

	sess := NewSession(NewClient(srv.URL), ModuleTopics, SessionHandler{})
	err := sess.Start(context.Background(), "")
	if !IsAPIError(err) {
		t.Fatalf("err = %v, want API error", err)
	}
	if got := sess.Status(); got != StatusError {
		t.Fatalf("status = %v, want error", got)
	}
	if got := sess.ErrMessage(); got != "too many concurrent generations" {
		t.Errorf("ErrMessage = %q, want server message", got)
	}
}

// An aborted stream settles to idle, never error.
func TestSessionAbortLandsIdle(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `data: {"type":"data-partial","data":{"data":"first"}}`)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	var rec statusRecorder
	sess := NewSession(NewClient(srv.URL), ModuleRapidFire, rec.handler())

	done := make(chan error, 1)
	go func() { done <- sess.Start(context.Background(), "") }()

	// Wait for the first frame before aborting.
	deadline := time.After(5 * time.Second)
	for {
		if _, contents := rec.snapshot(); len(contents) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for first frame")
		case <-time.After(5 * time.Millisecond):
		}
	}

	sess.Abort()
	if err := <-done; err != nil {
		t.Fatalf("Start after abort: %v", err)
	}
	if got := sess.Status(); got != StatusIdle {
		t.Fatalf("status = %v, want idle", got)
	}
}

func TestSessionAddMore(t *testing.T) {
	var gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		fmt.Fprintln(w, `2:["object-part",{"data":{"mcqs":[{"q":"extra"}]}}]`)
		fmt.Fprintln(w, `d:{"finishReason":"complete"}`)
	}))
	defer srv.Close()

	var rec statusRecorder
	sess := NewSession(NewClient(srv.URL), ModuleMCQs, rec.handler())

	if err := sess.AddMore(context.Background(), 5, "harder"); err != nil {
		t.Fatalf("AddMore: %v", err)
	}
	if gotPath != "/api/generate/more" {
		t.Errorf("path = %q, want /api/generate/more", gotPath)
	}
	var req struct {
		Module ModuleKey `json:"module"`
		Count  int       `json:"count"`
	}
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if req.Module != ModuleMCQs || req.Count != 5 {
		t.Errorf("request = %+v, want mcqs count 5", req)
	}
	if got := sess.Status(); got != StatusComplete {
		t.Fatalf("status = %v, want complete", got)
	}
	if _, contents := rec.snapshot(); len(contents) != 1 {
		t.Errorf("contents = %v, want one append payload", contents)
	}
}

func TestSessionTryResumeNothingToResume(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sess := NewSession(NewClient(srv.URL), ModuleBrief, SessionHandler{})
	resumed, job, err := sess.TryResume(context.Background())
	if err != nil {
		t.Fatalf("TryResume: %v", err)
	}
	if resumed || job != nil {
		t.Errorf("resumed=%v job=%+v, want false and nil", resumed, job)
	}
	if got := sess.Status(); got != StatusIdle {
		t.Errorf("status = %v, want idle", got)
	}
}

func TestSessionTryResumeAttachesMidStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderResumedStream, "1")
		fmt.Fprintln(w, `data: {"type":"data-partial","data":{"data":"resumed so far"}}`)
		fmt.Fprintln(w, `data: {"type":"data-complete","data":{"data":"resumed final"}}`)
	}))
	defer srv.Close()

	var rec statusRecorder
	sess := NewSession(NewClient(srv.URL), ModuleTopics, rec.handler())

	resumed, job, err := sess.TryResume(context.Background())
	if err != nil {
		t.Fatalf("TryResume: %v", err)
	}
	if !resumed || job != nil {
		t.Fatalf("resumed=%v job=%+v, want true and nil", resumed, job)
	}
	if got := sess.Status(); got != StatusComplete {
		t.Fatalf("status = %v, want complete", got)
	}

	// A resumed attach never passes through loading.
	statuses, contents := rec.snapshot()
	if len(statuses) == 0 || statuses[0] != StatusStreaming {
		t.Errorf("statuses = %v, want streaming first", statuses)
	}
	for _, st := range statuses {
		if st == StatusLoading {
			t.Errorf("statuses = %v, resumed session must not report loading", statuses)
		}
	}
	if len(contents) != 2 || contents[1] != `"resumed final"` {
		t.Errorf("contents = %v, want the mid-stream snapshots", contents)
	}
}

func TestSessionTryResumeReportsJobState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(JobStatus{State: JobActive, StreamID: "s-1"})
	}))
	defer srv.Close()

	sess := NewSession(NewClient(srv.URL), ModuleBrief, SessionHandler{})
	resumed, job, err := sess.TryResume(context.Background())
	if err != nil {
		t.Fatalf("TryResume: %v", err)
	}
	if resumed {
		t.Error("resumed = true, want false for a plain status body")
	}
	if job == nil || job.State != JobActive || job.StreamID != "s-1" {
		t.Errorf("job = %+v, want active s-1", job)
	}
}

// TryResume probes at most once per session instance.
func TestSessionTryResumeOnce(t *testing.T) {
	var probes int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sess := NewSession(NewClient(srv.URL), ModuleBrief, SessionHandler{})
	for i := 0; i < 3; i++ {
		if _, _, err := sess.TryResume(context.Background()); err != nil {
			t.Fatalf("TryResume #%d: %v", i, err)
		}
	}
	if probes != 1 {
		t.Fatalf("probes = %d, want 1", probes)
	}
}

// A non-OK probe is a quiet no-resume, not a session failure.
func TestSessionTryResumeProbeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sess := NewSession(NewClient(srv.URL), ModuleBrief, SessionHandler{})
	resumed, job, err := sess.TryResume(context.Background())
	if err != nil || resumed || job != nil {
		t.Fatalf("TryResume = (%v, %+v, %v), want quiet no-resume", resumed, job, err)
	}
	if got := sess.Status(); got != StatusIdle {
		t.Errorf("status = %v, want idle", got)
	}
}

// EOF without a terminal frame still lands the session in complete.
func TestSessionStreamEndsWithoutTerminalFrame(t *testing.T) {
	srv := streamServer(t,
		`data: {"type":"data-partial","data":{"data":"only a partial"}}`,
	)
	defer srv.Close()

	sess := NewSession(NewClient(srv.URL), ModuleBrief, SessionHandler{})
	if err := sess.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := sess.Status(); got != StatusComplete {
		t.Fatalf("status = %v, want complete", got)
	}
}

// A second Start cancels the in-flight request; last writer wins.
func TestSessionRestartCancelsPrior(t *testing.T) {
	firstStreaming := make(chan struct{})
	firstSettled := make(chan struct{})
	var mu sync.Mutex
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			fmt.Fprintln(w, `data: {"type":"data-partial","data":{"data":"slow"}}`)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			close(firstStreaming)
			<-r.Context().Done()
			return
		}
		// Hold the second response until the first run has settled so
		// the complete terminal is the last status written.
		<-firstSettled
		fmt.Fprintln(w, `data: {"type":"data-complete","data":{"data":"fast"}}`)
	}))
	defer srv.Close()

	sess := NewSession(NewClient(srv.URL), ModuleBrief, SessionHandler{})

	firstDone := make(chan error, 1)
	go func() { firstDone <- sess.Start(context.Background(), "") }()
	<-firstStreaming

	secondDone := make(chan error, 1)
	go func() { secondDone <- sess.Start(context.Background(), "") }()

	if err := <-firstDone; err != nil {
		t.Fatalf("first Start: %v", err)
	}
	close(firstSettled)
	if err := <-secondDone; err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if got := sess.Status(); got != StatusComplete {
		t.Fatalf("status = %v, want complete from the second run", got)
	}
}
