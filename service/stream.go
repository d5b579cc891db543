package service

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
)

// StreamHandler receives normalized events from a consumed stream.
// Nil callbacks are skipped.
type StreamHandler struct {
	OnContent  func(payload json.RawMessage)
	OnComplete func(payload json.RawMessage)
	OnDone     func()
	OnError    func(message string)
}

// ConsumeStream reads the response body line by line and dispatches each
// complete line through the frame parser chain. Partial lines are carried
// across reads, so chunk boundaries never split or duplicate bytes. After
// a terminal frame (complete/done/error) no further callbacks fire, but
// the loop keeps draining until the reader is exhausted. The returned
// error is transport-level only; protocol outcomes are reported through
// the handler.
func ConsumeStream(ctx context.Context, body io.Reader, h StreamHandler) error {
	reader := bufio.NewReader(body)
	terminal := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := reader.ReadString('\n')
		if line != "" && !terminal {
			terminal = dispatchLine(line, h)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// dispatchLine parses one line and invokes the matching callback.
// Returns true when the line carried a terminal frame. A complete frame
// delivers its payload through OnContent first so the caller's content
// fold sees the final value, then fires OnComplete.
func dispatchLine(line string, h StreamHandler) bool {
	ev := ParseLine(line)
	if ev == nil {
		return false
	}
	switch ev.Kind {
	case EventPartial:
		if h.OnContent != nil {
			h.OnContent(ev.Payload)
		}
	case EventComplete:
		if h.OnContent != nil {
			h.OnContent(ev.Payload)
		}
		if h.OnComplete != nil {
			h.OnComplete(ev.Payload)
		}
		return true
	case EventDone:
		if h.OnDone != nil {
			h.OnDone()
		}
		return true
	case EventError:
		if h.OnError != nil {
			h.OnError(ev.Err)
		}
		return true
	}
	return false
}
