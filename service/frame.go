package service

import (
	"encoding/json"
	"strings"
)

// EventKind classifies a normalized stream event.
type EventKind int

const (
	EventPartial EventKind = iota
	EventComplete
	EventDone
	EventError
)

// StreamEvent is the normalized form of one stream frame, whatever wire
// grammar it arrived in. Payload is meaningful for partial/complete, Err
// for error; done carries neither.
type StreamEvent struct {
	Kind    EventKind
	Payload json.RawMessage
	Err     string
}

const ssePrefix = "data: "

// ParseUIMessageLine parses the UI-message-stream format: an optional
// "data: " prefix followed by a JSON object with a type field of
// data-partial, data-complete or data-error. The payload sits at
// .data.data (partial/complete) or .data.error. Anything else, including
// malformed JSON, is a no-match.
func ParseUIMessageLine(line string) *StreamEvent {
	text := strings.TrimPrefix(line, ssePrefix)
	if !strings.HasPrefix(text, "{") {
		return nil
	}
	var frame struct {
		Type string `json:"type"`
		Data struct {
			Data  json.RawMessage `json:"data"`
			Error string          `json:"error"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(text), &frame); err != nil {
		return nil
	}
	switch frame.Type {
	case "data-partial":
		return &StreamEvent{Kind: EventPartial, Payload: frame.Data.Data}
	case "data-complete":
		return &StreamEvent{Kind: EventComplete, Payload: frame.Data.Data}
	case "data-error":
		return &StreamEvent{Kind: EventError, Err: frame.Data.Error}
	default:
		return nil
	}
}

// ParseCodedLine parses the coded data-stream protocol: TYPECODE:JSON,
// split at the first colon. Code 2 carries ["object-part", {data: ...}]
// partial content, code d is the finish marker, code 3 a JSON string
// error message. Lines with no colon or an unrecognized code are a
// no-match.
func ParseCodedLine(line string) *StreamEvent {
	code, rest, found := strings.Cut(line, ":")
	if !found {
		return nil
	}
	switch code {
	case "2":
		var parts []json.RawMessage
		if err := json.Unmarshal([]byte(rest), &parts); err != nil || len(parts) < 2 {
			return nil
		}
		var tag string
		if err := json.Unmarshal(parts[0], &tag); err != nil || tag != "object-part" {
			return nil
		}
		var body struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(parts[1], &body); err != nil {
			return nil
		}
		return &StreamEvent{Kind: EventPartial, Payload: body.Data}
	case "d":
		return &StreamEvent{Kind: EventDone}
	case "3":
		var msg string
		if err := json.Unmarshal([]byte(rest), &msg); err != nil {
			return nil
		}
		return &StreamEvent{Kind: EventError, Err: msg}
	default:
		return nil
	}
}

// ParseLegacyLine parses the legacy SSE format: a mandatory "data: "
// prefix followed by {type: content|done|error, data?, error?}.
func ParseLegacyLine(line string) *StreamEvent {
	if !strings.HasPrefix(line, ssePrefix) {
		return nil
	}
	var frame struct {
		Type  string          `json:"type"`
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
	}
	if err := json.Unmarshal([]byte(line[len(ssePrefix):]), &frame); err != nil {
		return nil
	}
	switch frame.Type {
	case "content":
		return &StreamEvent{Kind: EventPartial, Payload: frame.Data}
	case "done":
		return &StreamEvent{Kind: EventDone}
	case "error":
		return &StreamEvent{Kind: EventError, Err: frame.Error}
	default:
		return nil
	}
}

// ParseLine normalizes one stream line by trying the three grammars in
// priority order. The first grammar that produces an event wins, so a
// line is never dispatched twice. Empty lines and lines matching no
// grammar return nil.
func ParseLine(line string) *StreamEvent {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if ev := ParseUIMessageLine(line); ev != nil {
		return ev
	}
	if ev := ParseCodedLine(line); ev != nil {
		return ev
	}
	return ParseLegacyLine(line)
}
