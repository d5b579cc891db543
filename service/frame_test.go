package service

import "testing"

func TestParseLineFormats(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		wantKind    EventKind
		wantPayload string
		wantErr     string
		wantNil     bool
	}{
		{
			name:        "ui message partial",
			line:        `data: {"type":"data-partial","data":{"data":"He"}}`,
			wantKind:    EventPartial,
			wantPayload: `"He"`,
		},
		{
			name:        "ui message partial without prefix",
			line:        `{"type":"data-partial","data":{"data":"He"}}`,
			wantKind:    EventPartial,
			wantPayload: `"He"`,
		},
		{
			name:        "ui message complete",
			line:        `data: {"type":"data-complete","data":{"data":"Hello world"}}`,
			wantKind:    EventComplete,
			wantPayload: `"Hello world"`,
		},
		{
			name:     "ui message error",
			line:     `data: {"type":"data-error","data":{"error":"model unavailable"}}`,
			wantKind: EventError,
			wantErr:  "model unavailable",
		},
		{
			name:        "coded object part",
			line:        `2:["object-part",{"data":{"mcqs":[]}}]`,
			wantKind:    EventPartial,
			wantPayload: `{"mcqs":[]}`,
		},
		{
			name:     "coded finish marker",
			line:     `d:{"finishReason":"complete"}`,
			wantKind: EventDone,
		},
		{
			name:     "coded error",
			line:     `3:"rate limited"`,
			wantKind: EventError,
			wantErr:  "rate limited",
		},
		{
			name:        "legacy content",
			line:        `data: {"type":"content","data":"chunk"}`,
			wantKind:    EventPartial,
			wantPayload: `"chunk"`,
		},
		{
			name:     "legacy done",
			line:     `data: {"type":"done"}`,
			wantKind: EventDone,
		},
		{
			name:     "legacy error",
			line:     `data: {"type":"error","error":"rate limited"}`,
			wantKind: EventError,
			wantErr:  "rate limited",
		},
		{
			name:    "empty line",
			line:    "",
			wantNil: true,
		},
		{
			name:    "whitespace only",
			line:    "   \t",
			wantNil: true,
		},
		{
			name:    "no colon and no prefix",
			line:    "heartbeat",
			wantNil: true,
		},
		{
			name:    "data prefix with malformed json",
			line:    `data: {not json`,
			wantNil: true,
		},
		{
			name:    "coded line with malformed payload",
			line:    `2:[not json`,
			wantNil: true,
		},
		{
			name:    "unknown type code",
			line:    `9:{"x":1}`,
			wantNil: true,
		},
		{
			name:    "unknown legacy type",
			line:    `data: {"type":"ping"}`,
			wantNil: true,
		},
		{
			name:    "coded object part without tag",
			line:    `2:["text-part",{"data":"x"}]`,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := ParseLine(tt.line)
			if tt.wantNil {
				if ev != nil {
					t.Fatalf("ParseLine(%q) = %+v, want nil", tt.line, ev)
				}
				return
			}
			if ev == nil {
				t.Fatalf("ParseLine(%q) = nil, want event", tt.line)
			}
			if ev.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", ev.Kind, tt.wantKind)
			}
			if string(ev.Payload) != tt.wantPayload {
				t.Errorf("payload = %q, want %q", ev.Payload, tt.wantPayload)
			}
			if ev.Err != tt.wantErr {
				t.Errorf("err = %q, want %q", ev.Err, tt.wantErr)
			}
		})
	}
}

// The three wire formats carrying the same logical content must
// normalize to the same event.
func TestParseLineFormatIndependence(t *testing.T) {
	lines := map[string]string{
		"ui message": `data: {"type":"data-partial","data":{"data":{"topic":"goroutines"}}}`,
		"coded":      `2:["object-part",{"data":{"topic":"goroutines"}}]`,
		"legacy":     `data: {"type":"content","data":{"topic":"goroutines"}}`,
	}
	for name, line := range lines {
		t.Run(name, func(t *testing.T) {
			ev := ParseLine(line)
			if ev == nil {
				t.Fatalf("ParseLine(%q) = nil", line)
			}
			if ev.Kind != EventPartial {
				t.Errorf("kind = %v, want EventPartial", ev.Kind)
			}
			if string(ev.Payload) != `{"topic":"goroutines"}` {
				t.Errorf("payload = %s, want {\"topic\":\"goroutines\"}", ev.Payload)
			}
		})
	}
}

// A line that parses under grammar 1 must not fall through to the coded
// parser even though it contains a colon.
func TestParseLineNoDoubleDispatch(t *testing.T) {
	line := `data: {"type":"data-error","data":{"error":"boom"}}`
	ev := ParseLine(line)
	if ev == nil || ev.Kind != EventError || ev.Err != "boom" {
		t.Fatalf("ParseLine(%q) = %+v, want error event %q", line, ev, "boom")
	}

	// The same line handed directly to the coded parser is a no-match:
	// its type code "data" is not a recognized code.
	if coded := ParseCodedLine(line); coded != nil {
		t.Fatalf("ParseCodedLine(%q) = %+v, want nil", line, coded)
	}
}
