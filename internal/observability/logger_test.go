package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, false)
	logger.Info().Str("session_id", "abc").Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["session_id"] != "abc" || entry["message"] != "hello" {
		t.Errorf("Unexpected log entry: %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("Expected timestamp field")
	}
}

func TestNewCorrelationID(t *testing.T) {
	a, b := NewCorrelationID(), NewCorrelationID()
	if a == "" || a == b {
		t.Errorf("Expected unique non-empty ids, got %q and %q", a, b)
	}
}

func TestWithCorrelationID(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"given", "req-42"},
		{"generated", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := WithCorrelationID(NewLogger(&buf, false).With().Str("component", "session").Logger(), tt.id)
			logger.Info().Msg("tagged")

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
			}
			id, _ := entry["correlation_id"].(string)
			if id == "" || (tt.id != "" && id != tt.id) {
				t.Errorf("Unexpected correlation_id %q", id)
			}
			if entry["component"] != "session" {
				t.Errorf("Expected parent fields kept, got %v", entry)
			}
		})
	}
}
