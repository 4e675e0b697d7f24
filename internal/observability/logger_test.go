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
		{" WARN ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestComponentLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerTo(&buf, "debug", false)
	t.Cleanup(func() { InitLogger("info", false) })

	logger := Component("ask")
	logger.Debug().Str("endpoint", "http://127.0.0.1:5000/ask").Msg("sending question")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["component"] != "ask" || entry["level"] != "debug" || entry["message"] != "sending question" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestLevelFiltersOutput(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerTo(&buf, "warn", false)
	t.Cleanup(func() { InitLogger("info", false) })

	logger := WithSession(Component("ws"), "s-1")
	logger.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}

	logger.Warn().Msg("shown")
	if !bytes.Contains(buf.Bytes(), []byte(`"session_id":"s-1"`)) {
		t.Fatalf("expected session id in %q", buf.String())
	}
}

func TestNewSessionIDUnique(t *testing.T) {
	if NewSessionID() == NewSessionID() {
		t.Fatal("expected distinct session ids")
	}
}

func TestWithSessionGeneratesID(t *testing.T) {
	var buf bytes.Buffer
	logger := WithSession(zerolog.New(&buf), "")
	logger.Info().Msg("opened")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if id, _ := entry["session_id"].(string); id == "" {
		t.Fatalf("expected generated session id in %v", entry)
	}
}
