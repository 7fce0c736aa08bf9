package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewConsole(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New(&buf, "warn", "console")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level:\n%s", out)
	}
	if !strings.Contains(out, "warn\tshown") {
		t.Errorf("expected warning line, got:\n%s", out)
	}
}

func TestNewJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New(&buf, "debug", "json")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug("analysed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decoding %q: %v", buf.String(), err)
	}
	if entry["msg"] != "analysed" || entry["level"] != "debug" {
		t.Errorf("unexpected entry: %v", entry)
	}
	ts, _ := entry["ts"].(string)
	if !strings.HasSuffix(ts, "Z") {
		t.Errorf("timestamp should be RFC3339 UTC, got %q", ts)
	}
}

func TestNewErrors(t *testing.T) {
	t.Parallel()

	if _, err := New(&bytes.Buffer{}, "loud", "console"); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
