package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/emiliopalmerini/splitlab/internal/infrastructure/config"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.Log{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Debug("hidden")
	logger.Info("experiment started", "experiment_id", "exp-1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (debug filtered), got %d: %q", len(lines), buf.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if record["msg"] != "experiment started" || record["experiment_id"] != "exp-1" || record["service"] != "splitlab" {
		t.Errorf("unexpected record: %v", record)
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(config.Log{Level: "chatty", Format: "text"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}
