package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")

	logger.Info("hidden")
	logger.Warn("shown", "player", "p1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the warn line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected json output: %v", err)
	}
	if entry["msg"] != "shown" || entry["player"] != "p1" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewLoggerFallsBackToInfoText(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "loud", "")

	logger.Debug("hidden")
	logger.Info("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "msg=shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
