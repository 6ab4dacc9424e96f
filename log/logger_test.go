package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLogger_BakesInJobID(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Context{JobID: "job-123"}).WithOutput(&buf)

	l.Info("sprite generated", map[string]any{"stage": "upscale"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry["job_id"] != "job-123" {
		t.Errorf("expected job_id=job-123, got %v", entry["job_id"])
	}
	if entry["message"] != "sprite generated" {
		t.Errorf("expected message=%q, got %v", "sprite generated", entry["message"])
	}
}

func TestNewLogger_BakesInMatchID(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Context{MatchID: "match-456", Attempt: 2}).WithOutput(&buf)

	l.Warn("ai targeting fallback", nil)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry["match_id"] != "match-456" {
		t.Errorf("expected match_id=match-456, got %v", entry["match_id"])
	}
	if entry["attempt"] != float64(2) {
		t.Errorf("expected attempt=2, got %v", entry["attempt"])
	}
}

func TestSugaredLogger_Infof(t *testing.T) {
	var buf bytes.Buffer
	sugar := NewLogger(Context{JobID: "job-1"}).WithOutput(&buf).Sugar()

	sugar.Infof("retrying stage %s, attempt %d", "generate", 3)

	if got := buf.String(); !strings.Contains(got, "retrying stage generate, attempt 3") {
		t.Errorf("expected log output to contain %q, got %q", "retrying stage generate, attempt 3", got)
	}
}
