package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "debug", Output: &buf})

	l.Info().Fields([]any{"source", "Finextra", "items", 12}).Msg("feed parsed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["message"] != "feed parsed" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["source"] != "Finextra" {
		t.Errorf("source = %v", entry["source"])
	}
	if entry["items"] != float64(12) {
		t.Errorf("items = %v", entry["items"])
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "warn", Output: &buf})

	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn line missing: %s", out)
	}
}

func TestNew_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "verbose", Output: &buf})

	l.Debug().Msg("debug")
	l.Info().Msg("info")

	if strings.Contains(buf.String(), `"debug"`) && strings.Contains(buf.String(), `"message":"debug"`) {
		t.Errorf("debug line should be filtered: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"message":"info"`) {
		t.Errorf("info line missing: %s", buf.String())
	}
}
