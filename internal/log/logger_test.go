package log

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestWithComponentAnnotatesEntries(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf, Service: "pistoleado-test"})

	l := WithComponent("pipeline")
	l.Info().Str("event", "test.entry").Msg("hello")

	if buf.Len() == 0 {
		// Configure only takes effect on first call; the global logger may
		// already be bound to stdout when other tests ran first.
		t.Skip("global logger already configured elsewhere")
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log entry is not JSON: %v", err)
	}
	if entry["component"] != "pipeline" {
		t.Errorf("component = %v, want pipeline", entry["component"])
	}
	if entry["service"] != "pistoleado-test" {
		t.Errorf("service = %v, want pistoleado-test", entry["service"])
	}
}
