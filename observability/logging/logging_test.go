package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetupEmitsStructuredJSON(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	logger := Setup("lendingd", "test", Options{Output: &buf, Level: slog.LevelDebug})
	logger.Debug("pool created", "pool", 3, MaskField("authorization", "Bearer abc"))

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["message"] != "pool created" || line["severity"] != "DEBUG" {
		t.Fatalf("unexpected envelope: %v", line)
	}
	if line["service"] != "lendingd" || line["env"] != "test" {
		t.Fatalf("missing service attributes: %v", line)
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("timestamp key not renamed: %v", line)
	}
	if line["authorization"] != RedactedValue {
		t.Fatalf("authorization not masked: %v", line["authorization"])
	}
}

func TestSetupRespectsLevel(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	logger := Setup("lendingd", "", Options{Output: &buf, Level: ParseLevel("warn")})
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info line written at warn level: %s", buf.String())
	}
}

func TestMaskField(t *testing.T) {
	if got := MaskField("pool", "7"); got.Value.String() != "7" {
		t.Fatalf("non-sensitive value masked: %v", got)
	}
	if got := MaskField("Token", ""); got.Value.String() != "" {
		t.Fatalf("empty value should stay empty")
	}
	if got := MaskField("secret", "x"); got.Value.String() != RedactedValue {
		t.Fatalf("secret not masked")
	}
}
