package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func capture(t *testing.T, level Level, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	defer func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	}()
	fn()
	return buf.String()
}

func TestInfoFormatsKeyValues(t *testing.T) {
	out := capture(t, LevelInfo, func() {
		Info("record generated", "uid", "abc@timesync", "attendees", 2)
	})
	if !strings.Contains(out, "[INFO] record generated uid=abc@timesync attendees=2") {
		t.Errorf("unexpected line: %q", out)
	}
}

func TestErrorPrependsErr(t *testing.T) {
	out := capture(t, LevelInfo, func() {
		Error("resolve failed", errors.New("boom"), "field", "date")
	})
	if !strings.Contains(out, "[ERROR] resolve failed err=boom field=date") {
		t.Errorf("unexpected line: %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	out := capture(t, LevelWarn, func() {
		Debug("hidden")
		Info("hidden too")
		Warn("shown")
	})
	if strings.Contains(out, "hidden") {
		t.Errorf("suppressed levels leaked: %q", out)
	}
	if !strings.Contains(out, "[WARN] shown") {
		t.Errorf("warn missing: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		" warn ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"verbose": LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
