package obslog

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestDebugSuppressedByDefault(t *testing.T) {
	os.Unsetenv("SKEIN_DEBUG")
	var buf bytes.Buffer
	l := New(&buf, false)
	l.Debugf("should not appear")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestDebugEmittedWhenEnabled(t *testing.T) {
	os.Setenv("SKEIN_DEBUG", "1")
	defer os.Unsetenv("SKEIN_DEBUG")
	var buf bytes.Buffer
	l := New(&buf, false)
	l.Debugf("hello %d", 42)
	if !strings.Contains(buf.String(), "hello 42") {
		t.Errorf("expected debug line in output, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "DEBUG") {
		t.Errorf("expected level tag in output, got %q", buf.String())
	}
}

func TestInfoWarnErrorAlwaysEmitted(t *testing.T) {
	os.Unsetenv("SKEIN_DEBUG")
	var buf bytes.Buffer
	l := New(&buf, false)
	l.Infof("info line")
	l.Warnf("warn line")
	l.Errorf("error line")
	out := buf.String()
	for _, want := range []string{"info line", "warn line", "error line", "INFO", "WARN", "ERROR"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Infof("anything")
}
