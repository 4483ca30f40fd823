package monitoring

import (
	"fmt"
	"testing"
)

func capture(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() {
		Logf = original
		SetVerbose(false)
	})

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := capture(t)

	Logf("dt = %.3f", 0.01)
	if len(*lines) != 1 || (*lines)[0] != "dt = 0.010" {
		t.Errorf("captured %q", *lines)
	}

	// Setting nil should mute without panicking.
	SetLogger(nil)
	Logf("muted")
	if len(*lines) != 1 {
		t.Errorf("no-op logger should not have triggered callback, got %q", *lines)
	}
}

func TestWarnf(t *testing.T) {
	lines := capture(t)

	Warnf("sample spacing varies by %.1f%%", 2.5)
	if len(*lines) != 1 || (*lines)[0] != "WARNING: sample spacing varies by 2.5%" {
		t.Errorf("captured %q", *lines)
	}
}

func TestDebugf(t *testing.T) {
	lines := capture(t)

	Debugf("hidden")
	if len(*lines) != 0 {
		t.Errorf("Debugf should be silent by default, got %q", *lines)
	}

	SetVerbose(true)
	if !Verbose() {
		t.Fatal("Verbose() = false after SetVerbose(true)")
	}
	Debugf("shown %d", 1)
	if len(*lines) != 1 || (*lines)[0] != "shown 1" {
		t.Errorf("captured %q", *lines)
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}
}
