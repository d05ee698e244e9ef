package log

import (
	"errors"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"":      LevelInfo,
		"debug": LevelDebug,
		"INFO":  LevelInfo,
		"warn":  LevelWarn,
		"ERROR": LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud) succeeded")
	}
}

func TestSetLevel(t *testing.T) {
	defer SetLevel(LevelInfo)

	SetLevel(LevelDebug)
	if !level.Enabled(zapcore.DebugLevel) {
		t.Error("debug not enabled after SetLevel(DEBUG)")
	}
	SetLevel(LevelError)
	if level.Enabled(zapcore.WarnLevel) {
		t.Error("warn enabled after SetLevel(ERROR)")
	}
}

func TestSetFormat(t *testing.T) {
	defer func() { _ = SetFormat(FormatConsole) }()

	if err := SetFormat("xml"); err == nil {
		t.Error("SetFormat(xml) succeeded")
	}
	if err := SetFormat(FormatJSON); err != nil {
		t.Fatal(err)
	}
	Info("json logger ready", "format", FormatJSON)
	Error("sample failure", errors.New("boom"), "k", 1)
}
