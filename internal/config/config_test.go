package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("default config mismatch (-want +got):\n%s", diff)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := fi.Mode().Perm(); perm != 0o600 {
		t.Errorf("config perm = %o, want 600", perm)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cfg, again, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("reloaded config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadUnwritableFirstRun(t *testing.T) {
	// A regular file as the parent directory makes the write fail even
	// when running as root.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(blocker, "config.yaml")

	cfg, err := Load(path)
	if err == nil {
		t.Fatal("Load succeeded with an unwritable path")
	}
	if cfg == nil {
		t.Fatal("Load returned nil config alongside the write error")
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("fallback config mismatch (-want +got):\n%s", diff)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		t.Error("config file was created")
	}
}

func TestLoadNormalizesPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
listen: "0.0.0.0:9000"
log_level: DEBUG
patterns:
  syslog: "{:%F %T}"
ics:
  - url: https://example.com/team.ics
    id: team
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "0.0.0.0:9000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.DefaultPattern != DefaultPattern {
		t.Errorf("DefaultPattern = %q, want %q", cfg.DefaultPattern, DefaultPattern)
	}
	if diff := cmp.Diff([]string{"syslog"}, cfg.PatternNames()); diff != "" {
		t.Errorf("PatternNames mismatch (-want +got):\n%s", diff)
	}
	if p, ok := cfg.Pattern("syslog"); !ok || p != "{:%F %T}" {
		t.Errorf("Pattern(syslog) = %q, %v", p, ok)
	}
	if p, ok := cfg.Pattern(""); !ok || p != DefaultPattern {
		t.Errorf("Pattern(\"\") = %q, %v", p, ok)
	}
	if _, ok := cfg.Pattern("missing"); ok {
		t.Error("Pattern(missing) found")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad pattern", "patterns:\n  broken: \"%F %T\"\n", "pattern"},
		{"bad default pattern", "default_pattern: \"{:%Q}\"\n", "pattern"},
		{"bad ics url", "ics:\n  - url: not a url\n", "url"},
		{"bad log level", "log_level: loud\n", "oneof"},
		{"bad refresh", "refresh: \"every minute\"\n", "cron"},
		{"bad yaml", "listen: [\n", "parse"},
	}
	for _, tt := range tests {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(tt.body), 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := Load(path)
		if err == nil {
			t.Errorf("%s: Load succeeded", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: error %q does not mention %q", tt.name, err, tt.want)
		}
	}
}

func TestSaveRejectsEmpty(t *testing.T) {
	if err := Save("", DefaultConfig()); err == nil {
		t.Error("Save with empty path succeeded")
	}
	if err := Save(filepath.Join(t.TempDir(), "c.yaml"), nil); err == nil {
		t.Error("Save with nil config succeeded")
	}
}
