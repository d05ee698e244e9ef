package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"chronoparse/internal/chrono"
	"chronoparse/internal/config"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Patterns = map[string]string{
		"date": "{:%F}",
		"iso":  "{:%FT%T.%f%z}",
	}
	r, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestResolve(t *testing.T) {
	r := newTestRegistry(t)
	tests := []struct {
		name, pattern string
		want          string
	}{
		{"", "", config.DefaultPattern},
		{"date", "", "{:%F}"},
		{"date", "{:%T}", "{:%T}"},
	}
	for _, tt := range tests {
		l, err := r.Resolve(tt.name, tt.pattern)
		if err != nil {
			t.Errorf("Resolve(%q, %q): %v", tt.name, tt.pattern, err)
			continue
		}
		if l.String() != tt.want {
			t.Errorf("Resolve(%q, %q) = %q, want %q", tt.name, tt.pattern, l, tt.want)
		}
	}

	if _, err := r.Resolve("nope", ""); !errors.Is(err, ErrUnknownPattern) {
		t.Errorf("Resolve(nope) error = %v, want %v", err, ErrUnknownPattern)
	}
	if _, err := r.Resolve("", "{%F}"); !errors.Is(err, chrono.InvalidFormat) {
		t.Errorf("Resolve bad pattern error = %v, want %v", err, chrono.InvalidFormat)
	}
}

func TestParseAll(t *testing.T) {
	r := newTestRegistry(t)
	res, err := r.ParseAll("iso", "", []string{"2023-04-30T16:22:18.500+0100", "2023-04-31T00:00:00.0Z"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 {
		t.Fatalf("got %d results", len(res))
	}
	if res[0].Err != nil || res[0].EpochMillis() != 1682868138500 {
		t.Errorf("first result = %+v", res[0])
	}
	if !errors.Is(res[1].Err, chrono.FieldOutOfRange) {
		t.Errorf("second result error = %v, want %v", res[1].Err, chrono.FieldOutOfRange)
	}
}

func TestNewRejectsBadPattern(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Patterns = map[string]string{"bad": "%F"}
	if _, err := New(cfg); !errors.Is(err, chrono.InvalidFormat) {
		t.Errorf("New error = %v, want %v", err, chrono.InvalidFormat)
	}
}

func TestNewReportsFirstBadPatternByName(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Patterns = map[string]string{"zulu": "%T", "alpha": "%F", "mid": "{:%F}"}
	for i := 0; i < 10; i++ {
		_, err := New(cfg)
		if err == nil || !strings.HasPrefix(err.Error(), `pattern alpha="%F"`) {
			t.Fatalf("New error = %v, want it to name alpha", err)
		}
	}
}

func TestPatterns(t *testing.T) {
	want := []NamedPattern{{"date", "{:%F}"}, {"iso", "{:%FT%T.%f%z}"}}
	if diff := cmp.Diff(want, newTestRegistry(t).Patterns()); diff != "" {
		t.Errorf("Patterns mismatch (-want +got):\n%s", diff)
	}
}
