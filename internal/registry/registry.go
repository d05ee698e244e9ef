// Package registry holds the compiled timestamp layouts named in the config.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"chronoparse/internal/chrono"
	"chronoparse/internal/config"
	"chronoparse/internal/model"
)

// ErrUnknownPattern is returned when a pattern name is not configured.
var ErrUnknownPattern = errors.New("unknown pattern name")

// Registry maps pattern names to compiled layouts. It is read-only after
// New and safe for concurrent use.
type Registry struct {
	def   *chrono.Layout
	named map[string]*chrono.Layout
}

// New compiles the default and named patterns from cfg.
func New(cfg *config.Config) (*Registry, error) {
	def, err := chrono.Compile(cfg.DefaultPattern)
	if err != nil {
		return nil, fmt.Errorf("default pattern %q: %w", cfg.DefaultPattern, err)
	}
	r := &Registry{def: def, named: make(map[string]*chrono.Layout, len(cfg.Patterns))}
	// Sorted names make the first reported bad pattern deterministic.
	for _, name := range cfg.PatternNames() {
		p, _ := cfg.Pattern(name)
		l, err := chrono.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %s=%q: %w", name, p, err)
		}
		r.named[name] = l
	}
	return r, nil
}

// Resolve picks the layout for a request: an explicit pattern wins, then a
// configured name, then the default.
func (r *Registry) Resolve(name, pattern string) (*chrono.Layout, error) {
	if pattern != "" {
		return chrono.Compile(pattern)
	}
	if name == "" {
		return r.def, nil
	}
	l, ok := r.named[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, name)
	}
	return l, nil
}

// ParseAll parses each text with the resolved layout. A resolution error
// is returned directly; per-text failures are reported in the results.
func (r *Registry) ParseAll(name, pattern string, texts []string) ([]model.ParseResult, error) {
	l, err := r.Resolve(name, pattern)
	if err != nil {
		return nil, err
	}
	out := make([]model.ParseResult, 0, len(texts))
	for _, text := range texts {
		t, err := l.Parse(text)
		out = append(out, model.ParseResult{Pattern: l.String(), Text: text, Time: t, Err: err})
	}
	return out, nil
}

// Patterns returns the configured name → pattern pairs, sorted by name.
func (r *Registry) Patterns() []NamedPattern {
	out := make([]NamedPattern, 0, len(r.named))
	for name, l := range r.named {
		out = append(out, NamedPattern{Name: name, Pattern: l.String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Default returns the default layout.
func (r *Registry) Default() *chrono.Layout { return r.def }

// NamedPattern is one configured name → pattern pair.
type NamedPattern struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}
