// Package starlarkchrono exposes the timestamp parser to Starlark scripts as
// the "chrono" module.
//
//	l = chrono.compile("{:%FT%T.%f%z}")
//	ns = l.parse("2023-04-30T16:22:18.500+0100")
//	ms = chrono.parse_millis("{:%F}", "2024-02-29")
//	chrono.days_in_month(2024, 2)  # 29
package starlarkchrono

import (
	"fmt"
	"io"
	"sort"

	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"chronoparse/internal/chrono"
)

// ModuleName is the name scripts see the module under.
const ModuleName = "chrono"

// Module is the Starlark chrono module.
var Module = &starlarkstruct.Module{
	Name: ModuleName,
	Members: starlark.StringDict{
		"compile":       starlark.NewBuiltin("compile", compile),
		"parse":         starlark.NewBuiltin("parse", parse),
		"parse_millis":  starlark.NewBuiltin("parse_millis", parseMillis),
		"parse_time":    starlark.NewBuiltin("parse_time", parseTime),
		"is_leap_year":  starlark.NewBuiltin("is_leap_year", isLeapYear),
		"days_in_month": starlark.NewBuiltin("days_in_month", daysInMonth),
	},
}

// LoadModule loads the chrono module.
func LoadModule() (starlark.StringDict, error) {
	return starlark.StringDict{ModuleName: Module}, nil
}

// Predeclared is the environment scripts run in: chrono plus the standard
// time module.
func Predeclared() starlark.StringDict {
	return starlark.StringDict{
		ModuleName:              Module,
		starlarktime.ModuleName: starlarktime.Module,
	}
}

// loaders maps load() module names to their loaders.
var loaders = map[string]func() (starlark.StringDict, error){
	ModuleName:              LoadModule,
	starlarktime.ModuleName: starlarktime.LoadModule,
}

// load resolves load("chrono", ...) and load("time", ...) statements.
func load(_ *starlark.Thread, module string) (starlark.StringDict, error) {
	fn, ok := loaders[module]
	if !ok {
		return nil, fmt.Errorf("load: unknown module %q", module)
	}
	return fn()
}

// ExecFile runs a script with the chrono environment. print() output goes
// to out. src follows starlark.ExecFile: nil reads filename from disk.
// Besides the predeclared modules, scripts may load("chrono", ...) and
// load("time", ...).
func ExecFile(filename string, src any, out io.Writer) (starlark.StringDict, error) {
	thread := &starlark.Thread{
		Name: filename,
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(out, msg)
		},
		Load: load,
	}
	return starlark.ExecFile(thread, filename, src, Predeclared())
}

func compile(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern); err != nil {
		return nil, err
	}
	l, err := chrono.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return &Layout{l: l}, nil
}

// unpackParse reads (pattern, text) and parses text.
func unpackParse(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (chrono.CalendarTime, error) {
	var pattern, text string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "text", &text); err != nil {
		return chrono.CalendarTime{}, err
	}
	l, err := chrono.Compile(pattern)
	if err != nil {
		return chrono.CalendarTime{}, fmt.Errorf("%s: %w", b.Name(), err)
	}
	ct, err := l.ParseCalendar(text)
	if err != nil {
		return chrono.CalendarTime{}, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return ct, nil
}

func epochNanos(ct chrono.CalendarTime) (starlark.Value, error) {
	secs, err := ct.EpochSeconds()
	if err != nil {
		return nil, err
	}
	// starlark.Int is arbitrary precision; years past 2262 stay exact.
	ns := starlark.MakeInt64(secs)
	ns = ns.Mul(starlark.MakeInt(1_000_000_000))
	return ns.Add(starlark.MakeInt(ct.Nanosecond)), nil
}

func parse(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	ct, err := unpackParse(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	return epochNanos(ct)
}

func parseMillis(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	ct, err := unpackParse(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	secs, err := ct.EpochSeconds()
	if err != nil {
		return nil, err
	}
	return starlark.MakeInt64(secs*1000 + int64(ct.Nanosecond/1_000_000)), nil
}

func parseTime(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, text string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "text", &text); err != nil {
		return nil, err
	}
	t, err := chrono.Parse(pattern, text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlarktime.Time(t), nil
}

func isLeapYear(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var year int
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &year); err != nil {
		return nil, err
	}
	return starlark.Bool(chrono.IsLeapYear(year)), nil
}

// daysInMonth takes a 1-based month, as scripts write dates.
func daysInMonth(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var year, month int
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &year, &month); err != nil {
		return nil, err
	}
	n := chrono.DaysInMonth(year, month-1)
	if n == 0 {
		return nil, fmt.Errorf("%s: month %d not in 1..12", b.Name(), month)
	}
	return starlark.MakeInt(n), nil
}

// Layout is a compiled pattern as a Starlark value.
type Layout struct {
	l *chrono.Layout
}

var _ starlark.HasAttrs = (*Layout)(nil)

func (l *Layout) String() string        { return fmt.Sprintf("chrono.layout(%q)", l.l.String()) }
func (l *Layout) Type() string          { return "chrono.layout" }
func (l *Layout) Freeze()               {}
func (l *Layout) Truth() starlark.Bool  { return starlark.True }
func (l *Layout) Hash() (uint32, error) { return starlark.String(l.l.String()).Hash() }

var layoutMethods = map[string]func(*Layout, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error){
	"parse": (*Layout).parse,
}

func (l *Layout) Attr(name string) (starlark.Value, error) {
	switch name {
	case "pattern":
		return starlark.String(l.l.String()), nil
	case "span":
		return starlark.String(l.l.Span()), nil
	}
	m, ok := layoutMethods[name]
	if !ok {
		return nil, nil
	}
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		return m(l, b, args, kwargs)
	}), nil
}

func (l *Layout) AttrNames() []string {
	names := []string{"pattern", "span"}
	for name := range layoutMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l *Layout) parse(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &text); err != nil {
		return nil, err
	}
	ct, err := l.l.ParseCalendar(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return epochNanos(ct)
}
