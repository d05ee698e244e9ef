package chrono

import (
	"fmt"
	"strconv"
)

// Kind classifies a parse failure. A Kind is itself an error so callers can
// match on it with errors.Is:
//
//	if errors.Is(err, chrono.FieldOutOfRange) { ... }
type Kind int

const (
	// InvalidFormat: the pattern has no well-formed {:...} span, or it uses
	// an unsupported specifier or character.
	InvalidFormat Kind = iota + 1
	// MalformedNumber: expected digits are missing or non-numeric.
	MalformedNumber
	// TruncatedInput: the input ends before a field can be read.
	TruncatedInput
	// FieldOutOfRange: a parsed value violates its field's bound.
	FieldOutOfRange
	// LiteralMismatch: a literal separator in the pattern does not match
	// the input.
	LiteralMismatch
	// InvalidDesignator: zone marker or AM/PM token is not recognized.
	InvalidDesignator
)

var kindNames = map[Kind]string{
	InvalidFormat:     "invalid format",
	MalformedNumber:   "malformed number",
	TruncatedInput:    "truncated input",
	FieldOutOfRange:   "field out of range",
	LiteralMismatch:   "literal mismatch",
	InvalidDesignator: "invalid designator",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

func (k Kind) Error() string { return "chrono: " + k.String() }

// Error describes where and why a parse failed.
type Error struct {
	Kind Kind
	// Field names the calendar field or pattern element involved
	// ("year", "month", "zone", "pattern", ...).
	Field string
	// Pos is the byte offset into the input text, or into the pattern for
	// InvalidFormat errors. It is -1 when no position applies.
	Pos int
	Msg string
}

func (e *Error) Error() string {
	s := "chrono: " + e.Kind.String()
	if e.Field != "" {
		s += " in " + e.Field
	}
	if e.Pos >= 0 {
		s += " at offset " + strconv.Itoa(e.Pos)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

// Unwrap exposes the Kind so errors.Is(err, kind) works.
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind Kind, field string, pos int, format string, args ...any) *Error {
	return &Error{Kind: kind, Field: field, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
