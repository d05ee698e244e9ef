package chrono

import "strings"

// specifiers maps the letter after '%' to its directive.
var specifiers = map[byte]fieldKind{
	'Y': fieldYear,
	'm': fieldMonth,
	'd': fieldDay,
	'F': fieldDate,
	'H': fieldHour,
	'M': fieldMinute,
	'S': fieldSecond,
	'T': fieldClock,
	'f': fieldFraction,
	'z': fieldZone,
	'p': fieldMeridiem,
}

// isLiteral reports whether c may appear as a literal separator inside the
// active span.
func isLiteral(c byte) bool {
	switch c {
	case ' ', '-', '/', '.', ':', 'T':
		return true
	}
	return false
}

type directive struct {
	kind fieldKind
	lit  byte // expected byte for fieldLiteral
}

// A Layout is a compiled pattern. It is immutable and safe for concurrent
// use.
type Layout struct {
	pattern    string
	span       string
	directives []directive
}

// String returns the pattern the layout was compiled from.
func (l *Layout) String() string { return l.pattern }

// Span returns the body of the active {:...} span, without the braces and
// colon.
func (l *Layout) Span() string { return l.span }

// Compile validates pattern and prepares it for parsing. Only the first
// {:...} span is used; text around it is ignored.
func Compile(pattern string) (*Layout, error) {
	body, offset, err := activeSpan(pattern)
	if err != nil {
		return nil, err
	}

	dirs := make([]directive, 0, len(body))
	for i := 0; i < len(body); {
		c := body[i]
		switch {
		case c == '%':
			if i+1 >= len(body) {
				return nil, newError(InvalidFormat, "pattern", offset+i, "dangling '%%'")
			}
			kind, ok := specifiers[body[i+1]]
			if !ok {
				return nil, newError(InvalidFormat, "pattern", offset+i, "unsupported specifier %%%c", body[i+1])
			}
			dirs = append(dirs, directive{kind: kind})
			i += 2
		case isLiteral(c):
			dirs = append(dirs, directive{kind: fieldLiteral, lit: c})
			i++
		default:
			return nil, newError(InvalidFormat, "pattern", offset+i, "unexpected character %q", c)
		}
	}

	return &Layout{pattern: pattern, span: body, directives: dirs}, nil
}

// activeSpan locates the first {:...} span and returns its body and the
// pattern offset at which the body starts.
func activeSpan(pattern string) (string, int, error) {
	begin := strings.IndexByte(pattern, '{')
	if begin < 0 {
		return "", 0, newError(InvalidFormat, "pattern", -1, "missing '{'")
	}
	if strings.IndexByte(pattern[:begin], '}') >= 0 {
		return "", 0, newError(InvalidFormat, "pattern", strings.IndexByte(pattern, '}'), "'}' before '{'")
	}
	rel := strings.IndexByte(pattern[begin:], '}')
	if rel < 0 {
		return "", 0, newError(InvalidFormat, "pattern", begin, "missing '}'")
	}
	end := begin + rel

	if end-begin < 2 || pattern[begin+1] != ':' {
		return "", 0, newError(InvalidFormat, "pattern", begin, "span must start with \"{:\"")
	}
	body := pattern[begin+2 : end]
	if body == "" {
		return "", 0, newError(InvalidFormat, "pattern", begin, "empty span")
	}
	if i := strings.IndexByte(body, '{'); i >= 0 {
		return "", 0, newError(InvalidFormat, "pattern", begin+2+i, "nested '{'")
	}
	return body, begin + 2, nil
}

// run walks the directives against text and returns the calendar time
// normalized to UTC.
func (l *Layout) run(text string) (CalendarTime, error) {
	p := newParser(text)
	for _, d := range l.directives {
		var err error
		if d.kind == fieldLiteral {
			err = p.expect(d.lit, "literal")
		} else {
			err = fieldParsers[d.kind](p)
		}
		if err != nil {
			return CalendarTime{}, err
		}
	}
	if p.pos < len(text) {
		return CalendarTime{}, newError(LiteralMismatch, "literal", p.pos, "unexpected trailing %q", text[p.pos:])
	}

	// The local date must be valid before the zone shift rolls it.
	if err := p.tm.validate(); err != nil {
		return CalendarTime{}, err
	}
	p.tm.ApplyOffset(p.offset)
	return p.tm, nil
}
