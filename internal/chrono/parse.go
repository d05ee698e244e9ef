// Package chrono parses timestamps with strftime-like patterns such as
// "{:%FT%T.%f%z}".
//
// Only the first {:...} span of a pattern is applied. Inside it the
// specifiers %Y %m %d %F %H %M %S %T %f %z %p are recognized, and the
// characters ' ', '-', '/', '.', ':' and 'T' must match the input literally.
// Calendar arithmetic is done here rather than through the time package, and
// results are returned as UTC time.Time values with nanosecond precision.
package chrono

import "time"

// Parse parses text according to pattern.
func Parse(pattern, text string) (time.Time, error) {
	l, err := Compile(pattern)
	if err != nil {
		return time.Time{}, err
	}
	return l.Parse(text)
}

// MustParse is like Parse but panics on error.
func MustParse(pattern, text string) time.Time {
	t, err := Parse(pattern, text)
	if err != nil {
		panic(err)
	}
	return t
}

// Parse parses text with the compiled layout.
func (l *Layout) Parse(text string) (time.Time, error) {
	c, err := l.run(text)
	if err != nil {
		return time.Time{}, err
	}
	secs, err := c.EpochSeconds()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, int64(c.Nanosecond)).UTC(), nil
}

// ParseCalendar parses text and returns the broken-down time, already
// shifted to UTC by any %z offset.
func (l *Layout) ParseCalendar(text string) (CalendarTime, error) {
	return l.run(text)
}
