package chrono

// fieldKind is the closed set of directives a compiled layout can hold.
type fieldKind uint8

const (
	fieldLiteral fieldKind = iota
	fieldYear
	fieldMonth
	fieldDay
	fieldDate
	fieldHour
	fieldMinute
	fieldSecond
	fieldClock
	fieldFraction
	fieldZone
	fieldMeridiem

	numFieldKinds
)

// seen flags record which fields the input has supplied so far.
type seen uint8

const (
	seenYear seen = 1 << iota
	seenMonth
	seenDay
	seenHour
)

const maxFractionDigits = 9

var fractionScale = [maxFractionDigits + 1]int{
	1, 1e8, 1e7, 1e6, 1e5, 1e4, 1e3, 1e2, 1e1, 1,
}

// maxZoneHHMM caps the combined HHMM magnitude of a numeric zone offset.
const maxZoneHHMM = 1200

// parser is the per-call cursor and calendar state. It never outlives a
// single Parse call.
type parser struct {
	text string
	pos  int

	tm     CalendarTime
	offset int // signed HHMM to add to reach UTC
	seen   seen
}

func newParser(text string) *parser {
	// Fields missing from the pattern default to 1970-01-01T00:00:00.
	return &parser{
		text: text,
		tm:   CalendarTime{Year: 1970 - yearBase, Day: 1},
	}
}

// fieldParsers is indexed by fieldKind. fieldLiteral is handled by the
// dispatcher because it needs the expected byte.
var fieldParsers = [numFieldKinds]func(*parser) error{
	fieldYear:     (*parser).parseYear,
	fieldMonth:    (*parser).parseMonth,
	fieldDay:      (*parser).parseDay,
	fieldDate:     (*parser).parseDate,
	fieldHour:     (*parser).parseHour,
	fieldMinute:   (*parser).parseMinute,
	fieldSecond:   (*parser).parseSecond,
	fieldClock:    (*parser).parseClock,
	fieldFraction: (*parser).parseFraction,
	fieldZone:     (*parser).parseZone,
	fieldMeridiem: (*parser).parseMeridiem,
}

// fixed reads a width-digit unsigned field at the cursor and checks it
// against [lo, hi].
func (p *parser) fixed(width, lo, hi int, field string) (int, error) {
	start := p.pos
	v, n, err := scanInt(p.text, p.pos, width, false, field)
	if err != nil {
		return 0, err
	}
	if v < lo || v > hi {
		return 0, newError(FieldOutOfRange, field, start, "%d not in %d..%d", v, lo, hi)
	}
	p.pos += n
	return v, nil
}

// expect consumes c at the cursor.
func (p *parser) expect(c byte, field string) error {
	if p.pos >= len(p.text) {
		return newError(TruncatedInput, field, p.pos, "want %q", c)
	}
	if p.text[p.pos] != c {
		return newError(LiteralMismatch, field, p.pos, "want %q, have %q", c, p.text[p.pos])
	}
	p.pos++
	return nil
}

// checkDay validates the day against the month length once year, month and
// day have all been parsed.
func (p *parser) checkDay() error {
	if p.seen&(seenYear|seenMonth|seenDay) != seenYear|seenMonth|seenDay {
		return nil
	}
	year := p.tm.FullYear()
	if dim := DaysInMonth(year, p.tm.Month); p.tm.Day > dim {
		return newError(FieldOutOfRange, "day", -1, "day %d exceeds %d days in %04d-%02d", p.tm.Day, dim, year, p.tm.Month+1)
	}
	return nil
}

func (p *parser) parseYear() error {
	v, err := p.fixed(4, 0, 9999, "year")
	if err != nil {
		return err
	}
	p.tm.Year = v - yearBase
	p.seen |= seenYear
	return p.checkDay()
}

func (p *parser) parseMonth() error {
	v, err := p.fixed(2, 1, 12, "month")
	if err != nil {
		return err
	}
	p.tm.Month = v - 1
	p.seen |= seenMonth
	return p.checkDay()
}

func (p *parser) parseDay() error {
	v, err := p.fixed(2, 1, 31, "day")
	if err != nil {
		return err
	}
	p.tm.Day = v
	p.seen |= seenDay
	return p.checkDay()
}

// parseDate handles %F, i.e. %Y-%m-%d.
func (p *parser) parseDate() error {
	if err := p.parseYear(); err != nil {
		return err
	}
	if err := p.expect('-', "date"); err != nil {
		return err
	}
	if err := p.parseMonth(); err != nil {
		return err
	}
	if err := p.expect('-', "date"); err != nil {
		return err
	}
	return p.parseDay()
}

func (p *parser) parseHour() error {
	v, err := p.fixed(2, 0, 23, "hour")
	if err != nil {
		return err
	}
	p.tm.Hour = v
	p.seen |= seenHour
	return nil
}

func (p *parser) parseMinute() error {
	v, err := p.fixed(2, 0, 59, "minute")
	if err != nil {
		return err
	}
	p.tm.Minute = v
	return nil
}

func (p *parser) parseSecond() error {
	v, err := p.fixed(2, 0, 59, "second")
	if err != nil {
		return err
	}
	p.tm.Second = v
	return nil
}

// parseClock handles %T, i.e. %H:%M:%S.
func (p *parser) parseClock() error {
	if err := p.parseHour(); err != nil {
		return err
	}
	if err := p.expect(':', "time"); err != nil {
		return err
	}
	if err := p.parseMinute(); err != nil {
		return err
	}
	if err := p.expect(':', "time"); err != nil {
		return err
	}
	return p.parseSecond()
}

// parseFraction reads 1-9 digits and scales them to nanoseconds, so ".5"
// is half a second and ".123456" is 123456 microseconds.
func (p *parser) parseFraction() error {
	v, n, err := scanDigits(p.text, p.pos, maxFractionDigits, "fraction")
	if err != nil {
		return err
	}
	p.pos += n
	p.tm.Nanosecond = v * fractionScale[n]
	return nil
}

// parseZone reads "Z" or a signed [+-]HH[:]MM offset. The input is local
// time at that offset, so a positive offset is subtracted to reach UTC.
func (p *parser) parseZone() error {
	start := p.pos
	if start >= len(p.text) {
		return newError(TruncatedInput, "zone", start, "want 'Z' or [+-]HHMM")
	}

	sign := p.text[start]
	switch sign {
	case 'Z':
		p.pos++
		p.offset = 0
		return nil
	case '+', '-':
	default:
		return newError(InvalidDesignator, "zone", start, "want 'Z' or [+-]HHMM, have %q", sign)
	}
	p.pos++

	hh, err := p.zoneDigits()
	if err != nil {
		return err
	}
	if p.pos < len(p.text) && p.text[p.pos] == ':' {
		p.pos++
	}
	mm, err := p.zoneDigits()
	if err != nil {
		return err
	}

	hhmm := hh*100 + mm
	if hh > 23 || mm > 59 || hhmm > maxZoneHHMM {
		return newError(FieldOutOfRange, "zone", start, "offset %c%04d out of range", sign, hhmm)
	}
	if sign == '+' {
		p.offset = -hhmm
	} else {
		p.offset = hhmm
	}
	return nil
}

func (p *parser) zoneDigits() (int, error) {
	v, n, err := scanInt(p.text, p.pos, 2, false, "zone")
	if err != nil {
		if e, ok := err.(*Error); ok && e.Kind == MalformedNumber {
			e.Kind = InvalidDesignator
		}
		return 0, err
	}
	p.pos += n
	return v, nil
}

// parseMeridiem converts the already parsed 12-hour clock value to 24-hour
// form.
func (p *parser) parseMeridiem() error {
	start := p.pos
	if p.seen&seenHour == 0 {
		return newError(FieldOutOfRange, "meridiem", start, "AM/PM without a preceding hour")
	}
	if p.tm.Hour < 1 || p.tm.Hour > 12 {
		return newError(FieldOutOfRange, "meridiem", start, "hour %d not in 1..12", p.tm.Hour)
	}
	if start+2 > len(p.text) {
		return newError(TruncatedInput, "meridiem", start, "want AM or PM")
	}

	switch tok := p.text[start : start+2]; tok {
	case "AM":
		if p.tm.Hour == 12 {
			p.tm.Hour = 0
		}
	case "PM":
		if p.tm.Hour != 12 {
			p.tm.Hour += 12
		}
	default:
		return newError(InvalidDesignator, "meridiem", start, "want AM or PM, have %q", tok)
	}
	p.pos += 2
	return nil
}
