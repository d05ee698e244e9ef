package chrono

// yearBase is the offset between CalendarTime.Year and the civil year.
const yearBase = 1900

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	secondsPerDay    = 24 * secondsPerHour

	// daysPer400Years is the length of one full Gregorian cycle.
	daysPer400Years = 146097
)

var daysPerMonth = [2][12]int{
	{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31},
	{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31},
}

// CalendarTime is a broken-down civil time. Year counts from 1900 and Month
// is zero-based, following the C struct tm convention.
type CalendarTime struct {
	Year       int
	Month      int
	Day        int
	Hour       int
	Minute     int
	Second     int
	Nanosecond int
}

// FullYear returns the civil year, e.g. 2023.
func (c CalendarTime) FullYear() int { return c.Year + yearBase }

// IsLeapYear reports whether the civil year y has 366 days.
func IsLeapYear(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

// DaysInMonth returns the length of month m (0-11) in civil year y.
// It returns 0 for an out-of-range month.
func DaysInMonth(y, m int) int {
	if m < 0 || m > 11 {
		return 0
	}
	if IsLeapYear(y) {
		return daysPerMonth[1][m]
	}
	return daysPerMonth[0][m]
}

func daysInYear(y int) int64 {
	if IsLeapYear(y) {
		return 366
	}
	return 365
}

// validate applies the sanity bounds checked before epoch conversion.
func (c CalendarTime) validate() error {
	switch {
	case c.Month < 0 || c.Month > 11:
		return newError(FieldOutOfRange, "month", -1, "month %d not in 0..11", c.Month)
	case c.Day < 1 || c.Day > 31:
		return newError(FieldOutOfRange, "day", -1, "day %d not in 1..31", c.Day)
	case c.Hour < 0 || c.Hour > 23:
		return newError(FieldOutOfRange, "hour", -1, "hour %d not in 0..23", c.Hour)
	case c.Minute < 0 || c.Minute > 59:
		return newError(FieldOutOfRange, "minute", -1, "minute %d not in 0..59", c.Minute)
	case c.Second < 0 || c.Second > 59:
		return newError(FieldOutOfRange, "second", -1, "second %d not in 0..59", c.Second)
	case c.Nanosecond < 0 || c.Nanosecond > 999_999_999:
		return newError(FieldOutOfRange, "fraction", -1, "nanosecond %d out of range", c.Nanosecond)
	}
	if dim := DaysInMonth(c.FullYear(), c.Month); c.Day > dim {
		return newError(FieldOutOfRange, "day", -1, "day %d exceeds %d days in %04d-%02d", c.Day, dim, c.FullYear(), c.Month+1)
	}
	return nil
}

// EpochSeconds converts c to seconds since 1970-01-01T00:00:00 UTC. The
// sub-second part is not included.
func (c CalendarTime) EpochSeconds() (int64, error) {
	if err := c.validate(); err != nil {
		return 0, err
	}

	year := c.FullYear()
	var days int64
	for y := 1970; y < year; y++ {
		days += daysInYear(y)
	}
	for y := year; y < 1970; y++ {
		days -= daysInYear(y)
	}
	for m := 0; m < c.Month; m++ {
		days += int64(DaysInMonth(year, m))
	}
	days += int64(c.Day - 1)

	secs := days*24 + int64(c.Hour)
	secs = secs*60 + int64(c.Minute)
	secs = secs*60 + int64(c.Second)
	return secs, nil
}

// FromEpochSeconds is the inverse of EpochSeconds.
func FromEpochSeconds(secs int64) CalendarTime {
	days := secs / secondsPerDay
	rem := secs % secondsPerDay
	if rem < 0 {
		rem += secondsPerDay
		days--
	}

	var c CalendarTime
	c.Hour = int(rem / secondsPerHour)
	c.Minute = int(rem % secondsPerHour / secondsPerMinute)
	c.Second = int(rem % secondsPerMinute)

	year := 1970
	// Skip whole 400-year cycles first so the year walk stays short.
	if cycles := days / daysPer400Years; cycles != 0 {
		year += int(cycles) * 400
		days -= cycles * daysPer400Years
	}
	for days < 0 {
		year--
		days += daysInYear(year)
	}
	for days >= daysInYear(year) {
		days -= daysInYear(year)
		year++
	}

	month := 0
	for days >= int64(DaysInMonth(year, month)) {
		days -= int64(DaysInMonth(year, month))
		month++
	}

	c.Year = year - yearBase
	c.Month = month
	c.Day = int(days) + 1
	return c
}

// ApplyOffset shifts c by a signed offset written as HHMM (e.g. 130 for
// +01:30, -200 for -02:00), carrying into the day, month and year. c must
// hold a valid date.
func (c *CalendarTime) ApplyOffset(hhmm int) {
	if hhmm == 0 {
		return
	}
	c.Minute += hhmm % 100
	c.Hour += hhmm / 100
	c.carryMinutes()
	c.carryHours()
	c.carryDays()
}

func (c *CalendarTime) carryMinutes() {
	for c.Minute < 0 {
		c.Minute += 60
		c.Hour--
	}
	for c.Minute >= 60 {
		c.Minute -= 60
		c.Hour++
	}
}

func (c *CalendarTime) carryHours() {
	for c.Hour < 0 {
		c.Hour += 24
		c.Day--
	}
	for c.Hour >= 24 {
		c.Hour -= 24
		c.Day++
	}
}

func (c *CalendarTime) carryDays() {
	for c.Day < 1 {
		c.prevMonth()
		c.Day += DaysInMonth(c.FullYear(), c.Month)
	}
	for {
		dim := DaysInMonth(c.FullYear(), c.Month)
		if c.Day <= dim {
			return
		}
		c.Day -= dim
		c.nextMonth()
	}
}

func (c *CalendarTime) prevMonth() {
	c.Month--
	if c.Month < 0 {
		c.Month = 11
		c.Year--
	}
}

func (c *CalendarTime) nextMonth() {
	c.Month++
	if c.Month > 11 {
		c.Month = 0
		c.Year++
	}
}
