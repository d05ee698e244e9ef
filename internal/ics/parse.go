package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"chronoparse/internal/chrono"
	appLog "chronoparse/internal/log"
)

// Layouts for the three RFC 5545 value shapes. %z accepts the trailing 'Z'
// of UTC DATE-TIME values.
var (
	layoutDateTimeUTC = mustCompile("{:%Y%m%dT%H%M%S%z}")
	layoutDateTime    = mustCompile("{:%Y%m%dT%H%M%S}")
	layoutDate        = mustCompile("{:%Y%m%d}")
)

func mustCompile(pattern string) *chrono.Layout {
	l, err := chrono.Compile(pattern)
	if err != nil {
		panic(err)
	}
	return l
}

// ParsedEvent is the normalized representation of a VEVENT as produced
// by the ICS parser. Recurrence expansion operates on this type.
type ParsedEvent struct {
	Source Source

	UID string
	Seq int

	Summary     string
	Description string
	Location    string

	Start   time.Time
	End     time.Time
	AllDay  bool
	StartTZ string
	EndTZ   string

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present) in event's own timezone
	IsOverride bool       // true if this VEVENT is an override for a recurring instance
}

// ParseICS parses a single ICS payload into a list of ParsedEvent.
//
// Floating DATE-TIME values and DATE values are placed in floating, as are
// TZID values naming a zone the host does not know.
func ParseICS(src Source, body []byte, floating *time.Location) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if floating == nil {
		floating = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp, floating)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent, floating *time.Location) (ParsedEvent, error) {
	var out ParsedEvent
	out.Source = src

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Seq = n
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	start, allDay, err := parseProp(dtStart, floating)
	if err != nil {
		return out, fmt.Errorf("DTSTART %q: %w", dtStart.Value, err)
	}
	out.Start = start
	out.AllDay = allDay
	out.StartTZ = param(dtStart, "TZID")

	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		end, _, err := parseProp(dtEnd, floating)
		if err != nil {
			return out, fmt.Errorf("DTEND %q: %w", dtEnd.Value, err)
		}
		out.End = end
		out.EndTZ = param(dtEnd, "TZID")
	} else if allDay {
		out.End = start.AddDate(0, 0, 1)
	} else {
		out.End = start
	}

	// RRULE is kept raw; expansion happens in expand.go.
	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE can appear multiple times, each with a comma-separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := propLocation(p, floating)
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, _, err := ParseICSTime(part, loc)
			if err != nil {
				appLog.Debug("ics exdate skipped", "uid", out.UID, "value", part, "err", err)
				continue
			}
			out.ExDates = append(out.ExDates, t)
		}
	}

	if ridProp := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); ridProp != nil {
		if t, _, err := parseProp(ridProp, floating); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

func parseProp(p *ical.IANAProperty, floating *time.Location) (time.Time, bool, error) {
	t, allDay, err := ParseICSTime(strings.TrimSpace(p.Value), propLocation(p, floating))
	if err != nil {
		return time.Time{}, false, err
	}
	if strings.EqualFold(param(p, "VALUE"), "DATE") {
		allDay = true
	}
	return t, allDay, nil
}

func param(p *ical.IANAProperty, name string) string {
	if vs, ok := p.ICalParameters[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// propLocation resolves the TZID parameter, falling back to floating.
func propLocation(p *ical.IANAProperty, floating *time.Location) *time.Location {
	tzid := param(p, "TZID")
	if tzid == "" {
		return floating
	}
	loc, err := time.LoadLocation(tzid)
	if err != nil {
		appLog.Debug("ics unknown TZID; using floating zone", "tzid", tzid, "err", err)
		return floating
	}
	return loc
}

// ParseICSTime decodes an RFC 5545 DATE ("20250101"), UTC DATE-TIME
// ("20250101T090000Z") or local DATE-TIME ("20250101T090000") value. Local
// and DATE values are interpreted as wall time in loc. The second result
// reports whether v was a DATE.
func ParseICSTime(v string, loc *time.Location) (time.Time, bool, error) {
	switch {
	case v == "":
		return time.Time{}, false, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		t, err := layoutDateTimeUTC.Parse(v)
		return t, false, err
	case strings.Contains(v, "T"):
		c, err := layoutDateTime.ParseCalendar(v)
		if err != nil {
			return time.Time{}, false, err
		}
		return wallTime(c, loc), false, nil
	default:
		c, err := layoutDate.ParseCalendar(v)
		if err != nil {
			return time.Time{}, false, err
		}
		return wallTime(c, loc), true, nil
	}
}

// wallTime places calendar fields in loc. chrono has already validated the
// fields, so time.Date only resolves the zone's offset.
func wallTime(c chrono.CalendarTime, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(c.FullYear(), time.Month(c.Month+1), c.Day, c.Hour, c.Minute, c.Second, c.Nanosecond, loc)
}
