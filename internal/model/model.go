package model

import (
	"math/big"
	"time"
)

// Occurrence is a single concrete instance of a calendar event after
// recurrence expansion and timezone normalization.
type Occurrence struct {
	SourceID string // calendar source ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the local start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}

// ParseResult is the outcome of parsing one timestamp.
type ParseResult struct {
	Pattern string
	Text    string
	Time    time.Time
	Err     error
}

// EpochMillis returns the result as milliseconds since the Unix epoch.
func (r ParseResult) EpochMillis() int64 { return r.Time.UnixMilli() }

// EpochNanos returns the result as nanoseconds since the Unix epoch. It
// stays exact for years outside the int64 nanosecond range (1678..2262).
func (r ParseResult) EpochNanos() *big.Int {
	ns := new(big.Int).Mul(big.NewInt(r.Time.Unix()), big.NewInt(1_000_000_000))
	return ns.Add(ns, big.NewInt(int64(r.Time.Nanosecond())))
}
