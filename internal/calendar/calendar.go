// Package calendar maps timestamps onto civil dates under an explicit time zone policy.
// Every "per day" rule in the system derives its day through a Policy so that two
// processes configured with the same zone always agree on which day an instant belongs to.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone lookups must not depend on the host's zoneinfo
)

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

// DefaultTimezone is used when no zone is configured.
const DefaultTimezone = "UTC"

// ErrInvalidDate is returned when a date string cannot be parsed.
var ErrInvalidDate = errors.New("invalid date")

// Date is a civil date without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a normalized Date (e.g. Feb 30 becomes Mar 1 or 2).
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// FromTime takes the date part of t as it reads in t's own location.
func FromTime(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// String returns the YYYY-MM-DD form.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Midnight returns the start of d in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool { return d.Compare(o) > 0 }

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Period is an inclusive range of dates.
type Period struct {
	Start Date
	End   Date
}

// Valid reports whether Start is not after End.
func (p Period) Valid() bool {
	return !p.Start.After(p.End)
}

// Contains reports whether d lies in [Start, End].
func (p Period) Contains(d Date) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// Days returns the number of days in the period (inclusive), or 0 if invalid.
func (p Period) Days() int {
	if !p.Valid() {
		return 0
	}
	start := p.Start.Midnight(time.UTC)
	end := p.End.Midnight(time.UTC)
	return int(end.Sub(start).Hours()/24) + 1
}

// Policy decides which calendar day an instant belongs to.
type Policy struct {
	loc *time.Location
}

// NewPolicy loads an IANA time zone name ("UTC", "Europe/Prague", "Local").
// An empty name selects DefaultTimezone.
func NewPolicy(name string) (Policy, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Policy{}, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return Policy{loc: loc}, nil
}

// MustPolicy is NewPolicy that panics; for tests and constants.
func MustPolicy(name string) Policy {
	p, err := NewPolicy(name)
	if err != nil {
		panic(err)
	}
	return p
}

// Location returns the policy's zone, UTC for the zero Policy.
func (p Policy) Location() *time.Location {
	if p.loc == nil {
		return time.UTC
	}
	return p.loc
}

// Name returns the zone name.
func (p Policy) Name() string {
	return p.Location().String()
}

// DateOf returns the calendar day of t in the policy's zone.
func (p Policy) DateOf(t time.Time) Date {
	return FromTime(t.In(p.Location()))
}

// Today returns the current calendar day in the policy's zone.
func (p Policy) Today() Date {
	return p.DateOf(time.Now())
}
