package domain

import (
	"fmt"
	"time"
)

// Period is a half-open time interval [start, end) normalized to UTC.
type Period struct {
	start time.Time
	end   time.Time
}

// NewPeriod creates a period. The end must be strictly after the start.
func NewPeriod(start, end time.Time) (Period, error) {
	if !end.After(start) {
		return Period{}, ErrInvalidTimeRange
	}
	return Period{start: start.UTC(), end: end.UTC()}, nil
}

// MustPeriod is a convenience for statically known-valid periods, mainly in
// tests and fixtures. It panics on an invalid range.
func MustPeriod(start, end time.Time) Period {
	p, err := NewPeriod(start, end)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Period) Start() time.Time        { return p.start }
func (p Period) End() time.Time          { return p.end }
func (p Period) Duration() time.Duration { return p.end.Sub(p.start) }

// IsZero reports whether the period is the zero value.
func (p Period) IsZero() bool {
	return p.start.IsZero() && p.end.IsZero()
}

// Overlaps reports whether two half-open periods intersect. Touching
// endpoints do not overlap.
func (p Period) Overlaps(other Period) bool {
	return p.start.Before(other.end) && other.start.Before(p.end)
}

// Contains reports whether t falls within [start, end).
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.start) && t.Before(p.end)
}

func (p Period) String() string {
	return fmt.Sprintf("[%s, %s)", p.start.Format(time.RFC3339), p.end.Format(time.RFC3339))
}
