package domain

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// RecurrencePattern expands a textual recurrence rule (RFC 5545 RRULE, e.g.
// "FREQ=WEEKLY;BYDAY=MO,WE") into concrete recording periods. The anchor
// window bounds the expansion, the duration fixes the length of every
// instance, and the timezone anchors wall-clock boundaries: "every Monday
// 10:00" means 10:00 local, not UTC.
//
// All validation happens at construction. A pattern that exists always
// expands cleanly, and expansion is pure: it depends only on the pattern.
type RecurrencePattern struct {
	raw         string
	rule        *rrule.RRule
	windowStart time.Time
	windowEnd   time.Time
	duration    time.Duration
	location    *time.Location
}

// NewRecurrencePattern parses and validates a recurrence pattern.
func NewRecurrencePattern(rule string, windowStart, windowEnd time.Time, duration time.Duration, timezone string) (*RecurrencePattern, error) {
	if rule == "" {
		return nil, fmt.Errorf("%w: empty rule", ErrInvalidRecurrenceRule)
	}
	if !windowEnd.After(windowStart) {
		return nil, ErrInvalidTimeRange
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: instance duration must be positive", ErrInvalidTimeRange)
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidRecurrenceRule, timezone)
	}

	parsed, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRecurrenceRule, rule, err)
	}

	// Anchor the rule at the window start in the pattern's timezone so
	// weekday and hour boundaries follow local wall clock. Without an
	// explicit DTSTART the library would anchor at "now", which must not
	// leak into expansion.
	parsed.DTStart(windowStart.In(loc))

	return &RecurrencePattern{
		raw:         rule,
		rule:        parsed,
		windowStart: windowStart.In(loc),
		windowEnd:   windowEnd.In(loc),
		duration:    duration,
		location:    loc,
	}, nil
}

// Rule returns the textual rule this pattern was built from.
func (p *RecurrencePattern) Rule() string { return p.raw }

// Duration returns the fixed per-instance duration.
func (p *RecurrencePattern) Duration() time.Duration { return p.duration }

// Periods materializes the pattern into an ordered, finite sequence of
// periods. The sequence is strictly increasing by start time, duplicate
// free, bounded by the anchor window, and every period is exactly the
// pattern duration long.
func (p *RecurrencePattern) Periods() []Period {
	starts := p.rule.Between(p.windowStart, p.windowEnd, true)

	periods := make([]Period, 0, len(starts))
	var last time.Time
	for _, start := range starts {
		if !last.IsZero() && !start.After(last) {
			continue
		}
		last = start
		periods = append(periods, Period{
			start: start.UTC(),
			end:   start.Add(p.duration).UTC(),
		})
	}
	return periods
}
