// Package ical renders an agent's committed schedule as an iCalendar feed.
// Capture agents poll this feed to learn their upcoming recordings.
package ical

import (
	"context"
	"fmt"

	ics "github.com/arran4/golang-ical"

	lifecycleDomain "github.com/felixgeelhaar/capstan/internal/lifecycle/domain"
	"github.com/felixgeelhaar/capstan/internal/scheduling/domain"
)

const productID = "-//capstan//scheduling//EN"

// CalendarBuilder renders agent calendars from the scheduling store.
type CalendarBuilder struct {
	store domain.SchedulingStore
}

// NewCalendarBuilder creates a new CalendarBuilder.
func NewCalendarBuilder(store domain.SchedulingStore) *CalendarBuilder {
	return &CalendarBuilder{store: store}
}

// AgentCalendar serializes the agent's committed events, ordered by start
// time, as an iCalendar document. An agent with no events yields a valid
// empty calendar.
func (b *CalendarBuilder) AgentCalendar(ctx context.Context, agentID string) (string, error) {
	if agentID == "" {
		return "", domain.ErrEmptyAgentID
	}

	events, err := b.store.ListEventsForAgent(ctx, agentID)
	if err != nil {
		return "", fmt.Errorf("list events for agent %s: %w", agentID, err)
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)

	for _, event := range events {
		ve := cal.AddEvent(event.ID())
		ve.SetDtStampTime(event.UpdatedAt())
		ve.SetStartAt(event.Period().Start())
		ve.SetEndAt(event.Period().End())
		ve.SetSummary(summaryFor(event))
		ve.SetLocation(event.AgentID())
		ve.SetStatus(ics.ObjectStatusConfirmed)
		for _, presenter := range event.Presenters() {
			ve.AddAttendee(presenter)
		}
	}

	return cal.Serialize(), nil
}

// summaryFor prefers the media package title; untitled events fall back to
// their id.
func summaryFor(event *domain.ScheduledEvent) string {
	mp, err := lifecycleDomain.ParseMediaPackage([]byte(event.MediaPackage()))
	if err == nil && mp.Title != "" {
		return mp.Title
	}
	return event.ID()
}
