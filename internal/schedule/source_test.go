package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	events   []RawEvent
	err      error
	gotMin   time.Time
	gotMax   time.Time
	numCalls int
}

func (f *fakeLister) ListEvents(_ context.Context, timeMin, timeMax time.Time) ([]RawEvent, error) {
	f.numCalls++
	f.gotMin, f.gotMax = timeMin, timeMax
	return f.events, f.err
}

var fixedNow = time.Date(2026, 2, 17, 18, 30, 0, 0, time.UTC)

func newTestSource(l Lister) *Source {
	s := NewSource(slog.New(slog.NewTextHandler(io.Discard, nil)), l)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestUpcomingEventsFiltersCancelled(t *testing.T) {
	l := &fakeLister{events: []RawEvent{
		{Status: "confirmed", Summary: "CS 531 Lecture", Description: "Deep learning chapter 5", StartDateTime: "2026-02-17T14:00:00-05:00"},
		{Status: "cancelled", Summary: "Cancelled Meeting", StartDateTime: "2026-02-17T15:30:00-05:00"},
		{Status: "CANCELLED", Summary: "Also cancelled", StartDateTime: "2026-02-17T15:45:00-05:00"},
		{Status: "tentative", Summary: "Gym", Location: "Rec center", StartDateTime: "2026-02-17T20:00:00Z"},
	}}

	events := newTestSource(l).UpcomingEvents(context.Background(), 2)

	require.Len(t, events, 2)
	assert.Equal(t, "CS 531 Lecture", events[0].Summary)
	assert.Equal(t, "Deep learning chapter 5", events[0].Description)
	assert.Equal(t, "2026-02-17T14:00:00-05:00", events[0].StartTime)
	assert.Equal(t, 30, events[0].MinutesUntil)
	assert.Equal(t, "Gym", events[1].Summary)
	assert.Equal(t, "Rec center", events[1].Location)
	assert.Equal(t, 90, events[1].MinutesUntil)

	assert.Equal(t, fixedNow, l.gotMin)
	assert.Equal(t, fixedNow.Add(2*time.Hour), l.gotMax)
}

func TestUpcomingEventsAllDayAndDefaults(t *testing.T) {
	l := &fakeLister{events: []RawEvent{
		{StartDate: "2026-02-18"},
		{Summary: "Broken", StartDateTime: "not-a-date"},
	}}

	events := newTestSource(l).UpcomingEvents(context.Background(), 2)

	require.Len(t, events, 2)
	assert.Equal(t, "Untitled Event", events[0].Summary)
	assert.Equal(t, "2026-02-18", events[0].StartTime)
	assert.Equal(t, 330, events[0].MinutesUntil)
	assert.Equal(t, "", events[0].Description)
	assert.Equal(t, 0, events[1].MinutesUntil)
}

func TestUpcomingEventsListerFailure(t *testing.T) {
	l := &fakeLister{err: errors.New("network down")}
	events := newTestSource(l).UpcomingEvents(context.Background(), 2)

	assert.NotNil(t, events)
	assert.Empty(t, events)
	assert.Equal(t, 1, l.numCalls)
}

func TestMinutesUntil(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		expected int
	}{
		{name: "thirty minutes ahead", start: fixedNow.Add(30 * time.Minute).Format(time.RFC3339), expected: 30},
		{name: "half minute rounds to even down", start: fixedNow.Add(10*time.Minute + 30*time.Second).Format(time.RFC3339), expected: 10},
		{name: "half minute rounds to even up", start: fixedNow.Add(11*time.Minute + 30*time.Second).Format(time.RFC3339), expected: 12},
		{name: "just past half rounds up", start: fixedNow.Add(10*time.Minute + 31*time.Second).Format(time.RFC3339), expected: 11},
		{name: "rounds down", start: fixedNow.Add(10*time.Minute + 29*time.Second).Format(time.RFC3339), expected: 10},
		{name: "offset zone", start: "2026-02-17T14:00:00-05:00", expected: 30},
		{name: "fractional seconds", start: "2026-02-17T19:00:00.000Z", expected: 30},
		{name: "no zone is utc", start: "2026-02-17T19:00:00", expected: 30},
		{name: "all day", start: "2026-02-18", expected: 330},
		{name: "already started", start: "2026-02-17T18:00:00Z", expected: 0},
		{name: "empty", start: "", expected: 0},
		{name: "garbage", start: "tomorrow-ish", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MinutesUntil(tt.start, fixedNow)
			assert.Equal(t, tt.expected, got)
			assert.GreaterOrEqual(t, got, 0)
		})
	}
}
