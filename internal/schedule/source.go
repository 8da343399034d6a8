// Package schedule builds the list of upcoming calendar events delivered with
// each vibe context. Calendar providers only have to list raw events in a time
// window; filtering and relative-time computation happen here.
package schedule

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"vibesync/internal/models"
)

// DefaultLookahead is the window used by the poll cycle.
const DefaultLookahead = 2 * time.Hour

const statusCancelled = "cancelled"

// RawEvent is a provider event before filtering.
// StartDateTime is set for timed events, StartDate (YYYY-MM-DD) for all-day events.
type RawEvent struct {
	Status        string
	Summary       string
	Description   string
	Location      string
	StartDateTime string
	StartDate     string
}

// Lister lists single (recurrence-expanded) events overlapping [timeMin, timeMax),
// ordered by start time.
type Lister interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]RawEvent, error)
}

// Source fetches upcoming events from a Lister.
type Source struct {
	lister Lister
	logger *slog.Logger
	now    func() time.Time
}

// NewSource creates a schedule source.
func NewSource(logger *slog.Logger, lister Lister) *Source {
	return &Source{lister: lister, logger: logger, now: time.Now}
}

// UpcomingEvents returns the non-cancelled events starting within the next
// hours, in provider order. Any failure to list yields an empty slice.
func (s *Source) UpcomingEvents(ctx context.Context, hours int) []models.CalendarEvent {
	now := s.now().UTC()
	end := now.Add(time.Duration(hours) * time.Hour)

	raw, err := s.lister.ListEvents(ctx, now, end)
	if err != nil {
		s.logger.Error("Calendar API error", "error", err)
		return []models.CalendarEvent{}
	}

	events := make([]models.CalendarEvent, 0, len(raw))
	for _, item := range raw {
		if strings.EqualFold(item.Status, statusCancelled) {
			continue
		}

		start := item.StartDateTime
		if start == "" {
			start = item.StartDate
		}

		summary := item.Summary
		if summary == "" {
			summary = models.DefaultEventSummary
		}

		events = append(events, models.CalendarEvent{
			Summary:      summary,
			Description:  item.Description,
			StartTime:    start,
			MinutesUntil: MinutesUntil(start, now),
			Location:     item.Location,
		})
	}

	s.logger.Debug("Fetched upcoming events", "count", len(events), "skipped", len(raw)-len(events))
	return events
}

var startLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	time.DateOnly,
}

// MinutesUntil returns the whole minutes from now until start, rounded to the
// nearest minute with half minutes going to the even neighbour, and clamped at
// zero. Events that already started and values that cannot be parsed both read
// as 0. Values without a zone are taken as UTC.
func MinutesUntil(start string, now time.Time) int {
	t, ok := parseStart(start)
	if !ok {
		return 0
	}
	delta := t.Sub(now).Minutes()
	if delta <= 0 || math.IsNaN(delta) {
		return 0
	}
	return int(math.RoundToEven(delta))
}

func parseStart(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
