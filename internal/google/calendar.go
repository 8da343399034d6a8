package google

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"vibesync/internal/schedule"
)

// DefaultCalendarID is the signed-in user's main calendar.
const DefaultCalendarID = "primary"

// CalendarClient provides a client for interacting with the Google Calendar API.
type CalendarClient struct {
	service    *calendar.Service
	calendarID string
	logger     *slog.Logger
}

var _ schedule.Lister = (*CalendarClient)(nil)

// NewClient creates a new Google Calendar client on top of an already
// authorized HTTP client (see internal/auth). Extra options are appended after
// the HTTP client, which lets tests point the service at a local endpoint.
func NewClient(ctx context.Context, logger *slog.Logger, httpClient *http.Client, calendarID string, opts ...option.ClientOption) (*CalendarClient, error) {
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &CalendarClient{service: service, calendarID: calendarID, logger: logger}, nil
}

// ListEvents fetches single events in [timeMin, timeMax) ordered by start time.
func (c *CalendarClient) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]schedule.RawEvent, error) {
	c.logger.Debug("Fetching upcoming events", "calendarID", c.calendarID, "timeMin", timeMin, "timeMax", timeMax)

	events, err := c.service.Events.List(c.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(timeMin.UTC().Format(time.RFC3339)).
		TimeMax(timeMax.UTC().Format(time.RFC3339)).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	c.logger.Debug("Fetched events from Google Calendar", "count", len(events.Items), "calendarID", c.calendarID)
	return toRawEvents(events.Items), nil
}

// toRawEvents converts Google Calendar events to provider-neutral raw events.
func toRawEvents(items []*calendar.Event) []schedule.RawEvent {
	raw := make([]schedule.RawEvent, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		ev := schedule.RawEvent{
			Status:      item.Status,
			Summary:     item.Summary,
			Description: item.Description,
			Location:    item.Location,
		}
		if item.Start != nil {
			ev.StartDateTime = item.Start.DateTime
			ev.StartDate = item.Start.Date
		}
		raw = append(raw, ev)
	}
	return raw
}
