package icloud

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"

	"vibesync/internal/schedule"
)

const (
	// DefaultEndpoint is the iCloud CalDAV root; any CalDAV server works.
	DefaultEndpoint = "https://caldav.icloud.com/"
)

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "vibesync/1.0")
	return t.Transport.RoundTrip(req)
}

// CalDAVClient reads events from one calendar on a CalDAV server.
type CalDAVClient struct {
	caldavClient *caldav.Client
	logger       *slog.Logger
	calendarPath string
}

var _ schedule.Lister = (*CalDAVClient)(nil)

// Options configures NewClient. Endpoint defaults to DefaultEndpoint and
// Transport to http.DefaultTransport.
type Options struct {
	Endpoint     string
	Username     string
	Password     string
	CalendarName string
	Transport    http.RoundTripper
	Timeout      time.Duration
}

// NewClient creates a CalDAV client and resolves the calendar named
// opts.CalendarName under the user's calendar home set.
func NewClient(ctx context.Context, logger *slog.Logger, opts Options) (*CalDAVClient, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	httpClient := &http.Client{
		Transport: &customTransport{
			Username:  opts.Username,
			Password:  opts.Password,
			Transport: base,
		},
		Timeout: opts.Timeout,
	}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	c := &CalDAVClient{caldavClient: caldavClient, logger: logger}

	logger.Info("Finding CalDAV calendar", "calendarName", opts.CalendarName)
	calendarPath, err := c.findCalendar(ctx, opts.CalendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", opts.CalendarName, err)
	}
	c.calendarPath = calendarPath
	logger.Info("Found CalDAV calendar", "path", calendarPath)

	return c, nil
}

// ListEvents runs a calendar-query for VEVENTs in [timeMin, timeMax) and
// returns one raw event per occurrence, sorted by start.
func (c *CalDAVClient) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]schedule.RawEvent, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: timeMin.UTC(),
				End:   timeMax.UTC(),
			}},
		},
	}

	objects, err := c.caldavClient.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}

	calendars := make([]*ical.Calendar, 0, len(objects))
	for _, obj := range objects {
		calendars = append(calendars, obj.Data)
	}

	events := occurrences(c.logger, calendars, timeMin, timeMax)
	c.logger.Debug("Fetched events from CalDAV", "objects", len(objects), "count", len(events))
	return events, nil
}

// occurrence is a raw event with its parsed start, for sorting.
type occurrence struct {
	start time.Time
	event schedule.RawEvent
}

// occurrences flattens calendar objects into single events overlapping the
// window. Recurring events are expanded; overridden instances (RECURRENCE-ID)
// replace the generated ones.
func occurrences(logger *slog.Logger, calendars []*ical.Calendar, timeMin, timeMax time.Time) []schedule.RawEvent {
	var all []occurrence

	for _, cal := range calendars {
		if cal == nil {
			continue
		}
		events := cal.Events()

		overridden := make(map[int64]bool)
		for _, ev := range events {
			if p := ev.Props.Get(ical.PropRecurrenceID); p != nil {
				if t, err := p.DateTime(time.UTC); err == nil {
					overridden[t.Unix()] = true
				}
			}
		}

		for _, ev := range events {
			start, err := ev.DateTimeStart(time.UTC)
			if err != nil {
				logger.Warn("Skipping event with unreadable start", "error", err)
				continue
			}
			allDay := isDate(ev.Props.Get(ical.PropDateTimeStart))
			duration := eventDuration(ev, start, allDay)
			base := toRawEvent(ev)

			set, err := ev.RecurrenceSet(time.UTC)
			if err != nil {
				logger.Warn("Ignoring invalid recurrence rule", "summary", base.Summary, "error", err)
				set = nil
			}

			if set == nil || ev.Props.Get(ical.PropRecurrenceID) != nil {
				if overlaps(start, duration, timeMin, timeMax) {
					all = append(all, occurrence{start: start, event: withStart(base, start, allDay)})
				}
				continue
			}

			for _, t := range set.Between(timeMin.Add(-duration), timeMax, true) {
				if overridden[t.Unix()] || !overlaps(t, duration, timeMin, timeMax) {
					continue
				}
				all = append(all, occurrence{start: t, event: withStart(base, t, allDay)})
			}
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].start.Before(all[j].start) })

	out := make([]schedule.RawEvent, len(all))
	for i, o := range all {
		out[i] = o.event
	}
	return out
}

func toRawEvent(ev ical.Event) schedule.RawEvent {
	text := func(name string) string {
		v, err := ev.Props.Text(name)
		if err != nil {
			return ""
		}
		return v
	}
	return schedule.RawEvent{
		Status:      strings.ToLower(text(ical.PropStatus)),
		Summary:     text(ical.PropSummary),
		Description: text(ical.PropDescription),
		Location:    text(ical.PropLocation),
	}
}

func withStart(ev schedule.RawEvent, start time.Time, allDay bool) schedule.RawEvent {
	if allDay {
		ev.StartDate = start.Format(time.DateOnly)
	} else {
		ev.StartDateTime = start.Format(time.RFC3339)
	}
	return ev
}

func isDate(p *ical.Prop) bool {
	return p != nil && p.ValueType() == ical.ValueDate
}

// eventDuration uses DTEND when present; all-day events default to one day.
func eventDuration(ev ical.Event, start time.Time, allDay bool) time.Duration {
	if end, err := ev.DateTimeEnd(time.UTC); err == nil && end.After(start) {
		return end.Sub(start)
	}
	if allDay {
		return 24 * time.Hour
	}
	return 0
}

func overlaps(start time.Time, duration time.Duration, timeMin, timeMax time.Time) bool {
	if !start.Before(timeMax) {
		return false
	}
	if duration == 0 {
		return !start.Before(timeMin)
	}
	return start.Add(duration).After(timeMin)
}

// findCalendar discovers the user's calendars and returns the path of the one with the matching name.
func (c *CalDAVClient) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}
