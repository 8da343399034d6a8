package models

// DefaultEventSummary is used for events that have no title.
const DefaultEventSummary = "Untitled Event"

// CalendarEvent is an upcoming, non-cancelled event.
// This is an internal representation, independent of any specific calendar provider.
type CalendarEvent struct {
	Summary      string `json:"summary"`
	Description  string `json:"description"`
	StartTime    string `json:"start_time"`    // RFC 3339 date-time, or YYYY-MM-DD for all-day events
	MinutesUntil int    `json:"minutes_until"` // never negative
	Location     string `json:"location"`
}
