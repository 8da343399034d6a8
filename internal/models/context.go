package models

import "encoding/json"

// VibeContext is the unit of delivery while music is playing.
type VibeContext struct {
	Track        Track           `json:"track"`
	Events       []CalendarEvent `json:"events"`
	RecentTracks []RecentTrack   `json:"recent_tracks"`
}

// MarshalJSON encodes nil event and recent-track lists as empty arrays.
func (v VibeContext) MarshalJSON() ([]byte, error) {
	type plain VibeContext
	p := plain(v)
	if p.Events == nil {
		p.Events = []CalendarEvent{}
	}
	if p.RecentTracks == nil {
		p.RecentTracks = []RecentTrack{}
	}
	return json.Marshal(p)
}
