package poller_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibesync/internal/genre"
	"vibesync/internal/models"
	"vibesync/internal/playback"
	"vibesync/internal/poller"
	"vibesync/internal/retry"
	"vibesync/internal/schedule"
	"vibesync/internal/spotify"
)

type stubSpotify struct {
	playing      *spotify.CurrentlyPlaying
	historyCalls int
}

func (s *stubSpotify) CurrentPlayback(context.Context) (*spotify.CurrentlyPlaying, error) {
	return s.playing, nil
}

func (s *stubSpotify) RecentlyPlayed(context.Context, int) ([]spotify.PlayHistory, error) {
	s.historyCalls++
	return []spotify.PlayHistory{{Track: *s.playing.Item}}, nil
}

func (s *stubSpotify) Artist(_ context.Context, id string) (*spotify.Artist, error) {
	return &spotify.Artist{ID: id, Genres: []string{"pop"}}, nil
}

func (s *stubSpotify) AudioFeatures(context.Context, string) (*spotify.AudioFeatures, error) {
	return nil, errors.New("403 Forbidden")
}

type stubCalendar struct {
	events []schedule.RawEvent
	calls  int
}

func (s *stubCalendar) ListEvents(context.Context, time.Time, time.Time) ([]schedule.RawEvent, error) {
	s.calls++
	return s.events, nil
}

type capture struct {
	idle     int
	payloads []string
}

func (c *capture) AnnounceIdle() { c.idle++ }

func (c *capture) AnnounceContext(vc models.VibeContext) {
	b, _ := json.Marshal(vc)
	c.payloads = append(c.payloads, string(b))
}

func build(sp *stubSpotify, cal *stubCalendar, out *capture) *poller.Poller {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	policy := retry.Policy{Sleep: func(context.Context, time.Duration) error { return nil }}
	pb := playback.NewSource(logger, sp, genre.NewCache(), policy)
	sc := schedule.NewSource(logger, cal)
	return poller.New(logger, pb, sc, out)
}

func TestEndToEndIdle(t *testing.T) {
	sp := &stubSpotify{}
	cal := &stubCalendar{}
	out := &capture{}

	build(sp, cal, out).PollCycle(context.Background())

	assert.Equal(t, 1, out.idle)
	assert.Empty(t, out.payloads)
	assert.Equal(t, 0, cal.calls)
	assert.Equal(t, 0, sp.historyCalls)
}

func TestEndToEndContext(t *testing.T) {
	start := time.Now().UTC().Add(45 * time.Minute).Format(time.RFC3339)
	sp := &stubSpotify{playing: &spotify.CurrentlyPlaying{
		IsPlaying: true,
		Item: &spotify.Track{
			ID:      "abc123",
			Name:    "Blinding Lights",
			Artists: []spotify.SimpleArtist{{ID: "artist1", Name: "The Weeknd"}},
			Album:   spotify.Album{Name: "After Hours"},
		},
	}}
	cal := &stubCalendar{events: []schedule.RawEvent{
		{Status: "cancelled", Summary: "Cancelled Meeting", StartDateTime: start},
		{Status: "confirmed", Summary: "CS 531 Lecture", StartDateTime: start},
	}}
	out := &capture{}

	build(sp, cal, out).PollCycle(context.Background())

	require.Len(t, out.payloads, 1)
	var payload struct {
		Track  map[string]any         `json:"track"`
		Events []models.CalendarEvent `json:"events"`
		Recent []models.RecentTrack   `json:"recent_tracks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out.payloads[0]), &payload))

	assert.Equal(t, "Blinding Lights", payload.Track["name"])
	assert.NotContains(t, payload.Track, "audio_features")
	require.Len(t, payload.Events, 1)
	assert.Equal(t, "CS 531 Lecture", payload.Events[0].Summary)
	assert.InDelta(t, 45, payload.Events[0].MinutesUntil, 1)
	require.Len(t, payload.Recent, 1)
	assert.Equal(t, []string{"pop"}, payload.Recent[0].Genres)
}
