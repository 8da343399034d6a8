package spotify_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibesync/internal/retry"
	"vibesync/internal/spotify"
)

const playingResponse = `{
	"is_playing": true,
	"progress_ms": 1000,
	"item": {
		"id": "abc123",
		"name": "Blinding Lights",
		"popularity": 92,
		"artists": [{"id": "artist1", "name": "The Weeknd"}],
		"album": {"name": "After Hours", "images": [{"url": "http://img.com/1.jpg"}]}
	}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *spotify.Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return spotify.NewClient(ts.Client(), ts.URL+"/")
}

func TestCurrentPlayback(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		response   string
		expectNil  bool
		expectErr  bool
	}{
		{name: "playing", statusCode: http.StatusOK, response: playingResponse},
		{name: "nothing playing", statusCode: http.StatusNoContent, expectNil: true},
		{name: "server error", statusCode: http.StatusBadGateway, response: `{"error":{"status":502,"message":"bad gateway"}}`, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/me/player/currently-playing", r.URL.Path)
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.response))
			})

			cp, err := client.CurrentPlayback(context.Background())
			if tt.expectErr {
				var apiErr *spotify.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.statusCode, apiErr.StatusCode)
				assert.Equal(t, "bad gateway", apiErr.Message)
				return
			}
			require.NoError(t, err)
			if tt.expectNil {
				assert.Nil(t, cp)
				return
			}
			require.NotNil(t, cp)
			require.NotNil(t, cp.Item)
			assert.True(t, cp.IsPlaying)
			assert.Equal(t, "Blinding Lights", cp.Item.Name)
			assert.Equal(t, "artist1", cp.Item.Artists[0].ID)
			assert.Equal(t, "http://img.com/1.jpg", cp.Item.Album.Images[0].URL)
			assert.Equal(t, 92, cp.Item.Popularity)
		})
	}
}

func TestRateLimitCarriesRetryAfter(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter string
		expected   time.Duration
	}{
		{name: "seconds", retryAfter: "7", expected: 7 * time.Second},
		{name: "missing header", retryAfter: "", expected: 0},
		{name: "garbage", retryAfter: "soon", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(http.StatusTooManyRequests)
			})

			_, err := client.Artist(context.Background(), "artist1")
			var rl *retry.RateLimitError
			require.True(t, errors.As(err, &rl))
			assert.Equal(t, tt.expected, rl.RetryAfter)
		})
	}
}

func TestRecentlyPlayed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/player/recently-played", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"items": [
			{"track": {"name": "Starboy", "artists": [{"id": "artist1", "name": "The Weeknd"}]}, "played_at": "2026-02-17T13:00:00Z"},
			{"track": {"name": "Levitating", "artists": [{"id": "artist2", "name": "Dua Lipa"}]}}
		]}`))
	})

	items, err := client.RecentlyPlayed(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Starboy", items[0].Track.Name)
	assert.Equal(t, "Dua Lipa", items[1].Track.Artists[0].Name)
}

func TestArtistAndAudioFeatures(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/artists/artist1":
			_, _ = w.Write([]byte(`{"id": "artist1", "name": "The Weeknd", "genres": ["canadian pop", "pop"]}`))
		case "/audio-features/abc123":
			_, _ = w.Write([]byte(`{"id": "abc123", "valence": 0.334, "energy": 0.73, "tempo": 171.005, "danceability": 0.514}`))
		case "/audio-features/forbidden":
			w.WriteHeader(http.StatusForbidden)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	artist, err := client.Artist(context.Background(), "artist1")
	require.NoError(t, err)
	assert.Equal(t, []string{"canadian pop", "pop"}, artist.Genres)

	features, err := client.AudioFeatures(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, 0.334, features.Valence)
	assert.Equal(t, 171.005, features.Tempo)

	_, err = client.AudioFeatures(context.Background(), "forbidden")
	var apiErr *spotify.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.False(t, retry.IsRateLimited(err))
}
