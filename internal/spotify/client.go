// Package spotify is a small HTTP adapter for the Spotify Web API endpoints
// the playback source needs. It does not retry; a 429 response is returned as
// a *retry.RateLimitError so the caller's policy can decide.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vibesync/internal/retry"
)

// DefaultBaseURL is the Spotify Web API root.
const DefaultBaseURL = "https://api.spotify.com/v1"

// APIError is a non-2xx, non-429 response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("spotify adapter: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("spotify adapter: status %d", e.StatusCode)
}

// Client is an HTTP client for the Spotify adapter. The http.Client is expected
// to carry the user's authorization (see internal/auth).
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient constructs a new Spotify client. An empty baseURL means DefaultBaseURL.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// CurrentPlayback returns what the user is playing right now, or nil when
// Spotify has nothing to report (204 No Content).
func (c *Client) CurrentPlayback(ctx context.Context) (*CurrentlyPlaying, error) {
	var cp CurrentlyPlaying
	found, err := c.getJSON(ctx, "/me/player/currently-playing", nil, &cp)
	if err != nil || !found {
		return nil, err
	}
	return &cp, nil
}

// RecentlyPlayed returns up to limit play history items, most recent first.
func (c *Client) RecentlyPlayed(ctx context.Context, limit int) ([]PlayHistory, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var body recentlyPlayedResponse
	if _, err := c.getJSON(ctx, "/me/player/recently-played", query, &body); err != nil {
		return nil, err
	}
	return body.Items, nil
}

// Artist fetches a full artist object.
func (c *Client) Artist(ctx context.Context, artistID string) (*Artist, error) {
	var a Artist
	found, err := c.getJSON(ctx, "/artists/"+url.PathEscape(artistID), nil, &a)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("spotify adapter: artist %s: empty response", artistID)
	}
	return &a, nil
}

// AudioFeatures fetches the audio analysis summary for a track. Many apps are
// no longer granted this endpoint and get a 403, which surfaces as *APIError.
func (c *Client) AudioFeatures(ctx context.Context, trackID string) (*AudioFeatures, error) {
	var f AudioFeatures
	found, err := c.getJSON(ctx, "/audio-features/"+url.PathEscape(trackID), nil, &f)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("spotify adapter: audio features %s: empty response", trackID)
	}
	return &f, nil
}

// getJSON issues a GET and decodes the body into out. It reports false when the
// response had no content.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) (bool, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("spotify adapter: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	// #nosec G107 -- URL constructed from the configured Spotify API baseURL
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("spotify adapter: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return false, &retry.RateLimitError{RetryAfter: parseRetryAfter(resp)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return false, &APIError{StatusCode: resp.StatusCode, Message: decodeErrorMessage(resp)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("spotify adapter: decode %s: %w", path, err)
	}
	return true, nil
}

func decodeErrorMessage(resp *http.Response) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ""
	}
	return body.Error.Message
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if when, err := http.ParseTime(retryAfter); err == nil {
		until := time.Until(when)
		if until > 0 {
			return until
		}
	}

	return 0
}
