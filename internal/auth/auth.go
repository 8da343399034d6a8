// Package auth holds the OAuth2 plumbing shared by the Google Calendar and
// Spotify clients: client configs, token files and a token source that writes
// refreshed tokens back to disk.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/spotify"
	"google.golang.org/api/calendar/v3"
)

// Loopback redirect for desktop clients. Nothing listens on it: the browser
// lands on an error page and the user pastes that URL back in.
const googleRedirectURL = "http://127.0.0.1:8085/"

// SpotifyScopes are the read-only scopes needed to observe playback.
var SpotifyScopes = []string{
	"user-read-currently-playing",
	"user-read-playback-state",
	"user-read-recently-played",
}

// GoogleConfig returns an OAuth2 config for read-only calendar access.
// It prioritizes the client id/secret over a credentials file.
func GoogleConfig(clientID, clientSecret, credentialsFile string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  googleRedirectURL,
			Scopes:       []string{calendar.CalendarReadonlyScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, fmt.Errorf("%s not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place the credentials file in the working directory", credentialsFile)
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = googleRedirectURL
	return config, nil
}

// SpotifyConfig returns an OAuth2 config for the Spotify accounts service.
func SpotifyConfig(clientID, clientSecret, redirectURI string) (*oauth2.Config, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET must be set")
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       SpotifyScopes,
		Endpoint:     spotify.Endpoint,
	}, nil
}

// CodeFromInput accepts either a bare authorization code or the full
// redirect URL the browser landed on.
func CodeFromInput(input string) string {
	input = strings.TrimSpace(input)
	if !strings.Contains(input, "code=") {
		return input
	}
	u, err := url.Parse(input)
	if err != nil {
		return input
	}
	if code := u.Query().Get("code"); code != "" {
		return code
	}
	return input
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// TokenFromFile retrieves a token from a local file.
func TokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// Client returns an HTTP client authorized with the token stored in
// tokenFile. Refreshed tokens are written back to the same file. The base
// transport is taken from ctx (oauth2.HTTPClient) when present.
func Client(ctx context.Context, logger *slog.Logger, config *oauth2.Config, tokenFile string) (*http.Client, error) {
	token, err := TokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("could not load token from %s: %w. Please run the 'auth' command first", tokenFile, err)
	}

	src := NewPersistingSource(logger, config.TokenSource(ctx, token), tokenFile, token)
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, src)), nil
}

// PersistingSource wraps a token source and saves every new access token.
type PersistingSource struct {
	mu     sync.Mutex
	base   oauth2.TokenSource
	path   string
	last   string
	logger *slog.Logger
}

// NewPersistingSource wraps base. initial may be nil.
func NewPersistingSource(logger *slog.Logger, base oauth2.TokenSource, path string, initial *oauth2.Token) *PersistingSource {
	s := &PersistingSource{base: base, path: path, logger: logger}
	if initial != nil {
		s.last = initial.AccessToken
	}
	return s
}

func (s *PersistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := SaveToken(s.path, tok); err != nil {
			// The in-memory token is still usable.
			s.logger.Warn("Failed to persist refreshed token", "file", s.path, "error", err)
		} else {
			s.logger.Debug("Persisted refreshed token", "file", s.path)
		}
	}
	return tok, nil
}
