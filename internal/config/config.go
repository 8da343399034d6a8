// Package config loads vibesync settings once at startup: defaults, then an
// optional YAML file, then environment variables (a .env file is loaded into
// the environment by main before this runs).
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Schedule providers.
const (
	ProviderGoogle = "google"
	ProviderCalDAV = "caldav"
)

type Config struct {
	NodeServerURL     string        `yaml:"node_server_url"`
	PollingInterval   int           `yaml:"polling_interval"` // seconds
	LogLevel          string        `yaml:"log_level"`
	LogFile           string        `yaml:"log_file"`
	HTTPTimeout       time.Duration `yaml:"http_timeout"`
	LookaheadHours    int           `yaml:"lookahead_hours"`
	RecentTracksLimit int           `yaml:"recent_tracks_limit"`
	ScheduleProvider  string        `yaml:"schedule_provider"`

	Spotify SpotifyConfig `yaml:"spotify"`
	Google  GoogleConfig  `yaml:"google"`
	CalDAV  CalDAVConfig  `yaml:"caldav"`
}

type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
	TokenFile    string `yaml:"token_file"`
	BaseURL      string `yaml:"base_url"`
}

type GoogleConfig struct {
	ClientID        string `yaml:"client_id"`
	ClientSecret    string `yaml:"client_secret"`
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	CalendarID      string `yaml:"calendar_id"`
}

type CalDAVConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	CalendarName string `yaml:"calendar_name"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		NodeServerURL:     "http://localhost:3001",
		PollingInterval:   30,
		LogLevel:          "info",
		LogFile:           "vibe_sync.log",
		HTTPTimeout:       15 * time.Second,
		LookaheadHours:    2,
		RecentTracksLimit: 10,
		ScheduleProvider:  ProviderGoogle,
		Spotify: SpotifyConfig{
			RedirectURI: "http://127.0.0.1:8888/callback",
			TokenFile:   "token-spotify.json",
		},
		Google: GoogleConfig{
			CredentialsFile: "credentials.json",
			TokenFile:       "token-google.json",
			CalendarID:      "primary",
		},
		CalDAV: CalDAVConfig{
			Endpoint: "https://caldav.icloud.com/",
		},
	}
}

// Load builds the configuration. path may be empty to skip the YAML file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	envString(&c.NodeServerURL, "NODE_SERVER_URL")
	envString(&c.LogLevel, "LOG_LEVEL")
	if v, ok := os.LookupEnv("VIBESYNC_LOG_FILE"); ok {
		c.LogFile = v
	}
	envString(&c.ScheduleProvider, "SCHEDULE_PROVIDER")

	envString(&c.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	envString(&c.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	envString(&c.Spotify.RedirectURI, "SPOTIFY_REDIRECT_URI")
	envString(&c.Spotify.TokenFile, "SPOTIFY_TOKEN_FILE")
	envString(&c.Spotify.BaseURL, "SPOTIFY_API_BASE_URL")

	envString(&c.Google.ClientID, "GOOGLE_CLIENT_ID")
	envString(&c.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	envString(&c.Google.CredentialsFile, "GOOGLE_CREDENTIALS_FILE")
	envString(&c.Google.TokenFile, "GOOGLE_TOKEN_FILE")
	envString(&c.Google.CalendarID, "GOOGLE_CALENDAR_ID")

	envString(&c.CalDAV.Endpoint, "CALDAV_ENDPOINT")
	envString(&c.CalDAV.Username, "CALDAV_USERNAME")
	envString(&c.CalDAV.Password, "CALDAV_PASSWORD")
	envString(&c.CalDAV.CalendarName, "CALDAV_CALENDAR_NAME")

	for key, dst := range map[string]*int{
		"POLLING_INTERVAL":    &c.PollingInterval,
		"LOOKAHEAD_HOURS":     &c.LookaheadHours,
		"RECENT_TRACKS_LIMIT": &c.RecentTracksLimit,
	} {
		if err := envInt(dst, key); err != nil {
			return err
		}
	}

	if raw := os.Getenv("HTTP_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid HTTP_TIMEOUT %q: %w", raw, err)
		}
		c.HTTPTimeout = d
	}
	return nil
}

// Validate checks the settings needed by the run command.
func (c *Config) Validate() error {
	if c.PollingInterval <= 0 {
		return fmt.Errorf("polling interval must be positive, got %d", c.PollingInterval)
	}
	if c.LookaheadHours <= 0 {
		return fmt.Errorf("lookahead hours must be positive, got %d", c.LookaheadHours)
	}
	if c.RecentTracksLimit <= 0 || c.RecentTracksLimit > 50 {
		return fmt.Errorf("recent tracks limit must be between 1 and 50, got %d", c.RecentTracksLimit)
	}
	u, err := url.Parse(c.NodeServerURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid node server url %q", c.NodeServerURL)
	}

	switch strings.ToLower(c.ScheduleProvider) {
	case ProviderGoogle:
	case ProviderCalDAV:
		if c.CalDAV.Username == "" || c.CalDAV.Password == "" || c.CalDAV.CalendarName == "" {
			return fmt.Errorf("CALDAV_USERNAME, CALDAV_PASSWORD and CALDAV_CALENDAR_NAME are required for the caldav provider")
		}
	default:
		return fmt.Errorf("unknown schedule provider %q", c.ScheduleProvider)
	}
	c.ScheduleProvider = strings.ToLower(c.ScheduleProvider)
	return nil
}

// Interval returns the polling interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.PollingInterval) * time.Second
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	*dst = v
	return nil
}
