package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"vibesync/internal/auth"
	"vibesync/internal/config"
	"vibesync/internal/emitter"
	"vibesync/internal/genre"
	"vibesync/internal/google"
	"vibesync/internal/icloud"
	"vibesync/internal/playback"
	"vibesync/internal/poller"
	"vibesync/internal/retry"
	"vibesync/internal/schedule"
	"vibesync/internal/socketio"
	"vibesync/internal/spotify"
	"vibesync/internal/transport"
)

// How long --once waits for the socket before polling anyway.
const onceConnectTimeout = 10 * time.Second

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "vibesync",
		Usage: "Push the current Spotify track and upcoming calendar events to a vibe server.",
		Commands: []*cli.Command{
			authCommand(),
			runCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{Name: "config", EnvVars: []string{"VIBESYNC_CONFIG"}, Usage: "Path to a YAML config file."}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize an account and save its API token.",
		Subcommands: []*cli.Command{
			{
				Name:  "google",
				Usage: "Authorize read-only access to Google Calendar.",
				Flags: []cli.Flag{configFlag()},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					oc, err := auth.GoogleConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CredentialsFile)
					if err != nil {
						return fmt.Errorf("failed to get google oauth config: %w", err)
					}
					return authorize(c.Context, cfg, "Google", oc, cfg.Google.TokenFile, oauth2.AccessTypeOffline)
				},
			},
			{
				Name:  "spotify",
				Usage: "Authorize read access to Spotify playback.",
				Flags: []cli.Flag{configFlag()},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					oc, err := auth.SpotifyConfig(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.RedirectURI)
					if err != nil {
						return fmt.Errorf("failed to get spotify oauth config: %w", err)
					}
					return authorize(c.Context, cfg, "Spotify", oc, cfg.Spotify.TokenFile)
				},
			},
		},
	}
}

func authorize(ctx context.Context, cfg *config.Config, provider string, oc *oauth2.Config, tokenFile string, opts ...oauth2.AuthCodeOption) error {
	logger := setupLogger(cfg.LogLevel, os.Stderr)
	logger.Info("Starting authentication flow.", "provider", provider)

	base, err := transport.NewHTTPClient(cfg.HTTPTimeout)
	if err != nil {
		return err
	}

	authURL := oc.AuthCodeURL("state-token", opts...)
	fmt.Printf("Go to the following link in your browser then paste the "+
		"authorization code or the URL you were redirected to: \n%v\n", authURL)

	fmt.Print("Enter Authorization Code: ")
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	code := auth.CodeFromInput(input)
	if code == "" {
		return fmt.Errorf("no authorization code entered")
	}

	token, err := oc.Exchange(context.WithValue(ctx, oauth2.HTTPClient, base), code)
	if err != nil {
		return fmt.Errorf("unable to retrieve token from web: %w", err)
	}

	if err := auth.SaveToken(tokenFile, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	logger.Info("Successfully authenticated and saved token.", "provider", provider, "file", tokenFile)
	return nil
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the poll loop.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "once", Usage: "Run a single poll cycle and exit."},
			&cli.IntFlag{Name: "interval", Usage: "Poll every N seconds. Overrides POLLING_INTERVAL."},
			configFlag(),
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if c.IsSet("interval") {
				cfg.PollingInterval = c.Int("interval")
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			out, closeLog, err := logOutput(cfg.LogFile)
			if err != nil {
				return err
			}
			defer closeLog()
			logger := setupLogger(cfg.LogLevel, out)

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			base, err := transport.NewHTTPClient(cfg.HTTPTimeout)
			if err != nil {
				return err
			}
			// Token refreshes must outlive a shutdown signal so an in-flight
			// cycle can finish.
			authCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

			playbackSource, err := newPlaybackSource(authCtx, logger, cfg)
			if err != nil {
				return err
			}
			lister, err := newLister(authCtx, logger, cfg, base)
			if err != nil {
				return err
			}
			scheduleSource := schedule.NewSource(logger, lister)

			link, err := socketio.New(logger, cfg.NodeServerURL)
			if err != nil {
				return err
			}
			em := emitter.New(logger, link)
			if err := em.Connect(ctx); err != nil {
				return err
			}
			defer em.Disconnect()

			p := poller.New(logger, playbackSource, scheduleSource, em,
				poller.WithLookaheadHours(cfg.LookaheadHours),
				poller.WithRecentLimit(cfg.RecentTracksLimit),
			)

			logger.Info("Vibe sync started.", "server", cfg.NodeServerURL, "schedule", cfg.ScheduleProvider)

			if c.Bool("once") {
				waitCtx, cancel := context.WithTimeout(ctx, onceConnectTimeout)
				defer cancel()
				if err := em.WaitConnected(waitCtx); err != nil {
					logger.Warn("Socket not connected yet, polling anyway.", "error", err)
				}
				logger.Info("Running a single poll cycle.")
				if !p.RunOnce(ctx) {
					return fmt.Errorf("single poll cycle failed")
				}
				return nil
			}

			p.Run(ctx, cfg.Interval())
			logger.Info("Shutting down.")
			return nil
		},
	}
}

func newPlaybackSource(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*playback.Source, error) {
	oc, err := auth.SpotifyConfig(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("failed to get spotify oauth config: %w", err)
	}
	httpClient, err := auth.Client(ctx, logger, oc, cfg.Spotify.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create spotify client: %w", err)
	}

	api := spotify.NewClient(httpClient, cfg.Spotify.BaseURL)
	policy := retry.Policy{Logger: logger}
	return playback.NewSource(logger, api, genre.NewCache(), policy), nil
}

func newLister(ctx context.Context, logger *slog.Logger, cfg *config.Config, base *http.Client) (schedule.Lister, error) {
	switch cfg.ScheduleProvider {
	case config.ProviderCalDAV:
		client, err := icloud.NewClient(ctx, logger, icloud.Options{
			Endpoint:     cfg.CalDAV.Endpoint,
			Username:     cfg.CalDAV.Username,
			Password:     cfg.CalDAV.Password,
			CalendarName: cfg.CalDAV.CalendarName,
			Transport:    base.Transport,
			Timeout:      base.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create caldav client: %w", err)
		}
		return client, nil
	default:
		oc, err := auth.GoogleConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to get google oauth config: %w", err)
		}
		httpClient, err := auth.Client(ctx, logger, oc, cfg.Google.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create google client: %w", err)
		}
		client, err := google.NewClient(ctx, logger, httpClient, cfg.Google.CalendarID)
		if err != nil {
			return nil, fmt.Errorf("failed to create google calendar client: %w", err)
		}
		return client, nil
	}
}

// logOutput tees to stderr and path. An empty path logs to stderr only.
func logOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stderr, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return io.MultiWriter(os.Stderr, f), func() { _ = f.Close() }, nil
}

func setupLogger(level string, w io.Writer) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}
