// Package poller runs the poll cycle: check playback, and while music is
// playing gather upcoming events and recent tracks into one vibe context for
// the delivery channel.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"vibesync/internal/models"
	"vibesync/internal/result"
)

const (
	DefaultLookaheadHours = 2
	DefaultRecentLimit    = 10
)

// PlaybackSource is satisfied by *playback.Source.
type PlaybackSource interface {
	NowPlaying(ctx context.Context) result.Result[models.Track]
	RecentTracks(ctx context.Context, limit int) []models.RecentTrack
}

// ScheduleSource is satisfied by *schedule.Source.
type ScheduleSource interface {
	UpcomingEvents(ctx context.Context, hours int) []models.CalendarEvent
}

// Announcer is satisfied by *emitter.Emitter.
type Announcer interface {
	AnnounceIdle()
	AnnounceContext(vc models.VibeContext)
}

// Poller orchestrates playback, schedule and delivery.
type Poller struct {
	logger         *slog.Logger
	playback       PlaybackSource
	schedule       ScheduleSource
	announcer      Announcer
	lookaheadHours int
	recentLimit    int
	sleep          func(ctx context.Context, d time.Duration) bool
}

// Option customizes a Poller.
type Option func(*Poller)

// WithLookaheadHours sets how far ahead events are fetched.
func WithLookaheadHours(h int) Option {
	return func(p *Poller) {
		if h > 0 {
			p.lookaheadHours = h
		}
	}
}

// WithRecentLimit sets how many recently played items are requested.
func WithRecentLimit(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.recentLimit = n
		}
	}
}

// New creates a Poller.
func New(logger *slog.Logger, pb PlaybackSource, sc ScheduleSource, an Announcer, opts ...Option) *Poller {
	p := &Poller{
		logger:         logger,
		playback:       pb,
		schedule:       sc,
		announcer:      an,
		lookaheadHours: DefaultLookaheadHours,
		recentLimit:    DefaultRecentLimit,
		sleep:          sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PollCycle performs one iteration. When nothing is playing it announces idle
// and makes no further remote calls.
func (p *Poller) PollCycle(ctx context.Context) {
	res := p.playback.NowPlaying(ctx)
	track, ok := res.Value()
	if !ok {
		if res.Kind() == result.KindDegraded {
			p.logger.Warn("Playback unavailable, reporting idle", "error", res.Err())
		}
		p.announcer.AnnounceIdle()
		return
	}

	events := p.schedule.UpcomingEvents(ctx, p.lookaheadHours)
	recent := p.playback.RecentTracks(ctx, p.recentLimit)

	p.announcer.AnnounceContext(models.VibeContext{
		Track:        track,
		Events:       events,
		RecentTracks: recent,
	})
}

// Run polls until ctx is done, sleeping interval between cycles. A cycle that
// fails or panics is logged and the loop carries on. A cycle that has started
// is not interrupted by ctx; the loop checks for shutdown between cycles.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	p.logger.Info("Starting poll loop.", "interval", interval)
	for {
		p.RunOnce(ctx)
		if !p.sleep(ctx, interval) {
			p.logger.Info("Poll loop stopped.")
			return
		}
	}
}

// RunOnce runs a single guarded cycle and reports whether it succeeded.
func (p *Poller) RunOnce(ctx context.Context) bool {
	cycleID := uuid.NewString()
	logger := p.logger.With("cycle", cycleID)
	started := time.Now()

	err := p.guardedCycle(context.WithoutCancel(ctx))
	if err != nil {
		logger.Error("Poll cycle error", "error", err)
		return false
	}
	logger.Debug("Poll cycle finished", "elapsed", time.Since(started))
	return true
}

func (p *Poller) guardedCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in poll cycle: %v\n%s", r, debug.Stack())
		}
	}()
	p.PollCycle(ctx)
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
