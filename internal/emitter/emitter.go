// Package emitter delivers vibe updates to the downstream server over a
// persistent Socket.IO connection.
//
// Announcements never block the caller: they are queued and written by a
// background goroutine once the link reports it is up. The link itself owns
// reconnecting.
package emitter

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"vibesync/internal/models"
	"vibesync/internal/socketio"
)

// Event names understood by the vibe server.
const (
	EventIdle    = "vibe_idle"
	EventContext = "vibe_context"
)

const defaultQueueSize = 16

// ErrAlreadyConnected is returned by a second Connect.
var ErrAlreadyConnected = errors.New("emitter: already connected")

// Link is a reconnecting connection. Up and Down return channels that are
// closed while the link is in that state; after a change, callers must ask
// again for a fresh channel.
type Link interface {
	Connect()
	Emit(event string, payload any) error
	Up() <-chan struct{}
	Down() <-chan struct{}
	Close() error
}

var _ Link = (*socketio.Client)(nil)

type message struct {
	event   string
	payload any
}

// Emitter is the delivery channel.
type Emitter struct {
	link   Link
	logger *slog.Logger
	queue  chan message

	mu        sync.Mutex
	cancel    context.CancelFunc
	stopped   bool
	connected chan struct{}
	firstOnce sync.Once
	wg        sync.WaitGroup
}

// Option customizes an Emitter.
type Option func(*Emitter)

// WithQueueSize overrides how many announcements may wait for a connection.
func WithQueueSize(n int) Option {
	return func(e *Emitter) {
		if n > 0 {
			e.queue = make(chan message, n)
		}
	}
}

// New creates an emitter over link. Nothing is connected until Connect.
func New(logger *slog.Logger, link Link, opts ...Option) *Emitter {
	e := &Emitter{
		link:      link,
		logger:    logger,
		queue:     make(chan message, defaultQueueSize),
		connected: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Connect starts the link and the background writer. Connection failures
// are logged and retried by the link; they are never returned.
func (e *Emitter) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil || e.stopped {
		return ErrAlreadyConnected
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(runCtx)
	}()
	e.link.Connect()
	return nil
}

// WaitConnected blocks until the first connection is established or ctx ends.
func (e *Emitter) WaitConnected(ctx context.Context) error {
	select {
	case <-e.connected:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect flushes what it can, closes the link and stops reconnecting.
// It is safe to call more than once, and before Connect.
func (e *Emitter) Disconnect() {
	e.mu.Lock()
	cancel := e.cancel
	alreadyStopped := e.stopped
	e.stopped = true
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
	if !alreadyStopped {
		if err := e.link.Close(); err != nil {
			e.logger.Warn("Failed to close socket", "error", err)
		}
	}
}

// AnnounceIdle tells the server nothing is playing.
func (e *Emitter) AnnounceIdle() {
	e.enqueue(message{event: EventIdle, payload: struct{}{}})
	e.logger.Info("Queued vibe_idle")
}

// AnnounceContext sends the current track with upcoming events and recent tracks.
func (e *Emitter) AnnounceContext(vc models.VibeContext) {
	if vc.RecentTracks == nil {
		vc.RecentTracks = []models.RecentTrack{}
	}
	if vc.Events == nil {
		vc.Events = []models.CalendarEvent{}
	}
	e.enqueue(message{event: EventContext, payload: vc})
	e.logger.Info("Queued vibe_context", "track", vc.Track.Name, "artist", vc.Track.Artist, "events", len(vc.Events), "recentTracks", len(vc.RecentTracks))
}

// enqueue never blocks; when the queue is full the oldest announcement is
// dropped since the server only cares about the latest state.
func (e *Emitter) enqueue(m message) {
	for {
		select {
		case e.queue <- m:
			return
		default:
		}
		select {
		case old := <-e.queue:
			e.logger.Warn("Delivery queue full, dropping oldest announcement", "event", old.event)
		default:
		}
	}
}

func (e *Emitter) run(ctx context.Context) {
	var pending *message
	for {
		select {
		case <-ctx.Done():
			e.dropQueued(pending)
			return
		case <-e.link.Up():
		}

		e.firstOnce.Do(func() { close(e.connected) })
		e.logger.Info("Connected to vibe server")

		if !e.deliver(ctx, &pending) {
			e.dropQueued(pending)
			e.logger.Info("Disconnected from vibe server")
			return
		}

		e.logger.Warn("Lost connection to vibe server, waiting for reconnect")
		select {
		case <-ctx.Done():
			e.dropQueued(pending)
			return
		case <-e.link.Down():
		}
	}
}

// deliver writes announcements until the link drops (true) or ctx ends (false).
// A message whose write failed stays pending for the next connection.
func (e *Emitter) deliver(ctx context.Context, pending **message) bool {
	down := e.link.Down()
	for {
		if *pending != nil {
			if err := e.write(**pending); err != nil {
				return true
			}
			*pending = nil
		}

		select {
		case <-ctx.Done():
			e.flush()
			return false
		case <-down:
			return true
		case m := <-e.queue:
			*pending = &m
		}
	}
}

// flush writes whatever is still queued, best effort.
func (e *Emitter) flush() {
	for {
		select {
		case m := <-e.queue:
			if err := e.write(m); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (e *Emitter) write(m message) error {
	if err := e.link.Emit(m.event, m.payload); err != nil {
		e.logger.Warn("Emit failed", "event", m.event, "error", err)
		return err
	}
	e.logger.Debug("Emitted event", "event", m.event)
	return nil
}

func (e *Emitter) dropQueued(pending *message) {
	n := len(e.queue)
	if pending != nil {
		n++
	}
	if n > 0 {
		e.logger.Warn("Dropping undelivered announcements", "count", n)
	}
}
