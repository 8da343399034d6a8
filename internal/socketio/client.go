// Package socketio wraps the Socket.IO client for the vibe server: one
// long-lived socket on the default namespace whose manager reconnects on a
// fixed delay for as long as the client is open. Connection state is exposed
// as channels so a writer can wait for it without polling.
package socketio

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// ErrNotConnected is returned by Emit while the socket is down.
var ErrNotConnected = errors.New("socketio: not connected")

const (
	DefaultReconnectDelay = 5 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

// Reason the library reports when the server kicked the socket. The manager
// does not reconnect on its own after it.
const reasonServerDisconnect = "io server disconnect"

// Client is a Socket.IO client.
type Client struct {
	sock           *socket.Socket
	logger         *slog.Logger
	reconnectDelay time.Duration
	connectTimeout time.Duration

	mu     sync.Mutex
	up     chan struct{} // closed while connected
	down   chan struct{} // closed while disconnected
	closed bool
}

// Option customizes a Client.
type Option func(*Client)

// WithReconnectDelay overrides the fixed delay between connection attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.reconnectDelay = d
		}
	}
}

// WithConnectTimeout bounds a single connection attempt.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

// New prepares a client for a server such as "http://localhost:3001".
// Nothing is dialed until Connect.
func New(logger *slog.Logger, serverURL string, opts ...Option) (*Client, error) {
	c := &Client{
		logger:         logger,
		reconnectDelay: DefaultReconnectDelay,
		connectTimeout: DefaultConnectTimeout,
		up:             make(chan struct{}),
		down:           make(chan struct{}),
	}
	close(c.down)
	for _, opt := range opts {
		opt(c)
	}

	delayMs := float64(c.reconnectDelay / time.Millisecond)
	o := socket.DefaultOptions()
	o.SetTransports(types.NewSet(socket.Polling, socket.WebSocket))
	o.SetForceNew(true)
	o.SetAutoConnect(false)
	o.SetReconnection(true)
	o.SetReconnectionAttempts(math.Inf(1))
	o.SetReconnectionDelay(delayMs)
	o.SetReconnectionDelayMax(delayMs)
	o.SetRandomizationFactor(0)
	o.SetTimeout(c.connectTimeout)

	sock, err := socket.Connect(serverURL, o)
	if err != nil {
		return nil, fmt.Errorf("socketio: invalid server url %q: %w", serverURL, err)
	}
	c.sock = sock

	sock.On("connect", func(...any) {
		c.setUp()
	})
	sock.On("disconnect", func(args ...any) {
		c.setDown(args...)
	})
	sock.On("connect_error", func(args ...any) {
		c.logger.Error("Socket.io connection error", "error", firstArg(args), "retryIn", c.reconnectDelay)
	})
	sock.Io().On("reconnect_attempt", func(args ...any) {
		c.logger.Debug("Reconnecting to vibe server", "attempt", firstArg(args))
	})
	return c, nil
}

// Connect starts connecting in the background.
func (c *Client) Connect() {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if !closed {
		c.sock.Connect()
	}
}

// Emit sends an event with a JSON-encodable payload.
func (c *Client) Emit(event string, payload any) error {
	if !c.sock.Connected() {
		return ErrNotConnected
	}
	return c.sock.Emit(event, payload)
}

// Up is closed while the socket is connected.
func (c *Client) Up() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

// Down is closed while the socket is disconnected.
func (c *Client) Down() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.down
}

// Close leaves the namespace and stops reconnecting. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.sock.Disconnect()
	c.setDown()
	return nil
}

func (c *Client) setUp() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.up:
		return
	default:
	}
	close(c.up)
	c.down = make(chan struct{})
	c.logger.Debug("Socket.io connected", "id", c.sock.Id())
}

func (c *Client) setDown(args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.down:
		return
	default:
	}
	close(c.down)
	c.up = make(chan struct{})

	reason, _ := firstArg(args).(string)
	c.logger.Debug("Socket.io disconnected", "reason", reason)
	if reason == reasonServerDisconnect && !c.closed {
		time.AfterFunc(c.reconnectDelay, c.Connect)
	}
}

func firstArg(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}
