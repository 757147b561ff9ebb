// Package realtime maintains the duplex channel to the live chat backend.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"go.aimuz.me/prakriti/internal/types"
)

// ErrTransportClosed is returned by Send when the channel is not open.
var ErrTransportClosed = types.ErrTransportClosed

const (
	// DefaultRetryDelay is the fixed pause between a closure and the next
	// connection attempt. It does not grow.
	DefaultRetryDelay = 3 * time.Second

	locateTimeout = 5 * time.Second
)

// Locator yields the device position, or an error when it is unknown or
// denied.
type Locator interface {
	Locate(ctx context.Context) (types.Position, error)
}

// Config holds configuration for the Conn.
type Config struct {
	URL        string
	RetryDelay time.Duration
}

// Option configures a Conn.
type Option func(*Conn)

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Conn) { c.dialer = d }
}

// WithClock replaces the clock that schedules reconnection.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Conn) { c.clock = clock }
}

// WithLocator reports the position once per established connection.
func WithLocator(l Locator) Option {
	return func(c *Conn) { c.locator = l }
}

// Conn is one logical connection to the backend. It redials forever after
// unexpected closures, keeps at most one transport alive, and delivers
// envelopes at most once.
type Conn struct {
	url        string
	retryDelay time.Duration
	dialer     Dialer
	clock      clockwork.Clock
	locator    Locator

	// wmu serializes writes. It is taken before mu when both are needed.
	wmu sync.Mutex

	mu       sync.Mutex
	state    types.ConnState
	tr       Transport
	gen      uint64 // incremented per established transport
	retry    clockwork.Timer
	started  bool
	closed   bool
	handler  func(types.Envelope)
	onState  func(types.ConnState)
	attempts int

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Conn. Call Connect to start dialing.
func New(cfg Config, opts ...Option) *Conn {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	c := &Conn{
		url:        cfg.URL,
		retryDelay: cfg.RetryDelay,
		dialer:     WebSocketDialer{},
		clock:      clockwork.NewRealClock(),
		state:      types.ConnConnecting,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnMessage registers the handler for inbound response envelopes. Other
// kinds never reach it.
func (c *Conn) OnMessage(fn func(types.Envelope)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = fn
}

// OnStateChange registers a callback for connection state transitions.
func (c *Conn) OnStateChange(fn func(types.ConnState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

// State returns the current connection state.
func (c *Conn) State() types.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns how many connection attempts have been made.
func (c *Conn) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Connect starts the first connection attempt in the background and
// returns immediately. The connection lives until Close or until ctx is
// cancelled.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrTransportClosed
	}
	if c.started {
		c.mu.Unlock()
		return errors.New("realtime: already connected")
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	go c.attempt()
	return nil
}

// Send writes env to the open transport. It fails with ErrTransportClosed
// when the channel is connecting or closed; the envelope is not queued.
func (c *Conn) Send(ctx context.Context, env types.Envelope) error {
	data, err := EncodeEnvelope(env)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	c.mu.Lock()
	tr, state, gen := c.tr, c.state, c.gen
	c.mu.Unlock()

	if state != types.ConnOpen || tr == nil {
		return fmt.Errorf("send %s: %w (state %s)", env.Kind, ErrTransportClosed, state)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tr.WriteFrame(data); err != nil {
		c.drop(gen, tr, err)
		return fmt.Errorf("send %s: %w: %v", env.Kind, ErrTransportClosed, err)
	}
	return nil
}

// Close tears down the transport and cancels any pending reconnection.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	tr := c.tr
	c.tr = nil
	notify := c.setState(types.ConnClosed)
	cancel := c.cancel
	c.mu.Unlock()

	notify()
	if cancel != nil {
		cancel()
	}
	if tr != nil {
		if err := tr.Close(); err != nil {
			return fmt.Errorf("close transport: %w", err)
		}
	}
	slog.Info("live chat connection closed", "url", c.url)
	return nil
}

// setState records s and returns a function that reports it to the state
// callback. Callers hold mu and run the function after unlocking.
func (c *Conn) setState(s types.ConnState) func() {
	if c.state == s {
		return func() {}
	}
	c.state = s
	fn := c.onState
	if fn == nil {
		return func() {}
	}
	return func() { fn(s) }
}

func (c *Conn) attempt() {
	c.mu.Lock()
	if c.closed || c.ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.attempts++
	n := c.attempts
	ctx := c.ctx
	notify := c.setState(types.ConnConnecting)
	c.mu.Unlock()
	notify()

	slog.Debug("live chat dialing", "url", c.url, "attempt", n)
	tr, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		slog.Warn("live chat dial failed", "url", c.url, "attempt", n, "error", err)
		c.mu.Lock()
		notify := c.setState(types.ConnClosed)
		c.mu.Unlock()
		notify()
		c.scheduleRetry()
		return
	}

	// Hold the write lock until the location report is out so it precedes
	// any user traffic on this transport.
	c.wmu.Lock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.wmu.Unlock()
		_ = tr.Close()
		return
	}
	c.tr = tr
	c.gen++
	gen := c.gen
	notify = c.setState(types.ConnOpen)
	c.mu.Unlock()

	notify()
	slog.Info("live chat connected", "url", c.url, "attempt", n)
	go c.readLoop(tr, gen)

	c.reportLocation(ctx, tr, gen)
	c.wmu.Unlock()
}

// reportLocation sends one location envelope when a fix is available.
// Every failure here is ignored. Called with wmu held.
func (c *Conn) reportLocation(ctx context.Context, tr Transport, gen uint64) {
	if c.locator == nil {
		return
	}
	lctx, cancel := context.WithTimeout(ctx, locateTimeout)
	defer cancel()

	pos, err := c.locator.Locate(lctx)
	if err != nil {
		slog.Debug("location unavailable", "error", err)
		return
	}
	data, err := EncodeEnvelope(LocationEnvelope(pos))
	if err != nil {
		return
	}
	if err := tr.WriteFrame(data); err != nil {
		slog.Debug("send location", "error", err)
		c.drop(gen, tr, err)
		return
	}
	slog.Debug("location sent", "lat", pos.Latitude, "lon", pos.Longitude)
}

func (c *Conn) readLoop(tr Transport, gen uint64) {
	for {
		data, err := tr.ReadFrame()
		if err != nil {
			c.drop(gen, tr, err)
			return
		}

		env, err := DecodeEnvelope(data)
		if err != nil {
			slog.Warn("failed to decode envelope", "error", err, "data", truncate(data, 200))
			continue
		}
		if env.Kind != types.KindResponse {
			slog.Debug("ignoring inbound envelope", "type", env.Kind)
			continue
		}

		c.mu.Lock()
		h := c.handler
		c.mu.Unlock()
		if h != nil {
			h(env)
		}
	}
}

// drop tears down transport generation gen after a failure and schedules
// the single reconnection attempt for it. Stale generations are ignored.
func (c *Conn) drop(gen uint64, tr Transport, cause error) {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.tr != tr {
		c.mu.Unlock()
		return
	}
	c.tr = nil
	notify := c.setState(types.ConnClosed)
	c.mu.Unlock()

	notify()
	if err := tr.Close(); err != nil {
		slog.Debug("close transport", "error", err)
	}
	slog.Warn("live chat disconnected", "error", cause, "retry_in", c.retryDelay)
	c.scheduleRetry()
}

func (c *Conn) scheduleRetry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.retry != nil || c.ctx.Err() != nil {
		return
	}
	c.retry = c.clock.AfterFunc(c.retryDelay, func() {
		c.mu.Lock()
		c.retry = nil
		c.mu.Unlock()
		go c.attempt()
	})
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "…"
}
