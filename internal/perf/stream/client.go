// Package stream maintains the live push connection that delivers metric,
// test-status, and CLI-stat events from the dialer.
//
// Events arrive on a single typed channel. A Client reconnects at most
// once per lost connection, after ReconnectDelay; if that attempt fails it
// reports StateError and stops. Close tears everything down
// deterministically.
package stream

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"

	"github.com/rs/zerolog"
)

// ReconnectDelay is the fixed wait before the single reconnect attempt.
const ReconnectDelay = 5 * time.Second

const defaultEventBuffer = 64

// Client is a metrics stream consumer.
type Client struct {
	url    string
	dialer Dialer
	log    zerolog.Logger

	reconnectDelay time.Duration
	after          func(time.Duration) <-chan time.Time
	now            func() time.Time

	host       string
	patterns   []string
	restricted bool

	events chan Event

	mu      sync.Mutex
	state   State
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the websocket dialer (tests inject fakes here).
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithLogger sets the logger used for dropped payloads and state changes.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithReconnectDelay overrides ReconnectDelay.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) { c.reconnectDelay = d }
}

// WithAfter replaces the timer used to wait before reconnecting.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(c *Client) { c.after = after }
}

// WithHost sets the hostname checked by Restricted. Defaults to
// os.Hostname.
func WithHost(host string) Option {
	return func(c *Client) { c.host = host }
}

// WithRestrictedPatterns overrides DefaultRestrictedPatterns.
func WithRestrictedPatterns(patterns []string) Option {
	return func(c *Client) { c.patterns = patterns }
}

// WithEventBuffer sets the event channel capacity.
func WithEventBuffer(n int) Option {
	return func(c *Client) { c.events = make(chan Event, n) }
}

// New builds a client for url. The restricted-host check happens here,
// once, so a disabled client never touches the network.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:            url,
		dialer:         WebsocketDialer{},
		log:            zerolog.Nop(),
		reconnectDelay: ReconnectDelay,
		now:            time.Now,
		events:         make(chan Event, defaultEventBuffer),
		state:          StateClosed,
	}
	if h, err := os.Hostname(); err == nil {
		c.host = h
	}
	for _, opt := range opts {
		opt(c)
	}
	c.restricted = Restricted(c.host, c.patterns)
	return c
}

// Events returns the channel on which all events are delivered. It is
// closed when the client stops.
func (c *Client) Events() <-chan Event { return c.events }

// Disabled reports whether the restricted-host predicate disabled the
// client.
func (c *Client) Disabled() bool { return c.restricted }

// State returns the most recent lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start launches the connection loop. Calling Start more than once has no
// effect.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx)
}

// Close stops the connection loop, closes the socket and any pending
// reconnect timer, and waits for the loop to exit. The event channel is
// closed by the time Close returns.
func (c *Client) Close() error {
	c.mu.Lock()
	if !c.started {
		c.started = true
		close(c.events)
		c.mu.Unlock()
		return nil
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
	return nil
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	defer close(c.events)

	if c.restricted {
		c.log.Info().Str("host", c.host).Msg("stream disabled on restricted host")
		c.emit(ctx, StateEvent{State: StateDisabled})
		return
	}

	retried := false
	for {
		c.emit(ctx, StateEvent{State: StateConnecting})

		conn, err := c.dialer.Dial(ctx, c.url)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			terr := &domain.TransportError{Op: "connect metrics stream", Err: err}
			if retried {
				c.log.Error().Err(terr).Msg("stream reconnect failed, giving up")
				c.emit(ctx, StateEvent{State: StateError, Err: terr})
				return
			}
			c.log.Warn().Err(terr).Dur("retry_in", c.reconnectDelay).Msg("stream connect failed")
			c.emit(ctx, StateEvent{State: StateClosed, Err: terr})
			retried = true
			if !c.wait(ctx) {
				return
			}
			continue
		}

		retried = false
		c.emit(ctx, StateEvent{State: StateOpen})
		readErr := c.readLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}

		var cause error
		if readErr != nil {
			cause = &domain.TransportError{Op: "read metrics stream", Err: readErr}
		}
		c.log.Warn().Err(cause).Dur("retry_in", c.reconnectDelay).Msg("stream closed")
		c.emit(ctx, StateEvent{State: StateClosed, Err: cause})
		retried = true
		if !c.wait(ctx) {
			return
		}
	}
}

// readLoop delivers messages until the connection fails. Malformed
// payloads are logged and dropped without closing the connection.
func (c *Client) readLoop(ctx context.Context, conn Conn) error {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		ev, err := decode(data, c.now())
		if err != nil {
			var perr *domain.ParseError
			if errors.As(err, &perr) {
				c.log.Warn().Err(perr).Msg("dropping stream message")
				continue
			}
			return err
		}
		c.emit(ctx, ev)
	}
}

// wait blocks for the reconnect delay. It returns false if ctx ended
// first.
func (c *Client) wait(ctx context.Context) bool {
	if c.after != nil {
		select {
		case <-ctx.Done():
			return false
		case <-c.after(c.reconnectDelay):
			return true
		}
	}

	timer := time.NewTimer(c.reconnectDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Client) emit(ctx context.Context, ev Event) {
	if se, ok := ev.(StateEvent); ok {
		c.mu.Lock()
		c.state = se.State
		c.mu.Unlock()
	}
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}
