// Package channel maintains the single real-time connection to the
// notification server for the signed-in user.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eaglebank/webclient/shared/events"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Conn is an established transport connection.
type Conn interface {
	// ReadFrame blocks until the next frame arrives. It must return once the
	// connection is closed.
	ReadFrame(ctx context.Context) (events.Frame, error)
	Close() error
}

// Transport opens connections of one kind (websocket, long polling).
type Transport interface {
	Name() string
	Dial(ctx context.Context, baseURL, token string) (Conn, error)
}

// Sink receives connectivity changes and decoded events.
type Sink interface {
	SetConnected(connected bool)
	Deliver(ev events.Transfer)
}

// TokenSource supplies the token a connection authenticates with.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
	IsValid(token string) bool
}

var ErrNoTransport = errors.New("no transport configured")

type Options struct {
	URL         string
	Attempts    int
	Delay       time.Duration
	DialTimeout time.Duration
	// Transports are tried in order on every attempt.
	Transports []Transport
	Logger     *zap.SugaredLogger
}

type handle struct {
	token  string
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *handle) stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Channel owns at most one live connection at a time.
type Channel struct {
	opts   Options
	tokens TokenSource
	sink   Sink
	log    *zap.SugaredLogger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) bool

	// notifyMu orders connectivity reports so a stale loop or a finished
	// Disconnect never overwrites the report of a newer connection.
	notifyMu  sync.Mutex
	mu        sync.Mutex
	handle    *handle
	state     State
	transport string
	dials     int
}

func New(opts Options, tokens TokenSource, sink Sink) *Channel {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 20 * time.Second
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Second
	}
	return &Channel{
		opts:   opts,
		tokens: tokens,
		sink:   sink,
		log:    opts.Logger,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Connect starts the connection loop unless one is already live. Without a
// valid token it does nothing. It returns true when a new loop was started.
func (c *Channel) Connect(ctx context.Context) bool {
	token, ok := c.tokens.Token(ctx)
	if !ok || !c.tokens.IsValid(token) {
		c.log.Debugw("channel connect skipped: no valid token")
		return false
	}

	c.mu.Lock()
	if c.handle != nil {
		if !c.handle.stopped() {
			c.mu.Unlock()
			return false
		}
		c.handle.cancel()
		c.handle = nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	h := &handle{token: token, cancel: cancel, done: make(chan struct{})}
	c.handle = h
	c.state = Connecting
	c.mu.Unlock()

	go c.run(runCtx, h, token)
	return true
}

// Refresh restarts the connection when the token source no longer holds the
// token the live connection was opened with. It returns true when a new loop
// was started.
func (c *Channel) Refresh(ctx context.Context) bool {
	token, ok := c.tokens.Token(ctx)
	c.mu.Lock()
	h := c.handle
	current := ok && h != nil && !h.stopped() && h.token == token
	c.mu.Unlock()
	if current {
		return false
	}
	c.Disconnect()
	return c.Connect(ctx)
}

// Disconnect stops the live connection, waits for its loop to exit and
// reports the disconnected state. Calling it without a connection is a no-op.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	h := c.handle
	c.handle = nil
	c.mu.Unlock()
	if h == nil {
		return
	}

	h.cancel()
	<-h.done

	// A Connect issued while the old loop was exiting owns the state now.
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.mu.Lock()
	if c.handle != nil {
		c.mu.Unlock()
		return
	}
	c.state = Disconnected
	c.transport = ""
	c.mu.Unlock()
	c.sink.SetConnected(false)
	c.log.Infow("channel disconnected")
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transport names the transport of the current connection, if any.
func (c *Channel) Transport() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport
}

// Dials counts dial attempts made since the channel was created.
func (c *Channel) Dials() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dials
}

func (c *Channel) run(ctx context.Context, h *handle, token string) {
	defer close(h.done)

	failures := 0
	for {
		conn, name, err := c.dial(ctx, h, token)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			c.log.Warnw("channel connect failed", "attempt", failures, "error", err)
			if failures > c.opts.Attempts {
				c.giveUp(h)
				return
			}
			if !c.setState(h, Reconnecting, "") {
				return
			}
			if !c.sleep(ctx, time.Duration(failures)*c.opts.Delay) {
				return
			}
			continue
		}

		failures = 0
		if !c.report(h, Connected, name, true) {
			conn.Close()
			return
		}
		c.log.Infow("channel connected", "transport", name)

		err = c.read(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.log.Warnw("channel connection lost", "transport", name, "error", err)
		if !c.report(h, Reconnecting, "", false) {
			return
		}
	}
}

func (c *Channel) dial(ctx context.Context, h *handle, token string) (Conn, string, error) {
	if len(c.opts.Transports) == 0 {
		return nil, "", ErrNoTransport
	}
	var errs []error
	for _, t := range c.opts.Transports {
		c.mu.Lock()
		if c.handle != h {
			c.mu.Unlock()
			return nil, "", context.Canceled
		}
		c.dials++
		c.mu.Unlock()

		dctx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
		conn, err := t.Dial(dctx, c.opts.URL, token)
		cancel()
		if err == nil {
			return conn, t.Name(), nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		c.log.Debugw("transport dial failed", "transport", t.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
	}
	return nil, "", errors.Join(errs...)
}

func (c *Channel) read(ctx context.Context, conn Conn) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		frame, err := conn.ReadFrame(ctx)
		if err != nil {
			return err
		}
		ev, err := events.Decode(frame, c.now())
		if err != nil {
			if errors.Is(err, events.ErrUnknownEvent) {
				c.log.Debugw("ignoring channel event", "event", frame.Event)
			} else {
				c.log.Warnw("dropping malformed channel event", "event", frame.Event, "error", err)
			}
			continue
		}
		c.sink.Deliver(ev)
	}
}

// setState records s for h. It reports false when h is no longer the live
// handle, in which case the loop must stop without touching shared state.
func (c *Channel) setState(h *handle, s State, transport string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != h {
		return false
	}
	c.state = s
	c.transport = transport
	return true
}

// report is setState followed by a connectivity report, both skipped when h
// is no longer live.
func (c *Channel) report(h *handle, s State, transport string, connected bool) bool {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if !c.setState(h, s, transport) {
		return false
	}
	c.sink.SetConnected(connected)
	return true
}

func (c *Channel) giveUp(h *handle) {
	if c.report(h, Disconnected, "", false) {
		c.log.Errorw("channel gave up reconnecting", "attempts", c.opts.Attempts)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
