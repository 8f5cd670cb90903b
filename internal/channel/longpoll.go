package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/eaglebank/webclient/shared/events"
)

// PollResponse is the body of one long-poll round trip.
type PollResponse struct {
	Cursor int64          `json:"cursor"`
	Frames []events.Frame `json:"frames"`
}

var errConnClosed = errors.New("connection closed")

// LongPoll is the compatible transport: plain HTTP requests that the server
// holds open until frames are available or Wait elapses.
type LongPoll struct {
	Client *http.Client
	Path   string
	Wait   time.Duration
}

func NewLongPoll(wait time.Duration) *LongPoll {
	if wait <= 0 {
		wait = 25 * time.Second
	}
	return &LongPoll{
		Client: &http.Client{Timeout: wait + 10*time.Second},
		Path:   LongPollPath,
		Wait:   wait,
	}
}

func (p *LongPoll) Name() string { return "polling" }

// Dial performs the opening handshake, which validates the token and returns
// the cursor to poll from.
func (p *LongPoll) Dial(ctx context.Context, baseURL, token string) (Conn, error) {
	target, err := endpoint(baseURL, p.Path, false)
	if err != nil {
		return nil, err
	}
	connCtx, cancel := context.WithCancel(context.Background())
	c := &pollConn{
		transport: p,
		target:    target,
		token:     token,
		ctx:       connCtx,
		cancel:    cancel,
	}
	resp, err := c.poll(ctx, -1, 0)
	if err != nil {
		cancel()
		return nil, err
	}
	c.cursor = resp.Cursor
	return c, nil
}

type pollConn struct {
	transport *LongPoll
	target    string
	token     string
	ctx       context.Context
	cancel    context.CancelFunc

	mu     sync.Mutex
	cursor int64
	buf    []events.Frame
}

func (c *pollConn) ReadFrame(ctx context.Context) (events.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.buf) == 0 {
		if c.ctx.Err() != nil {
			return events.Frame{}, errConnClosed
		}
		resp, err := c.poll(ctx, c.cursor, c.transport.Wait)
		if err != nil {
			if c.ctx.Err() != nil {
				return events.Frame{}, errConnClosed
			}
			return events.Frame{}, err
		}
		c.cursor = resp.Cursor
		c.buf = resp.Frames
	}
	f := c.buf[0]
	c.buf = c.buf[1:]
	return f, nil
}

func (c *pollConn) Close() error {
	c.cancel()
	return nil
}

func (c *pollConn) poll(ctx context.Context, cursor int64, wait time.Duration) (*PollResponse, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	q := url.Values{}
	q.Set("cursor", strconv.FormatInt(cursor, 10))
	q.Set("wait", wait.String())
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.target+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.transport.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("poll rejected with %s", resp.Status)
	}
	var out PollResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode poll response: %w", err)
	}
	return &out, nil
}
