// Package realtime pushes per-user notifications to socket clients, either
// over a WebSocket or through long-poll requests.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/eaglebank/webclient/shared/events"
)

// DefaultBacklog is how many frames per user are kept for long polling.
const DefaultBacklog = 100

// Client is one live WebSocket connection.
type Client struct {
	send chan events.Frame
}

// Frames is closed when the client is unregistered.
func (c *Client) Frames() <-chan events.Frame { return c.send }

type feed struct {
	first  int64
	frames []events.Frame
	wake   chan struct{}
}

func (f *feed) next() int64 { return f.first + int64(len(f.frames)) }

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	feeds   map[string]*feed
	backlog int
}

func NewHub(backlog int) *Hub {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		feeds:   make(map[string]*feed),
		backlog: backlog,
	}
}

func (h *Hub) Register(userID string) *Client {
	client := &Client{send: make(chan events.Frame, 16)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	if _, ok := h.clients[userID][client]; !ok {
		return
	}
	delete(h.clients[userID], client)
	close(client.send)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// Connections reports the live WebSocket clients of userID.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Publish appends the frame to the user's backlog and hands it to every live
// client. A client whose buffer is full misses the frame. The signature
// matches events.Handler so a stream subscriber can feed the hub directly.
func (h *Hub) Publish(_ context.Context, n events.Notification) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	f := h.feedLocked(n.UserID)
	f.frames = append(f.frames, n.Frame)
	if over := len(f.frames) - h.backlog; over > 0 {
		f.frames = append([]events.Frame(nil), f.frames[over:]...)
		f.first += int64(over)
	}
	close(f.wake)
	f.wake = make(chan struct{})

	for client := range h.clients[n.UserID] {
		select {
		case client.send <- n.Frame:
		default:
		}
	}
	return nil
}

// Cursor is the position a new long-poll client starts reading from.
func (h *Hub) Cursor(userID string) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.feedLocked(userID).next()
}

// Poll returns the frames published after cursor, waiting up to wait for the
// first one. A cursor older than the backlog resumes at the oldest frame
// still kept.
func (h *Hub) Poll(ctx context.Context, userID string, cursor int64, wait time.Duration) ([]events.Frame, int64) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		frames, next, wake := h.since(userID, cursor)
		if len(frames) > 0 {
			return frames, next
		}
		select {
		case <-wake:
		case <-timer.C:
			return []events.Frame{}, next
		case <-ctx.Done():
			return []events.Frame{}, next
		}
	}
}

func (h *Hub) since(userID string, cursor int64) ([]events.Frame, int64, <-chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f := h.feedLocked(userID)
	if cursor < f.first {
		cursor = f.first
	}
	if cursor >= f.next() {
		return nil, f.next(), f.wake
	}
	out := append([]events.Frame(nil), f.frames[cursor-f.first:]...)
	return out, f.next(), f.wake
}

func (h *Hub) feedLocked(userID string) *feed {
	f, ok := h.feeds[userID]
	if !ok {
		f = &feed{wake: make(chan struct{})}
		h.feeds[userID] = f
	}
	return f
}
