package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/eaglebank/webclient/shared/events"
)

// Toast kinds.
const (
	KindSuccess = "success"
	KindInfo    = "info"
	KindError   = "error"
)

type Toast struct {
	Key          string
	Kind         string
	Message      string
	VideoCallURL string
	At           time.Time
}

// ToastSink renders toasts.
type ToastSink interface {
	Show(t Toast)
}

// ToastKey identifies a transfer toast, e.g. "money-transfer-Alice-20".
// Two transfers with the same direction, counterparty and amount share a key.
func ToastKey(ev events.Transfer) string {
	return fmt.Sprintf("%s-%s-%s", ev.Direction, ev.Counterparty, ev.Amount.String())
}

// ToastCenter drops a toast whose key was already shown within the window.
// It also serves as the transient feedback channel for account operations.
type ToastCenter struct {
	sink   ToastSink
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	shown map[string]time.Time
}

func NewToastCenter(sink ToastSink, window time.Duration) *ToastCenter {
	if window <= 0 {
		window = 10 * time.Second
	}
	return &ToastCenter{
		sink:   sink,
		window: window,
		now:    time.Now,
		shown:  make(map[string]time.Time),
	}
}

// Show renders t unless its key is still on screen. It reports whether the
// toast was rendered.
func (c *ToastCenter) Show(t Toast) bool {
	now := c.now()
	c.mu.Lock()
	for k, at := range c.shown {
		if now.Sub(at) >= c.window {
			delete(c.shown, k)
		}
	}
	if _, dup := c.shown[t.Key]; dup && t.Key != "" {
		c.mu.Unlock()
		return false
	}
	if t.Key != "" {
		c.shown[t.Key] = now
	}
	c.mu.Unlock()

	if t.At.IsZero() {
		t.At = now
	}
	c.sink.Show(t)
	return true
}

func (c *ToastCenter) Success(msg string) {
	c.Show(Toast{Key: KindSuccess + "-" + msg, Kind: KindSuccess, Message: msg})
}

func (c *ToastCenter) Failure(msg string) {
	c.Show(Toast{Key: KindError + "-" + msg, Kind: KindError, Message: msg})
}

// WriterSink prints one line per toast.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Show(t Toast) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "[%s] %s\n", t.Kind, t.Message)
	if t.VideoCallURL != "" {
		fmt.Fprintf(s.w, "    Join video call: %s\n", t.VideoCallURL)
	}
}
