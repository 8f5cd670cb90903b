package notify

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/eaglebank/webclient/shared/events"
)

// VideoWidget embeds a video call for a room. onClose must be called once
// the user leaves the call.
type VideoWidget interface {
	Open(room string, onClose func())
}

// RoomFromURL returns the last path segment of a video call URL, or "" when
// there is none.
func RoomFromURL(callURL string) string {
	if callURL == "" {
		return ""
	}
	parts := strings.Split(callURL, "/")
	return parts[len(parts)-1]
}

// Message is the toast text for ev, e.g. "Received $20.00 from Alice".
func Message(ev events.Transfer) string {
	amount := "$" + ev.Amount.StringFixed(2)
	if ev.Direction == events.Sent {
		return fmt.Sprintf("Sent %s to %s", amount, ev.Counterparty)
	}
	return fmt.Sprintf("Received %s from %s", amount, ev.Counterparty)
}

// Notifier is the built-in observer: it toasts each transfer, offers its
// video room and acknowledges the event.
type Notifier struct {
	hub    *Hub
	toasts *ToastCenter
	widget VideoWidget
	log    *zap.SugaredLogger

	mu         sync.Mutex
	activeRoom string
	sub        *Subscription
}

func NewNotifier(hub *Hub, toasts *ToastCenter, widget VideoWidget, log *zap.SugaredLogger) *Notifier {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Notifier{hub: hub, toasts: toasts, widget: widget, log: log}
}

// Start subscribes the notifier to the hub. Calling it again is a no-op.
func (n *Notifier) Start() {
	n.mu.Lock()
	started := n.sub != nil
	n.mu.Unlock()
	if started {
		return
	}
	sub := n.hub.Subscribe(n)
	n.mu.Lock()
	n.sub = sub
	n.mu.Unlock()
}

// Stop detaches from the hub.
func (n *Notifier) Stop() {
	n.mu.Lock()
	sub := n.sub
	n.sub = nil
	n.mu.Unlock()
	sub.Detach()
}

func (n *Notifier) Connectivity(connected bool) {
	n.log.Debugw("notifications connectivity", "connected", connected)
}

func (n *Notifier) Transfer(ev events.Transfer) {
	kind := KindSuccess
	if ev.Direction == events.Sent {
		kind = KindInfo
	}
	shown := n.toasts.Show(Toast{
		Key:          ToastKey(ev),
		Kind:         kind,
		Message:      Message(ev),
		VideoCallURL: ev.VideoCallURL,
		At:           ev.Timestamp,
	})
	if !shown {
		n.log.Debugw("duplicate transfer toast suppressed", "key", ToastKey(ev))
	}

	if room := RoomFromURL(ev.VideoCallURL); room != "" {
		n.offerRoom(room)
	}
	n.hub.Acknowledge(ev)
}

// ActiveRoom returns the room currently offered to the user.
func (n *Notifier) ActiveRoom() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.activeRoom
}

func (n *Notifier) offerRoom(room string) {
	n.mu.Lock()
	n.activeRoom = room
	n.mu.Unlock()

	if n.widget == nil {
		return
	}
	n.widget.Open(room, func() {
		n.mu.Lock()
		if n.activeRoom == room {
			n.activeRoom = ""
		}
		n.mu.Unlock()
	})
}

// LinkWidget is a VideoWidget for terminals: it prints the meeting link and
// treats the call as closed straight away.
type LinkWidget struct {
	Domain string
	Out    io.Writer
}

func (w LinkWidget) Open(room string, onClose func()) {
	if w.Out != nil {
		fmt.Fprintf(w.Out, "    Video room: https://%s/%s\n", w.Domain, room)
	}
	if onClose != nil {
		onClose()
	}
}
