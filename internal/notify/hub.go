// Package notify fans real-time channel activity out to any number of
// observers and turns transfer events into toasts and video call offers.
package notify

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/eaglebank/webclient/shared/events"
)

// Observer is told about connectivity changes and transfer events.
// Callbacks run one at a time on the publishing goroutine. They may Detach
// and Acknowledge but must not publish to or subscribe on the same hub.
type Observer interface {
	Connectivity(connected bool)
	Transfer(ev events.Transfer)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnConnectivity func(connected bool)
	OnTransfer     func(ev events.Transfer)
}

func (o ObserverFuncs) Connectivity(connected bool) {
	if o.OnConnectivity != nil {
		o.OnConnectivity(connected)
	}
}

func (o ObserverFuncs) Transfer(ev events.Transfer) {
	if o.OnTransfer != nil {
		o.OnTransfer(ev)
	}
}

// Subscription is the handle returned by Hub.Subscribe.
type Subscription struct {
	hub  *Hub
	id   uint64
	once sync.Once
}

// Detach removes the observer. It is safe to call more than once and from
// inside an observer callback.
func (s *Subscription) Detach() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.observers, s.id)
		s.hub.mu.Unlock()
	})
}

// Hub implements channel.Sink. It keeps the connectivity flag and one
// most-recent-value slot per transfer direction; a new event overwrites an
// unacknowledged one.
type Hub struct {
	log *zap.SugaredLogger

	// publishMu is held while observers are called, so a Subscribe replay
	// and live notifications reach every observer in publication order.
	publishMu sync.Mutex

	mu        sync.Mutex
	observers map[uint64]Observer
	nextID    uint64
	connected bool
	slots     map[events.Direction]events.Transfer
}

func NewHub(log *zap.SugaredLogger) *Hub {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Hub{
		log:       log,
		observers: make(map[uint64]Observer),
		slots:     make(map[events.Direction]events.Transfer),
	}
}

// Subscribe registers o. The observer is immediately told the current
// connectivity and any events still waiting to be acknowledged.
func (h *Hub) Subscribe(o Observer) *Subscription {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.observers[id] = o
	connected := h.connected
	pending := h.pendingLocked()
	h.mu.Unlock()

	o.Connectivity(connected)
	for _, ev := range pending {
		o.Transfer(ev)
	}
	return &Subscription{hub: h, id: id}
}

// SetConnected records the connectivity state and tells observers when it
// changed.
func (h *Hub) SetConnected(connected bool) {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	h.mu.Lock()
	if h.connected == connected {
		h.mu.Unlock()
		return
	}
	h.connected = connected
	observers := h.observersLocked()
	h.mu.Unlock()

	h.log.Debugw("channel connectivity changed", "connected", connected)
	for _, o := range observers {
		o.Connectivity(connected)
	}
}

// Deliver stores ev in its direction's slot and publishes it.
func (h *Hub) Deliver(ev events.Transfer) {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	h.mu.Lock()
	h.slots[ev.Direction] = ev
	observers := h.observersLocked()
	h.mu.Unlock()

	for _, o := range observers {
		o.Transfer(ev)
	}
}

// Acknowledge clears the slot of ev's direction if it still holds ev. A newer
// event that replaced it stays pending.
func (h *Hub) Acknowledge(ev events.Transfer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	cur, ok := h.slots[ev.Direction]
	if !ok || !sameTransfer(cur, ev) {
		return false
	}
	delete(h.slots, ev.Direction)
	return true
}

// Pending returns the unacknowledged event of dir, if any.
func (h *Hub) Pending(dir events.Direction) (events.Transfer, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ev, ok := h.slots[dir]
	return ev, ok
}

func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

// Subscribers returns the number of attached observers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

func (h *Hub) observersLocked() []Observer {
	ids := make([]uint64, 0, len(h.observers))
	for id := range h.observers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Observer, 0, len(ids))
	for _, id := range ids {
		out = append(out, h.observers[id])
	}
	return out
}

func (h *Hub) pendingLocked() []events.Transfer {
	var out []events.Transfer
	for _, dir := range []events.Direction{events.Received, events.Sent} {
		if ev, ok := h.slots[dir]; ok {
			out = append(out, ev)
		}
	}
	return out
}

func sameTransfer(a, b events.Transfer) bool {
	return a.Direction == b.Direction &&
		a.Counterparty == b.Counterparty &&
		a.Amount.Equal(b.Amount) &&
		a.VideoCallURL == b.VideoCallURL &&
		a.Timestamp.Equal(b.Timestamp)
}
