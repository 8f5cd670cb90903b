package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Socket event names pushed by the notification server.
const (
	MoneyTransfer = "money-transfer"
	MoneySent     = "money-sent"
)

// NotificationStream carries per-user socket notifications between the REST
// side and the socket hub when they are split across processes.
const NotificationStream = "notification.events"

// Direction tells which side of a transfer the local user was on.
type Direction string

const (
	Received Direction = MoneyTransfer
	Sent     Direction = MoneySent
)

// Frame is one message on the real-time channel.
type Frame struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
}

type MoneyTransferEvent struct {
	From         string          `json:"from"`
	Amount       decimal.Decimal `json:"amount"`
	VideoCallURL string          `json:"videoCallUrl"`
}

type MoneySentEvent struct {
	To           string          `json:"to"`
	Amount       decimal.Decimal `json:"amount"`
	VideoCallURL string          `json:"videoCallUrl"`
}

// Transfer is a decoded money-transfer or money-sent event.
type Transfer struct {
	Direction    Direction
	Counterparty string
	Amount       decimal.Decimal
	VideoCallURL string
	Timestamp    time.Time
}

// Notification addresses a frame to every connection of one user.
type Notification struct {
	UserID string `json:"userId"`
	Frame  Frame  `json:"frame"`
}

func NewFrame(event string, payload any, at time.Time) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	ts := at.UTC()
	return Frame{Event: event, Data: data, Timestamp: &ts}, nil
}

// ErrUnknownEvent is returned by Decode for frames the client does not handle.
var ErrUnknownEvent = fmt.Errorf("unknown event")

// Decode turns a frame into a Transfer. receivedAt is used when the frame has
// no timestamp of its own.
func Decode(f Frame, receivedAt time.Time) (Transfer, error) {
	ts := receivedAt
	if f.Timestamp != nil {
		ts = *f.Timestamp
	}
	switch f.Event {
	case MoneyTransfer:
		var e MoneyTransferEvent
		if err := json.Unmarshal(f.Data, &e); err != nil {
			return Transfer{}, fmt.Errorf("failed to unmarshal %s event: %w", f.Event, err)
		}
		return Transfer{Direction: Received, Counterparty: e.From, Amount: e.Amount, VideoCallURL: e.VideoCallURL, Timestamp: ts}, nil
	case MoneySent:
		var e MoneySentEvent
		if err := json.Unmarshal(f.Data, &e); err != nil {
			return Transfer{}, fmt.Errorf("failed to unmarshal %s event: %w", f.Event, err)
		}
		return Transfer{Direction: Sent, Counterparty: e.To, Amount: e.Amount, VideoCallURL: e.VideoCallURL, Timestamp: ts}, nil
	default:
		return Transfer{}, fmt.Errorf("%w: %q", ErrUnknownEvent, f.Event)
	}
}
