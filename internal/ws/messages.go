// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs broadcast to connected clients.
package ws

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypePriceUpdate   MsgType = "price_update"
	MsgTypeBetExecuted   MsgType = "bet_executed"
	MsgTypeEventSettled  MsgType = "event_settled"
	MsgTypeError         MsgType = "error"
	MsgTypeSubscribe     MsgType = "subscribe"
	MsgTypeUnsubscribe   MsgType = "unsubscribe"
	MsgTypeSubscribeAck  MsgType = "subscribed"
)

// ──────────────────────────────────────────────────────────────────────────────
// PriceUpdateMessage — published on an event's price channel after every bet.
// ──────────────────────────────────────────────────────────────────────────────

// PriceUpdateMessage carries the renormalized price vector and running
// volume for one event.
type PriceUpdateMessage struct {
	Type      MsgType                    `json:"type"`
	EventID   uuid.UUID                  `json:"event_id"`
	Prices    map[string]decimal.Decimal `json:"prices"`
	Volume    decimal.Decimal            `json:"volume"`
	Timestamp time.Time                  `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// BetExecutedMessage — published after a bet is accepted so other
// participants in the event/group see the fill.
// ──────────────────────────────────────────────────────────────────────────────

// BetExecutedMessage notifies subscribers that a bet was filled.
type BetExecutedMessage struct {
	Type       MsgType         `json:"type"`
	EventID    uuid.UUID       `json:"event_id"`
	BetID      uuid.UUID       `json:"bet_id"`
	Outcome    string          `json:"outcome"`
	Shares     decimal.Decimal `json:"shares"`
	FillPrice  decimal.Decimal `json:"fill_price"`
	AmountUSDC decimal.Decimal `json:"amount_usdc"`
	Timestamp  time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// EventSettledMessage — published once when an event is settled.
// ──────────────────────────────────────────────────────────────────────────────

// EventSettledMessage tells subscribers which outcome won.
type EventSettledMessage struct {
	Type      MsgType   `json:"type"`
	EventID   uuid.UUID `json:"event_id"`
	Winner    string    `json:"winner"`
	Timestamp time.Time `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage — sent to a single client on a non-fatal error.
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}

// ──────────────────────────────────────────────────────────────────────────────
// subscriptionEnvelope — the inbound {type, channel} frame from spec §6's
// streaming-channel contract.
// ──────────────────────────────────────────────────────────────────────────────

type subscriptionEnvelope struct {
	Type    MsgType `json:"type"`
	Channel string  `json:"channel"`
}

// subscribedAck confirms a successful subscribe to the caller; unsubscribe
// frames are not acknowledged.
type subscribedAck struct {
	Type    MsgType `json:"type"`
	Channel string  `json:"channel"`
}

// EventChannel, GroupChannel, and UserChannel build the three channel-name
// forms spec §4.F defines: event:{id}, group:{id}, user:{wallet}.
func EventChannel(eventID uuid.UUID) string { return "event:" + eventID.String() }
func GroupChannel(groupID uuid.UUID) string { return "group:" + groupID.String() }
func UserChannel(wallet string) string      { return "user:" + wallet }
