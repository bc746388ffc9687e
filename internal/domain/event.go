package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SettlementType is the closed set of ways an Event may be resolved.
// ParseSettlementType normalizes casing and rejects unknown values; it is
// called by EventService.CreateEvent, and the HTTP handler passes the raw
// string through (spec §9 open question, resolved).
type SettlementType string

const (
	SettlementManual    SettlementType = "manual"
	SettlementOracle    SettlementType = "oracle"
	SettlementConsensus SettlementType = "consensus"
)

func ParseSettlementType(s string) (SettlementType, error) {
	lowered := strings.ToLower(s)
	switch SettlementType(lowered) {
	case SettlementManual, SettlementOracle, SettlementConsensus:
		return SettlementType(lowered), nil
	default:
		return "", ErrUnknownSettleType
	}
}

// EventStatus transitions Active → {Resolved, Cancelled}; terminal states
// are final (spec §3).
type EventStatus string

const (
	EventActive    EventStatus = "active"
	EventResolved  EventStatus = "resolved"
	EventCancelled EventStatus = "cancelled"
)

const (
	MinOutcomes    = 2
	MaxOutcomes    = 10
	MaxOutcomeLen  = 50
	MaxGroupNameLn = 50
)

// Event's outcomes are immutable once created; bets may be placed only
// while Active.
type Event struct {
	ID             uuid.UUID      `db:"id"               json:"id"`
	GroupID        uuid.UUID      `db:"group_id"         json:"group_id"`
	OnChainPubkey  string         `db:"on_chain_pubkey"  json:"on_chain_pubkey,omitempty"`
	Title          string         `db:"title"            json:"title"`
	Description    string         `db:"description"      json:"description,omitempty"`
	Outcomes       []string       `db:"-"                json:"outcomes"`
	OutcomesRaw    string         `db:"outcomes"          json:"-"` // pipe-joined storage form
	SettlementType SettlementType `db:"settlement_type"  json:"settlement_type"`
	ArbiterWallet  string         `db:"arbiter_wallet"   json:"arbiter_wallet,omitempty"`
	Status         EventStatus    `db:"status"           json:"status"`
	ResolveBy      *time.Time     `db:"resolve_by"       json:"resolve_by,omitempty"`
	CreatedAt      time.Time      `db:"created_at"       json:"created_at"`
}

// HasOutcome reports whether outcome is one of the event's defined outcomes.
func (e *Event) HasOutcome(outcome string) bool {
	for _, o := range e.Outcomes {
		if o == outcome {
			return true
		}
	}
	return false
}

func ValidateOutcomes(outcomes []string) error {
	if len(outcomes) < MinOutcomes {
		return ErrTooFewOutcomes
	}
	if len(outcomes) > MaxOutcomes {
		return ErrTooManyOutcomes
	}
	for _, o := range outcomes {
		if len(o) == 0 || len(o) > MaxOutcomeLen {
			return ErrOutcomeTooLong
		}
	}
	return nil
}
