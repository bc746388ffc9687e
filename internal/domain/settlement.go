package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Settlement is the one-time record of an event's resolution. At most one
// per event (unique event_id, spec §3).
type Settlement struct {
	ID                 uuid.UUID       `db:"id"                   json:"id"`
	EventID            uuid.UUID       `db:"event_id"             json:"event_id"`
	WinningOutcome     string          `db:"winning_outcome"      json:"winning_outcome"`
	TotalPool          decimal.Decimal `db:"total_pool"           json:"total_pool"`
	TotalWinningShares decimal.Decimal `db:"total_winning_shares" json:"total_winning_shares"`
	SettledBy          string          `db:"settled_by"           json:"settled_by"`
	ExternalTxRef       string         `db:"external_tx_ref"      json:"external_tx_ref,omitempty"`
	SettledAt          time.Time       `db:"settled_at"           json:"settled_at"`
}

// Payout is the pro-rata share of the total pool owed to a specific winner.
// Claim is a one-shot transition (spec §3).
type Payout struct {
	ID            uuid.UUID       `db:"id"              json:"id"`
	SettlementID  uuid.UUID       `db:"settlement_id"   json:"settlement_id"`
	UserID        uuid.UUID       `db:"user_id"         json:"user_id"`
	Shares        decimal.Decimal `db:"shares"          json:"shares"`
	PayoutAmount  decimal.Decimal `db:"payout_amount"   json:"payout_amount"`
	Claimed       bool            `db:"claimed"         json:"claimed"`
	ClaimedAt     *time.Time      `db:"claimed_at"      json:"claimed_at,omitempty"`
	ExternalTxRef string          `db:"external_tx_ref" json:"external_tx_ref,omitempty"`
}

// ConsensusVote is held in-memory only (spec §5: "lost on restart —
// acceptable, votes must be re-collected").
type ConsensusVote struct {
	EventID uuid.UUID
	Voter   uuid.UUID
	Winner  string
}
