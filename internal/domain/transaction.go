package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxType is the closed set of ledger transaction kinds. Each balance-
// changing operation writes exactly one Transaction row (spec §3).
type TxType string

const (
	TxDeposit    TxType = "deposit"
	TxWithdrawal TxType = "withdrawal"
	TxBetPlaced  TxType = "bet_placed"
	TxBetWon     TxType = "bet_won"
	TxBetLost    TxType = "bet_lost"
	TxRefund     TxType = "refund"
)

// TxStatus tracks external settlement state for Deposit/Withdrawal rows
// that round-trip through the on-chain interface.
type TxStatus string

const (
	TxStatusOK      TxStatus = "ok"
	TxStatusOffline TxStatus = "offline" // synthetic marker, spec §4.D step 3
	TxStatusPending TxStatus = "pending"
)

// Transaction is an immutable audit row written by the Ledger Store.
type Transaction struct {
	ID             uuid.UUID       `db:"id"               json:"id"`
	UserID         uuid.UUID       `db:"user_id"          json:"user_id"`
	GroupID        *uuid.UUID      `db:"group_id"         json:"group_id,omitempty"`
	EventID        *uuid.UUID      `db:"event_id"         json:"event_id,omitempty"`
	Type           TxType          `db:"type"             json:"type"`
	Amount         decimal.Decimal `db:"amount"           json:"amount"`
	BalanceBefore  decimal.Decimal `db:"balance_before"   json:"balance_before"`
	BalanceAfter   decimal.Decimal `db:"balance_after"    json:"balance_after"`
	ExternalTxRef  string          `db:"external_tx_ref"  json:"external_tx_ref,omitempty"`
	Status         TxStatus        `db:"status"           json:"status"`
	Description    string          `db:"description"      json:"description,omitempty"`
	CreatedAt      time.Time       `db:"created_at"       json:"created_at"`
}
