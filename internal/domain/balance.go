package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserGroupBalance is the per-(user,group) treasury row. Invariant:
// locked_usdc ≤ balance_usdc at every committed state (spec §3).
type UserGroupBalance struct {
	UserID      uuid.UUID       `db:"user_id"      json:"user_id"`
	GroupID     uuid.UUID       `db:"group_id"     json:"group_id"`
	BalanceUSDC decimal.Decimal `db:"balance_usdc" json:"balance_usdc"`
	LockedUSDC  decimal.Decimal `db:"locked_usdc"  json:"locked_usdc"`
	UpdatedAt   time.Time       `db:"updated_at"   json:"updated_at"`
}

// Available is balance minus locked — the amount a user may newly commit to
// bets or withdrawal (glossary: "Available balance").
func (b *UserGroupBalance) Available() decimal.Decimal {
	return b.BalanceUSDC.Sub(b.LockedUSDC)
}
