package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	priceMin = decimal.NewFromFloat(0.01)
	priceMax = decimal.NewFromFloat(0.99)
)

// Bet rows are append-only and never mutated once inserted (spec §3).
type Bet struct {
	ID         uuid.UUID       `db:"id"          json:"id"`
	EventID    uuid.UUID       `db:"event_id"    json:"event_id"`
	UserID     uuid.UUID       `db:"user_id"     json:"user_id"`
	Outcome    string          `db:"outcome"     json:"outcome"`
	Shares     decimal.Decimal `db:"shares"      json:"shares"`
	Price      decimal.Decimal `db:"price"       json:"price"`
	AmountUSDC decimal.Decimal `db:"amount_usdc" json:"amount_usdc"`
	Timestamp  time.Time       `db:"timestamp"   json:"timestamp"`
}

// ValidateBet enforces the invariants of spec §3: shares > 0,
// 0.01 ≤ price ≤ 0.99, amount_usdc > 0.
func ValidateBet(shares, price, amount decimal.Decimal) error {
	if !shares.IsPositive() {
		return ErrInvalidShares
	}
	if price.LessThan(priceMin) || price.GreaterThan(priceMax) {
		return ErrInvalidPrice
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// PlaceBetRequest is the validated, signature-checked input to
// BettingService.PlaceBet.
type PlaceBetRequest struct {
	EventID    uuid.UUID
	UserWallet string
	Outcome    string
	Amount     decimal.Decimal
}

// PlaceBetResult is returned to the caller of place_bet (spec §4.D step 8).
type PlaceBetResult struct {
	BetID         uuid.UUID                  `json:"bet_id"`
	Shares        decimal.Decimal            `json:"shares"`
	FillPrice     decimal.Decimal            `json:"fill_price"`
	NewPrices     map[string]decimal.Decimal `json:"new_prices"`
	RunningVolume decimal.Decimal            `json:"running_volume"`
}
