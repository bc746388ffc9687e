package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mitra-labs/predcore/internal/domain"
)

// BetRepository handles Bet rows — the immutable record of each fill
// produced by the LMSR engine. Balance effects are handled separately by
// internal/ledger; this repository only persists the trade itself, per
// spec §3's Bet/Transaction split.
type BetRepository struct {
	db *sqlx.DB
}

func NewBetRepository(db *sqlx.DB) *BetRepository {
	return &BetRepository{db: db}
}

// Create inserts a bet row inside the caller's transaction.
func (r *BetRepository) Create(ctx context.Context, tx *sqlx.Tx, b *domain.Bet) error {
	query := `
		INSERT INTO bets (id, event_id, user_id, outcome, shares, price, amount_usdc, timestamp)
		VALUES (:id, :event_id, :user_id, :outcome, :shares, :price, :amount_usdc, :timestamp)`
	if _, err := tx.NamedExecContext(ctx, query, b); err != nil {
		return domain.NewStorage(fmt.Errorf("bet_repo.Create: %w", err))
	}
	return nil
}

// ListByEvent returns every bet placed on an event, oldest first — used by
// SettlementService to compute each winner's pro-rata share.
func (r *BetRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.Bet, error) {
	var bets []*domain.Bet
	err := r.db.SelectContext(ctx, &bets,
		`SELECT * FROM bets WHERE event_id = $1 ORDER BY "timestamp" ASC`, eventID)
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("bet_repo.ListByEvent: %w", err))
	}
	return bets, nil
}

// ListByEventAndOutcome returns bets on a single outcome of an event — used
// to compute total_winning_shares for the winning outcome at settlement.
func (r *BetRepository) ListByEventAndOutcome(ctx context.Context, eventID uuid.UUID, outcome string) ([]*domain.Bet, error) {
	var bets []*domain.Bet
	err := r.db.SelectContext(ctx, &bets,
		`SELECT * FROM bets WHERE event_id = $1 AND outcome = $2 ORDER BY "timestamp" ASC`,
		eventID, outcome)
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("bet_repo.ListByEventAndOutcome: %w", err))
	}
	return bets, nil
}

// ListByUser returns a user's bet history across all events, paginated.
func (r *BetRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Bet, error) {
	var bets []*domain.Bet
	err := r.db.SelectContext(ctx, &bets,
		`SELECT * FROM bets WHERE user_id = $1 ORDER BY "timestamp" DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("bet_repo.ListByUser: %w", err))
	}
	return bets, nil
}
