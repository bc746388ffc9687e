// Package ledger implements the balance-affecting operations of spec §4.C:
// atomic per-(user,group) balance mutation with a row-level locking
// discipline, modeled directly on the teacher's wallet repository
// (SELECT ... FOR UPDATE, then check, then mutate, then append a
// Transaction row, all inside the caller's transaction).
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/mitra-labs/predcore/internal/domain"
)

// Store wraps a *sqlx.DB and exposes the Ledger Store operations of spec
// §4.C. Every operation that read-modifies-writes a balance takes an
// existing *sqlx.Tx so the caller controls the transaction boundary and can
// compose multiple ledger ops atomically (e.g. BettingService.PlaceBet
// locking a balance and inserting a bet in the same transaction).
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Begin starts a new transaction for the caller to compose ledger
// operations with non-ledger writes (bet/event rows, etc).
func (s *Store) Begin(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("ledger.Begin: %w", err))
	}
	return tx, nil
}

// GetOrCreateBalance fetches the (user,group) balance row, creating a
// zero-balance row if none exists yet.
func (s *Store) GetOrCreateBalance(ctx context.Context, tx *sqlx.Tx, userID, groupID uuid.UUID) (*domain.UserGroupBalance, error) {
	var b domain.UserGroupBalance
	err := tx.GetContext(ctx, &b,
		`SELECT * FROM user_group_balances WHERE user_id = $1 AND group_id = $2 FOR UPDATE`,
		userID, groupID)
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewStorage(fmt.Errorf("ledger.GetOrCreateBalance select: %w", err))
	}

	now := time.Now().UTC()
	b = domain.UserGroupBalance{
		UserID:      userID,
		GroupID:     groupID,
		BalanceUSDC: decimal.Zero,
		LockedUSDC:  decimal.Zero,
		UpdatedAt:   now,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_group_balances (user_id, group_id, balance_usdc, locked_usdc, updated_at)
		VALUES ($1, $2, 0, 0, $3)
		ON CONFLICT (user_id, group_id) DO NOTHING`,
		userID, groupID, now)
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("ledger.GetOrCreateBalance insert: %w", err))
	}

	// Re-select under lock in case of a concurrent insert race.
	if err = tx.GetContext(ctx, &b,
		`SELECT * FROM user_group_balances WHERE user_id = $1 AND group_id = $2 FOR UPDATE`,
		userID, groupID); err != nil {
		return nil, domain.NewStorage(fmt.Errorf("ledger.GetOrCreateBalance reselect: %w", err))
	}
	return &b, nil
}

// lockBalance acquires the row lock without creating the row (used by
// operations that require an existing balance).
func (s *Store) lockBalance(ctx context.Context, tx *sqlx.Tx, userID, groupID uuid.UUID) (*domain.UserGroupBalance, error) {
	var b domain.UserGroupBalance
	err := tx.GetContext(ctx, &b,
		`SELECT * FROM user_group_balances WHERE user_id = $1 AND group_id = $2 FOR UPDATE`,
		userID, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound(domain.ErrBalanceNotFound)
	}
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("ledger.lockBalance: %w", err))
	}
	return &b, nil
}

func (s *Store) logTx(ctx context.Context, tx *sqlx.Tx, t *domain.Transaction) error {
	query := `
		INSERT INTO transactions
			(id, user_id, group_id, event_id, type, amount, balance_before, balance_after,
			 external_tx_ref, status, description, created_at)
		VALUES
			(:id, :user_id, :group_id, :event_id, :type, :amount, :balance_before, :balance_after,
			 :external_tx_ref, :status, :description, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, t); err != nil {
		return domain.NewStorage(fmt.Errorf("ledger.logTx: %w", err))
	}
	return nil
}

func (s *Store) updateBalance(ctx context.Context, tx *sqlx.Tx, userID, groupID uuid.UUID, balance, locked decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE user_group_balances
		SET balance_usdc = $1, locked_usdc = $2, updated_at = now()
		WHERE user_id = $3 AND group_id = $4`,
		balance, locked, userID, groupID)
	if err != nil {
		return domain.NewStorage(fmt.Errorf("ledger.updateBalance: %w", err))
	}
	return nil
}

// Credit adds amt to the balance unconditionally and appends a Transaction.
func (s *Store) Credit(ctx context.Context, tx *sqlx.Tx, userID, groupID uuid.UUID, amt decimal.Decimal, txType domain.TxType, eventID *uuid.UUID, desc string) error {
	b, err := s.GetOrCreateBalance(ctx, tx, userID, groupID)
	if err != nil {
		return err
	}
	before := b.BalanceUSDC
	after := before.Add(amt)
	if err = s.updateBalance(ctx, tx, userID, groupID, after, b.LockedUSDC); err != nil {
		return err
	}
	return s.logTx(ctx, tx, &domain.Transaction{
		ID: uuid.New(), UserID: userID, GroupID: &groupID, EventID: eventID,
		Type: txType, Amount: amt, BalanceBefore: before, BalanceAfter: after,
		Status: domain.TxStatusOK, Description: desc, CreatedAt: time.Now().UTC(),
	})
}

// Debit subtracts amt from the balance, requiring available >= amt.
func (s *Store) Debit(ctx context.Context, tx *sqlx.Tx, userID, groupID uuid.UUID, amt decimal.Decimal, txType domain.TxType, eventID *uuid.UUID, desc string) error {
	b, err := s.lockBalance(ctx, tx, userID, groupID)
	if err != nil {
		return err
	}
	if b.Available().LessThan(amt) {
		return domain.NewBusinessLogic(domain.ErrInsufficientFunds)
	}
	before := b.BalanceUSDC
	after := before.Sub(amt)
	if err = s.updateBalance(ctx, tx, userID, groupID, after, b.LockedUSDC); err != nil {
		return err
	}
	return s.logTx(ctx, tx, &domain.Transaction{
		ID: uuid.New(), UserID: userID, GroupID: &groupID, EventID: eventID,
		Type: txType, Amount: amt.Neg(), BalanceBefore: before, BalanceAfter: after,
		Status: domain.TxStatusOK, Description: desc, CreatedAt: time.Now().UTC(),
	})
}

// LockForBet reserves amt from available balance into locked, requiring
// available >= amt. Appends a BetPlaced transaction with before == after
// (locking does not change the total balance).
func (s *Store) LockForBet(ctx context.Context, tx *sqlx.Tx, userID, groupID uuid.UUID, amt decimal.Decimal, eventID uuid.UUID) error {
	b, err := s.lockBalance(ctx, tx, userID, groupID)
	if err != nil {
		return err
	}
	if b.Available().LessThan(amt) {
		return domain.NewBusinessLogic(domain.ErrInsufficientFunds)
	}
	newLocked := b.LockedUSDC.Add(amt)
	if err = s.updateBalance(ctx, tx, userID, groupID, b.BalanceUSDC, newLocked); err != nil {
		return err
	}
	return s.logTx(ctx, tx, &domain.Transaction{
		ID: uuid.New(), UserID: userID, GroupID: &groupID, EventID: &eventID,
		Type: domain.TxBetPlaced, Amount: amt, BalanceBefore: b.BalanceUSDC, BalanceAfter: b.BalanceUSDC,
		Status: domain.TxStatusOK, Description: "bet locked", CreatedAt: time.Now().UTC(),
	})
}

// SettleLoss debits amt from balance and releases amt from locked (floored
// at zero), appending a BetLost transaction.
func (s *Store) SettleLoss(ctx context.Context, tx *sqlx.Tx, userID, groupID uuid.UUID, amt decimal.Decimal, eventID uuid.UUID) error {
	b, err := s.GetOrCreateBalance(ctx, tx, userID, groupID)
	if err != nil {
		return err
	}
	before := b.BalanceUSDC
	after := before.Sub(amt)
	newLocked := b.LockedUSDC.Sub(amt)
	if newLocked.IsNegative() {
		newLocked = decimal.Zero
	}
	if err = s.updateBalance(ctx, tx, userID, groupID, after, newLocked); err != nil {
		return err
	}
	return s.logTx(ctx, tx, &domain.Transaction{
		ID: uuid.New(), UserID: userID, GroupID: &groupID, EventID: &eventID,
		Type: domain.TxBetLost, Amount: amt.Neg(), BalanceBefore: before, BalanceAfter: after,
		Status: domain.TxStatusOK, Description: "bet lost", CreatedAt: time.Now().UTC(),
	})
}

// SettleWin credits winnings to balance and releases orig from locked
// (floored at zero), appending a BetWon transaction.
func (s *Store) SettleWin(ctx context.Context, tx *sqlx.Tx, userID, groupID uuid.UUID, orig, winnings decimal.Decimal, eventID uuid.UUID) error {
	b, err := s.GetOrCreateBalance(ctx, tx, userID, groupID)
	if err != nil {
		return err
	}
	before := b.BalanceUSDC
	after := before.Add(winnings)
	newLocked := b.LockedUSDC.Sub(orig)
	if newLocked.IsNegative() {
		newLocked = decimal.Zero
	}
	if err = s.updateBalance(ctx, tx, userID, groupID, after, newLocked); err != nil {
		return err
	}
	return s.logTx(ctx, tx, &domain.Transaction{
		ID: uuid.New(), UserID: userID, GroupID: &groupID, EventID: &eventID,
		Type: domain.TxBetWon, Amount: winnings, BalanceBefore: before, BalanceAfter: after,
		Status: domain.TxStatusOK, Description: "bet won", CreatedAt: time.Now().UTC(),
	})
}

// CreateSettlement inserts a Settlement row. A unique-violation (a prior
// settlement for this event) is translated to AlreadySettled.
func (s *Store) CreateSettlement(ctx context.Context, tx *sqlx.Tx, st *domain.Settlement) error {
	query := `
		INSERT INTO settlements
			(id, event_id, winning_outcome, total_pool, total_winning_shares, settled_by, external_tx_ref, settled_at)
		VALUES
			(:id, :event_id, :winning_outcome, :total_pool, :total_winning_shares, :settled_by, :external_tx_ref, :settled_at)`
	if _, err := tx.NamedExecContext(ctx, query, st); err != nil {
		if isUniqueViolation(err) {
			return domain.NewBusinessLogic(domain.ErrAlreadySettled)
		}
		return domain.NewStorage(fmt.Errorf("ledger.CreateSettlement: %w", err))
	}
	return nil
}

// CreatePayout inserts a Payout row within the caller's transaction.
func (s *Store) CreatePayout(ctx context.Context, tx *sqlx.Tx, p *domain.Payout) error {
	query := `
		INSERT INTO payouts (id, settlement_id, user_id, shares, payout_amount, claimed, claimed_at, external_tx_ref)
		VALUES (:id, :settlement_id, :user_id, :shares, :payout_amount, :claimed, :claimed_at, :external_tx_ref)`
	if _, err := tx.NamedExecContext(ctx, query, p); err != nil {
		return domain.NewStorage(fmt.Errorf("ledger.CreatePayout: %w", err))
	}
	return nil
}

// MarkPayoutClaimed flips the claim bit exactly once (WHERE-guarded, so a
// second call affects zero rows instead of double-claiming).
func (s *Store) MarkPayoutClaimed(ctx context.Context, payoutID uuid.UUID, externalTxRef string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE payouts SET claimed = true, claimed_at = $1, external_tx_ref = $2
		WHERE id = $3 AND claimed = false`,
		now, externalTxRef, payoutID)
	if err != nil {
		return domain.NewStorage(fmt.Errorf("ledger.MarkPayoutClaimed: %w", err))
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.NewBusinessLogic(domain.ErrAlreadyClaimed)
	}
	return nil
}

// GetBalance reads the current balance without locking (read-only path,
// e.g. GetUserBalance RPC).
func (s *Store) GetBalance(ctx context.Context, userID, groupID uuid.UUID) (*domain.UserGroupBalance, error) {
	var b domain.UserGroupBalance
	err := s.db.GetContext(ctx, &b,
		`SELECT * FROM user_group_balances WHERE user_id = $1 AND group_id = $2`, userID, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.UserGroupBalance{UserID: userID, GroupID: groupID}, nil
	}
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("ledger.GetBalance: %w", err))
	}
	return &b, nil
}

// ListOfflineSettlements returns settlements whose on-chain leg was marked
// "offline" because chain.Client.SettleEvent failed at settlement time
// (spec §4.M step 1) — candidates for the reconciliation job to retry.
func (s *Store) ListOfflineSettlements(ctx context.Context) ([]*domain.Settlement, error) {
	var out []*domain.Settlement
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM settlements WHERE external_tx_ref = 'offline'`)
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("ledger.ListOfflineSettlements: %w", err))
	}
	return out, nil
}

// UpdateSettlementTxRef records a retried on-chain tx reference, replacing
// the "offline" marker once chain.Client.SettleEvent succeeds.
func (s *Store) UpdateSettlementTxRef(ctx context.Context, settlementID uuid.UUID, txRef string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE settlements SET external_tx_ref = $1 WHERE id = $2`, txRef, settlementID)
	if err != nil {
		return domain.NewStorage(fmt.Errorf("ledger.UpdateSettlementTxRef: %w", err))
	}
	return nil
}

// ListRecentSettlements returns settlements from the last 7 days, the
// reconciliation job's sweep window for re-driving missed payouts — older
// settlements are assumed already fully paid out.
func (s *Store) ListRecentSettlements(ctx context.Context) ([]*domain.Settlement, error) {
	var out []*domain.Settlement
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM settlements WHERE settled_at > now() - interval '7 days'`)
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("ledger.ListRecentSettlements: %w", err))
	}
	return out, nil
}

// ListUnpaidWinningBets returns, for a settlement, the winning bets that
// have no corresponding Payout row yet (spec §4.D: "a reconciliation pass
// re-drives unsettled users from Settlement ∪ bets − Payout").
func (s *Store) ListUnpaidWinningBets(ctx context.Context, settlementID, eventID uuid.UUID, winningOutcome string) ([]*domain.Bet, error) {
	var out []*domain.Bet
	err := s.db.SelectContext(ctx, &out, `
		SELECT b.* FROM bets b
		WHERE b.event_id = $1 AND b.outcome = $2
		  AND NOT EXISTS (
		      SELECT 1 FROM payouts p
		      WHERE p.settlement_id = $3 AND p.user_id = b.user_id
		  )`, eventID, winningOutcome, settlementID)
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("ledger.ListUnpaidWinningBets: %w", err))
	}
	return out, nil
}

// isUniqueViolation inspects the Postgres error code precisely via
// pq.Error rather than the teacher's substring match, per spec §6's
// explicit naming of SQL codes 23505/23503/23514.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// IsConstraintViolation reports whether err is a foreign-key or check
// constraint failure (23503/23514), translated upward to BusinessLogic per
// spec §7.
func IsConstraintViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503" || pqErr.Code == "23514"
	}
	return false
}
