package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/mitra-labs/predcore/internal/audit"
	"github.com/mitra-labs/predcore/internal/auth"
	"github.com/mitra-labs/predcore/internal/chain"
	"github.com/mitra-labs/predcore/internal/domain"
	"github.com/mitra-labs/predcore/internal/ledger"
	"github.com/mitra-labs/predcore/internal/repository"
)

// SettlementBroadcaster is the minimal interface SettlementService needs
// from the WS hub.
type SettlementBroadcaster interface {
	PublishEventSettled(eventID uuid.UUID, winner string)
}

// SettlementService implements spec §4.D's three settlement entry points
// and single execution path, grounded on the teacher's
// resolution_service.go (CAS-then-pool-computation-then-per-user-payout
// loop).
type SettlementService struct {
	db     *sqlx.DB
	verifier *auth.Verifier
	chain  chain.Client
	ledger *ledger.Store
	groups *repository.GroupRepository
	events *repository.EventRepository
	bets   *repository.BetRepository
	log    *slog.Logger
	bcast  SettlementBroadcaster
	audit  *audit.Logger

	// votesMu guards the in-memory consensus-vote map. Lost on restart —
	// acceptable per spec §5/§9: votes must be re-collected.
	votesMu sync.RWMutex
	votes   map[uuid.UUID][]domain.ConsensusVote
}

func NewSettlementService(
	db *sqlx.DB,
	verifier *auth.Verifier,
	chainClient chain.Client,
	ledgerStore *ledger.Store,
	groups *repository.GroupRepository,
	events *repository.EventRepository,
	bets *repository.BetRepository,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		db: db, verifier: verifier, chain: chainClient, ledger: ledgerStore,
		groups: groups, events: events, bets: bets, log: logger,
		votes: make(map[uuid.UUID][]domain.ConsensusVote),
	}
}

func (s *SettlementService) SetBroadcaster(b SettlementBroadcaster) { s.bcast = b }

// SetAuditLogger attaches the forensic audit trail (spec §4.I).
func (s *SettlementService) SetAuditLogger(l *audit.Logger) { s.audit = l }

// SettleManual requires the settler to be the group admin.
func (s *SettlementService) SettleManual(ctx context.Context, eventID uuid.UUID, winner, settlerWallet, sig string, ts int64) error {
	if err := s.verifier.Verify(auth.Request{Wallet: settlerWallet, Action: "settle_event", Timestamp: ts, Signature: sig}); err != nil {
		return err
	}
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	group, err := s.groups.GetByID(ctx, event.GroupID)
	if err != nil {
		return err
	}
	if group.AdminWallet != settlerWallet {
		return domain.NewUnauthorized(domain.ErrSettlerNotAdmin)
	}
	if !event.HasOutcome(winner) {
		return domain.NewBusinessLogic(domain.ErrUnknownOutcome)
	}
	return s.execute(ctx, event, winner, settlerWallet)
}

// SettleOracle derives the winner from an oracle payload; the oracle
// mechanism itself is out of scope (spec §4.D), so the caller supplies the
// already-derived winning outcome.
func (s *SettlementService) SettleOracle(ctx context.Context, eventID uuid.UUID, winner string) error {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if !event.HasOutcome(winner) {
		return domain.NewBusinessLogic(domain.ErrUnknownOutcome)
	}
	return s.execute(ctx, event, winner, "oracle")
}

// SubmitConsensusVote records one member's vote; when votes reach
// ceil(2*member_count/3), tallies by outcome (majority wins, ties broken
// by first-registered) and proceeds to settlement.
func (s *SettlementService) SubmitConsensusVote(ctx context.Context, eventID uuid.UUID, voterWallet, winner, sig string, ts int64) error {
	if err := s.verifier.Verify(auth.Request{Wallet: voterWallet, Action: "submit_consensus_vote", Timestamp: ts, Signature: sig}); err != nil {
		return err
	}
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if !event.HasOutcome(winner) {
		return domain.NewBusinessLogic(domain.ErrUnknownOutcome)
	}

	var voterID uuid.UUID
	if err := s.db.GetContext(ctx, &voterID, `SELECT id FROM users WHERE wallet_address = $1`, voterWallet); err != nil {
		return domain.NewBusinessLogic(domain.ErrVoterNotMember)
	}
	if _, err := s.groups.GetMember(ctx, event.GroupID, voterID); err != nil {
		return domain.NewBusinessLogic(domain.ErrVoterNotMember)
	}

	members, err := s.groups.ListMembers(ctx, event.GroupID)
	if err != nil {
		return err
	}

	s.votesMu.Lock()
	existing := s.votes[eventID]
	for _, v := range existing {
		if v.Voter == voterID {
			s.votesMu.Unlock()
			return domain.NewBusinessLogic(domain.ErrDuplicateVote)
		}
	}
	existing = append(existing, domain.ConsensusVote{EventID: eventID, Voter: voterID, Winner: winner})
	s.votes[eventID] = existing
	voteCount := len(existing)
	s.votesMu.Unlock()

	threshold := (2*len(members) + 2) / 3 // ceil(2*member_count/3)
	if voteCount < threshold {
		return nil
	}

	tallyWinner := tallyVotes(existing)
	return s.execute(ctx, event, tallyWinner, "consensus")
}

// tallyVotes returns the majority outcome, breaking ties by whichever
// outcome was voted for first.
func tallyVotes(votes []domain.ConsensusVote) string {
	counts := make(map[string]int)
	order := make([]string, 0, len(votes))
	for _, v := range votes {
		if _, seen := counts[v.Winner]; !seen {
			order = append(order, v.Winner)
		}
		counts[v.Winner]++
	}
	best := order[0]
	for _, o := range order[1:] {
		if counts[o] > counts[best] {
			best = o
		}
	}
	return best
}

// execute is the single execution path of spec §4.D: CAS status, compute
// pool, request on-chain settlement, insert Settlement, distribute payouts,
// broadcast.
func (s *SettlementService) execute(ctx context.Context, event *domain.Event, winner, settledBy string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.NewStorage(fmt.Errorf("settlement.execute begin: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// 1. CAS Active → Resolved.
	if err := s.events.SetStatus(ctx, tx, event.ID, domain.EventResolved, domain.EventActive); err != nil {
		return err
	}

	// 2. Load bets, compute pool and winning shares.
	bets, err := s.bets.ListByEvent(ctx, event.ID)
	if err != nil {
		return err
	}
	totalPool := decimal.Zero
	winningShares := decimal.Zero
	for _, b := range bets {
		totalPool = totalPool.Add(b.AmountUSDC)
		if b.Outcome == winner {
			winningShares = winningShares.Add(b.Shares)
		}
	}

	// 3. Request on-chain settlement; offline marker on failure, never
	// user-blocking.
	groupPubkey := ""
	if group, gerr := s.groups.GetByID(ctx, event.GroupID); gerr == nil {
		groupPubkey = group.OnChainPubkey
	}
	extRef, chainErr := s.chain.SettleEvent(ctx, event.OnChainPubkey, groupPubkey, winner)
	if chainErr != nil {
		extRef = "offline"
		if s.log != nil {
			s.log.Warn("on-chain settlement failed, recorded offline marker", "event_id", event.ID, "error", chainErr)
		}
	}

	// 4. Insert the Settlement row.
	settlement := &domain.Settlement{
		ID: uuid.New(), EventID: event.ID, WinningOutcome: winner,
		TotalPool: totalPool, TotalWinningShares: winningShares,
		SettledBy: settledBy, ExternalTxRef: extRef, SettledAt: time.Now().UTC(),
	}
	if err := s.ledger.CreateSettlement(ctx, tx, settlement); err != nil {
		return err
	}

	// 5. Group bets by user and settle win/loss.
	byUser := make(map[uuid.UUID][]*domain.Bet)
	for _, b := range bets {
		byUser[b.UserID] = append(byUser[b.UserID], b)
	}
	// Visit users in ascending user_id order so balance rows are locked in a
	// stable order across concurrent settlement passes.
	userIDs := make([]uuid.UUID, 0, len(byUser))
	for userID := range byUser {
		userIDs = append(userIDs, userID)
	}
	sort.Slice(userIDs, func(i, j int) bool { return bytes.Compare(userIDs[i][:], userIDs[j][:]) < 0 })
	for _, userID := range userIDs {
		userBets := byUser[userID]
		userWinningShares := decimal.Zero
		userWinningStake := decimal.Zero
		for _, b := range userBets {
			if b.Outcome == winner {
				userWinningShares = userWinningShares.Add(b.Shares)
				userWinningStake = userWinningStake.Add(b.AmountUSDC)
			}
		}

		if userWinningShares.IsPositive() {
			var payoutAmt decimal.Decimal
			if winningShares.IsZero() {
				// Defensive: should never trigger since a winning bet
				// guarantees positive winningShares; refund the stake.
				payoutAmt = userWinningStake
			} else {
				payoutAmt = userWinningShares.Div(winningShares).Mul(totalPool)
			}
			winnings := payoutAmt.Sub(userWinningStake)

			payout := &domain.Payout{
				ID: uuid.New(), SettlementID: settlement.ID, UserID: userID,
				Shares: userWinningShares, PayoutAmount: payoutAmt, Claimed: false,
				ExternalTxRef: extRef,
			}
			if err := s.ledger.CreatePayout(ctx, tx, payout); err != nil {
				if s.log != nil {
					s.log.Error("failed to record payout, continuing settlement", "event_id", event.ID, "user_id", userID, "error", err)
				}
				continue
			}
			if err := s.ledger.SettleWin(ctx, tx, userID, event.GroupID, userWinningStake, winnings, event.ID); err != nil {
				if s.log != nil {
					s.log.Error("failed to settle win, continuing settlement", "event_id", event.ID, "user_id", userID, "error", err)
				}
			}
		}

		for _, b := range userBets {
			if b.Outcome != winner {
				if err := s.ledger.SettleLoss(ctx, tx, userID, event.GroupID, b.AmountUSDC, event.ID); err != nil {
					if s.log != nil {
						s.log.Error("failed to settle loss, continuing settlement", "event_id", event.ID, "user_id", userID, "error", err)
					}
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.NewStorage(fmt.Errorf("settlement.execute commit: %w", err))
	}
	committed = true

	s.votesMu.Lock()
	delete(s.votes, event.ID)
	s.votesMu.Unlock()

	if s.audit != nil {
		s.audit.LogEventSettled(event.ID, winner, settledBy, extRef)
	}

	// 6. Fan out EventSettled.
	if s.bcast != nil {
		s.bcast.PublishEventSettled(event.ID, winner)
	}
	return nil
}

// ReconcileOfflineSettlements retries the on-chain leg of every settlement
// still carrying the "offline" marker left by execute() when
// chain.Client.SettleEvent failed at settlement time (spec §4.M step 1).
// Returns the number of settlements successfully re-driven.
func (s *SettlementService) ReconcileOfflineSettlements(ctx context.Context) (int, error) {
	settlements, err := s.ledger.ListOfflineSettlements(ctx)
	if err != nil {
		return 0, err
	}
	retried := 0
	for _, st := range settlements {
		event, err := s.events.GetByID(ctx, st.EventID)
		if err != nil {
			continue
		}
		groupPubkey := ""
		if group, gerr := s.groups.GetByID(ctx, event.GroupID); gerr == nil {
			groupPubkey = group.OnChainPubkey
		}
		txSig, chainErr := s.chain.SettleEvent(ctx, event.OnChainPubkey, groupPubkey, st.WinningOutcome)
		if chainErr != nil {
			continue
		}
		if err := s.ledger.UpdateSettlementTxRef(ctx, st.ID, txSig); err != nil {
			if s.log != nil {
				s.log.Error("reconciliation: failed to record retried settlement tx", "settlement_id", st.ID, "error", err)
			}
			continue
		}
		retried++
	}
	return retried, nil
}

// ReconcileUnpaidPayouts re-drives the per-user settle step (spec §4.D:
// "re-drives unsettled users from Settlement ∪ bets − Payout") for every
// winning bet that has no matching Payout row, across every settlement in
// the recent sweep window. Idempotent: a bet already paid is excluded by
// the underlying NOT EXISTS query, so a double run never double-credits.
func (s *SettlementService) ReconcileUnpaidPayouts(ctx context.Context) (int, error) {
	settlements, err := s.ledger.ListRecentSettlements(ctx)
	if err != nil {
		return 0, err
	}
	paid := 0
	for _, st := range settlements {
		event, err := s.events.GetByID(ctx, st.EventID)
		if err != nil {
			continue
		}
		unpaid, err := s.ledger.ListUnpaidWinningBets(ctx, st.ID, st.EventID, st.WinningOutcome)
		if err != nil || len(unpaid) == 0 {
			continue
		}

		byUser := make(map[uuid.UUID][]*domain.Bet)
		for _, b := range unpaid {
			byUser[b.UserID] = append(byUser[b.UserID], b)
		}
		for userID, userBets := range byUser {
			userWinningShares := decimal.Zero
			userWinningStake := decimal.Zero
			for _, b := range userBets {
				userWinningShares = userWinningShares.Add(b.Shares)
				userWinningStake = userWinningStake.Add(b.AmountUSDC)
			}
			if !userWinningShares.IsPositive() {
				continue
			}
			payoutAmt := userWinningShares.Div(st.TotalWinningShares).Mul(st.TotalPool)
			winnings := payoutAmt.Sub(userWinningStake)

			tx, err := s.db.BeginTxx(ctx, nil)
			if err != nil {
				continue
			}
			payout := &domain.Payout{
				ID: uuid.New(), SettlementID: st.ID, UserID: userID,
				Shares: userWinningShares, PayoutAmount: payoutAmt, Claimed: false,
				ExternalTxRef: st.ExternalTxRef,
			}
			if err := s.ledger.CreatePayout(ctx, tx, payout); err != nil {
				_ = tx.Rollback()
				continue
			}
			if err := s.ledger.SettleWin(ctx, tx, userID, event.GroupID, userWinningStake, winnings, event.ID); err != nil {
				_ = tx.Rollback()
				if s.log != nil {
					s.log.Error("reconciliation: failed to settle win, will retry next sweep", "event_id", event.ID, "user_id", userID, "error", err)
				}
				continue
			}
			if err := tx.Commit(); err != nil {
				continue
			}
			paid++
		}
	}
	return paid, nil
}
