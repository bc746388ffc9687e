package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/mitra-labs/predcore/internal/audit"
	"github.com/mitra-labs/predcore/internal/auth"
	"github.com/mitra-labs/predcore/internal/domain"
	"github.com/mitra-labs/predcore/internal/lmsr"
	"github.com/mitra-labs/predcore/internal/repository"
)

// EventPrices is the return shape of get_event_prices (spec §4.D).
type EventPrices struct {
	EventID uuid.UUID                  `json:"event_id"`
	Prices  map[string]decimal.Decimal `json:"prices"`
	Volume  decimal.Decimal            `json:"volume"`
}

// EventService implements spec §4.D's create_event / get_event_prices /
// get_group_events / delete_event. settle_event delegates to
// SettlementService, injected post-construction like the teacher's
// Rebalancer/Broadcaster pattern to avoid an import cycle.
type EventService struct {
	db         *sqlx.DB
	verifier   *auth.Verifier
	groups     *repository.GroupRepository
	events     *repository.EventRepository
	bets       *repository.BetRepository
	settlement SettlementDispatcher
	liquidity  decimal.Decimal
	audit      *audit.Logger
}

// SettlementDispatcher is the minimal interface EventService needs from
// SettlementService.
type SettlementDispatcher interface {
	SettleManual(ctx context.Context, eventID uuid.UUID, winner, settlerWallet, sig string, ts int64) error
}

func NewEventService(db *sqlx.DB, verifier *auth.Verifier, groups *repository.GroupRepository, events *repository.EventRepository, bets *repository.BetRepository) *EventService {
	return &EventService{
		db: db, verifier: verifier, groups: groups, events: events, bets: bets,
		liquidity: decimal.NewFromInt(100),
	}
}

func (s *EventService) SetSettlementDispatcher(d SettlementDispatcher) { s.settlement = d }

// SetLiquidity overrides the LMSR liquidity parameter b (default 100),
// wired from config.LMSRConfig at boot.
func (s *EventService) SetLiquidity(b decimal.Decimal) { s.liquidity = b }

// SetAuditLogger attaches the forensic audit trail (spec §4.I).
func (s *EventService) SetAuditLogger(l *audit.Logger) { s.audit = l }

// CreateEvent verifies sig, requires the creator to be a member, validates
// the outcome set, and persists the event with a locally minted
// "pending-<uuid>" on-chain pubkey placeholder. Nothing in this tree later
// replaces it; the Merkle committer publishes roots under that value.
func (s *EventService) CreateEvent(ctx context.Context, groupID uuid.UUID, title, desc string, outcomes []string, settlementType, creatorWallet, arbiterWallet string, resolveBy *time.Time, sig string, ts int64) (*domain.Event, error) {
	if err := s.verifier.Verify(auth.Request{Wallet: creatorWallet, Action: "create_event", Timestamp: ts, Signature: sig}); err != nil {
		return nil, err
	}
	if err := domain.ValidateOutcomes(outcomes); err != nil {
		return nil, domain.NewValidation(err)
	}
	st, err := domain.ParseSettlementType(settlementType)
	if err != nil {
		return nil, domain.NewValidation(err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("event.CreateEvent begin: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := s.lookupMember(ctx, groupID, creatorWallet); err != nil {
		return nil, err
	}

	event := &domain.Event{
		ID: uuid.New(), GroupID: groupID, OnChainPubkey: fmt.Sprintf("pending-%s", uuid.New().String()),
		Title: title, Description: desc, Outcomes: outcomes, SettlementType: st,
		ArbiterWallet: arbiterWallet, Status: domain.EventActive, ResolveBy: resolveBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.NewStorage(fmt.Errorf("event.CreateEvent commit: %w", err))
	}
	committed = true
	if s.audit != nil {
		s.audit.LogEventCreated(event.ID, groupID, creatorWallet, title, string(st), outcomes)
	}
	return event, nil
}

// lookupMember resolves wallet to a user id and confirms membership — a
// read-only gate for calls that mutate state elsewhere but don't need the
// user row itself.
func (s *EventService) lookupMember(ctx context.Context, groupID uuid.UUID, wallet string) (*domain.GroupMember, error) {
	var userID uuid.UUID
	if err := s.db.GetContext(ctx, &userID, `SELECT id FROM users WHERE wallet_address = $1`, wallet); err != nil {
		return nil, domain.NewBusinessLogic(domain.ErrNotMember)
	}
	return s.groups.GetMember(ctx, groupID, userID)
}

// GetEventPrices rebuilds AMM state from bets and returns current prices
// plus cumulative volume, per spec §4.D.
func (s *EventService) GetEventPrices(ctx context.Context, eventID uuid.UUID) (*EventPrices, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	bets, err := s.bets.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	q := make(map[string]decimal.Decimal, len(event.Outcomes))
	for _, o := range event.Outcomes {
		q[o] = decimal.Zero
	}
	volume := decimal.Zero
	for _, b := range bets {
		q[b.Outcome] = q[b.Outcome].Add(b.Shares)
		volume = volume.Add(b.AmountUSDC)
	}

	engine := lmsr.New(s.liquidity, event.Outcomes)
	return &EventPrices{EventID: eventID, Prices: engine.Prices(q), Volume: volume}, nil
}

// GetGroupEvents lists a group's events, newest first.
func (s *EventService) GetGroupEvents(ctx context.Context, groupID uuid.UUID) ([]*domain.Event, error) {
	return s.events.ListByGroup(ctx, groupID)
}

// SettleEvent delegates to SettlementService (spec §4.D).
func (s *EventService) SettleEvent(ctx context.Context, eventID uuid.UUID, winningOutcome, settlerWallet, sig string, ts int64) error {
	if s.settlement == nil {
		return domain.NewInternal(fmt.Errorf("event.SettleEvent: no settlement dispatcher configured"))
	}
	return s.settlement.SettleManual(ctx, eventID, winningOutcome, settlerWallet, sig, ts)
}

// DeleteEvent is admin-only.
func (s *EventService) DeleteEvent(ctx context.Context, eventID uuid.UUID, deleterWallet, sig string, ts int64) error {
	if err := s.verifier.Verify(auth.Request{Wallet: deleterWallet, Action: "delete_event", Timestamp: ts, Signature: sig}); err != nil {
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
	if group.AdminWallet != deleterWallet {
		return domain.NewUnauthorized(domain.ErrNotAdmin)
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, eventID)
	if err != nil {
		return domain.NewStorage(fmt.Errorf("event.DeleteEvent: %w", err))
	}
	return nil
}
