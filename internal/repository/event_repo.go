package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/mitra-labs/predcore/internal/domain"
)

const outcomeSep = "|"

// EventRepository handles Event rows and their associated LMSR share
// vectors. The share vector q (shares outstanding per outcome) is stored as
// one JSON document per event in the companion event_shares table rather
// than one row per outcome, since the outcome set is a closed, event-scoped
// list of at most 10 entries — a pattern
// learned from the teacher's single-row pool columns (pool_yes/pool_no)
// in market_repo.go, generalized here to an arbitrary-width map.
type EventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

func joinOutcomes(o []string) string  { return strings.Join(o, outcomeSep) }
func splitOutcomes(s string) []string { return strings.Split(s, outcomeSep) }

// Create inserts a new event row, validating and flattening the outcomes
// slice into its pipe-joined storage form.
func (r *EventRepository) Create(ctx context.Context, tx *sqlx.Tx, e *domain.Event) error {
	if err := domain.ValidateOutcomes(e.Outcomes); err != nil {
		return domain.NewValidation(err)
	}
	e.OutcomesRaw = joinOutcomes(e.Outcomes)

	query := `
		INSERT INTO events
			(id, group_id, on_chain_pubkey, title, description, outcomes,
			 settlement_type, arbiter_wallet, status, resolve_by, created_at)
		VALUES
			(:id, :group_id, :on_chain_pubkey, :title, :description, :outcomes,
			 :settlement_type, :arbiter_wallet, :status, :resolve_by, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, e); err != nil {
		return domain.NewStorage(fmt.Errorf("event_repo.Create: %w", err))
	}

	zeroShares := make(map[string]decimal.Decimal, len(e.Outcomes))
	for _, o := range e.Outcomes {
		zeroShares[o] = decimal.Zero
	}
	raw, err := json.Marshal(zeroShares)
	if err != nil {
		return domain.NewInternal(fmt.Errorf("event_repo.Create marshal shares: %w", err))
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO event_shares (event_id, shares_json) VALUES ($1, $2)`, e.ID, raw); err != nil {
		return domain.NewStorage(fmt.Errorf("event_repo.Create shares: %w", err))
	}
	return nil
}

func (r *EventRepository) hydrate(e *domain.Event) {
	e.Outcomes = splitOutcomes(e.OutcomesRaw)
}

func (r *EventRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	var e domain.Event
	err := r.db.GetContext(ctx, &e, `SELECT * FROM events WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound(domain.ErrEventNotFound)
	}
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("event_repo.GetByID: %w", err))
	}
	r.hydrate(&e)
	return &e, nil
}

// ListByGroup returns all events for a group, most recent first.
func (r *EventRepository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*domain.Event, error) {
	var events []*domain.Event
	err := r.db.SelectContext(ctx, &events,
		`SELECT * FROM events WHERE group_id = $1 ORDER BY created_at DESC`, groupID)
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("event_repo.ListByGroup: %w", err))
	}
	for _, e := range events {
		r.hydrate(e)
	}
	return events, nil
}

// ListActive returns all Active events, for loops that sweep the whole
// event set (the advisory poller).
func (r *EventRepository) ListActive(ctx context.Context) ([]*domain.Event, error) {
	var events []*domain.Event
	err := r.db.SelectContext(ctx, &events,
		`SELECT * FROM events WHERE status = $1 ORDER BY created_at`, string(domain.EventActive))
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("event_repo.ListActive: %w", err))
	}
	for _, e := range events {
		r.hydrate(e)
	}
	return events, nil
}

// ListActiveWithPubkey returns Active events that have an on-chain pubkey
// assigned, for the merkle committer's periodic sweep.
func (r *EventRepository) ListActiveWithPubkey(ctx context.Context) ([]*domain.Event, error) {
	var events []*domain.Event
	err := r.db.SelectContext(ctx, &events,
		`SELECT * FROM events WHERE status = $1 AND on_chain_pubkey <> '' ORDER BY created_at`,
		string(domain.EventActive))
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("event_repo.ListActiveWithPubkey: %w", err))
	}
	for _, e := range events {
		r.hydrate(e)
	}
	return events, nil
}

// LockShares fetches the event's share vector FOR UPDATE, so a caller can
// read-modify-write the LMSR state atomically. Only the event_shares row is
// locked; the events row (and its status) is not.
func (r *EventRepository) LockShares(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID) (map[string]decimal.Decimal, error) {
	var raw []byte
	err := tx.GetContext(ctx, &raw,
		`SELECT shares_json FROM event_shares WHERE event_id = $1 FOR UPDATE`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound(domain.ErrEventNotFound)
	}
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("event_repo.LockShares: %w", err))
	}
	shares := make(map[string]decimal.Decimal)
	if err := json.Unmarshal(raw, &shares); err != nil {
		return nil, domain.NewInternal(fmt.Errorf("event_repo.LockShares unmarshal: %w", err))
	}
	return shares, nil
}

// UpdateShares persists a new share vector inside the caller's transaction.
// Must be called after LockShares within the same transaction.
func (r *EventRepository) UpdateShares(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID, shares map[string]decimal.Decimal) error {
	raw, err := json.Marshal(shares)
	if err != nil {
		return domain.NewInternal(fmt.Errorf("event_repo.UpdateShares marshal: %w", err))
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE event_shares SET shares_json = $1 WHERE event_id = $2`, raw, eventID); err != nil {
		return domain.NewStorage(fmt.Errorf("event_repo.UpdateShares: %w", err))
	}
	return nil
}

// SetStatus transitions an event's status, guarded so only events in the
// expected prior status are affected (WHERE status = $3).
func (r *EventRepository) SetStatus(ctx context.Context, tx *sqlx.Tx, eventID uuid.UUID, newStatus, expectPrior domain.EventStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE events SET status = $1 WHERE id = $2 AND status = $3`,
		string(newStatus), eventID, string(expectPrior))
	if err != nil {
		return domain.NewStorage(fmt.Errorf("event_repo.SetStatus: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewBusinessLogic(domain.ErrAlreadySettled)
	}
	return nil
}
