package merkle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mitra-labs/predcore/internal/audit"
	"github.com/mitra-labs/predcore/internal/chain"
	"github.com/mitra-labs/predcore/internal/domain"
	"github.com/mitra-labs/predcore/internal/repository"
)

// Threshold below which an event's volume is not worth publishing a root
// for yet (default $1000, spec §4.E).
var defaultThresholdUSDC = decimal.NewFromInt(1000)

// EventLister is the minimal interface Committer needs to find Active
// events with an on-chain pubkey assigned.
type EventLister interface {
	ListActiveWithPubkey(ctx context.Context) ([]*domain.Event, error)
}

// Committer runs the periodic Merkle-root publication loop of spec §4.E.
// Grounded on scheduler.go's ticker + ctx.Done() + recoverAndLog shape —
// the committer never blocks request paths and never mutates ledger state.
type Committer struct {
	events    EventLister
	bets      *repository.BetRepository
	chain     chain.Client
	log       *slog.Logger
	interval  time.Duration
	threshold decimal.Decimal
	audit     *audit.Logger

	// lastRoots caches the most recent root per event so Proof lookups
	// between ticks don't require rebuilding the tree. Guarded by
	// rootsMu since ProofFor is called concurrently from HTTP handlers
	// while tick() writes from the committer's own goroutine.
	rootsMu   sync.RWMutex
	lastRoots map[uuid.UUID]*Tree
}

func NewCommitter(events EventLister, bets *repository.BetRepository, chainClient chain.Client, logger *slog.Logger, interval time.Duration, threshold decimal.Decimal) *Committer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if threshold.IsZero() {
		threshold = defaultThresholdUSDC
	}
	return &Committer{
		events: events, bets: bets, chain: chainClient, log: logger,
		interval: interval, threshold: threshold,
		lastRoots: make(map[uuid.UUID]*Tree),
	}
}

// SetAuditLogger attaches the forensic audit trail (spec §4.I).
func (c *Committer) SetAuditLogger(l *audit.Logger) { c.audit = l }

// Run blocks, ticking on the configured interval until ctx is cancelled.
// The scheduler launches it with `go committer.Run(ctx)`.
func (c *Committer) Run(ctx context.Context) {
	defer c.recoverAndLog()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("merkle committer: shutting down")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Committer) tick(ctx context.Context) {
	events, err := c.events.ListActiveWithPubkey(ctx)
	if err != nil {
		c.log.Error("merkle committer: list events failed", "error", err)
		return
	}
	for _, event := range events {
		c.commitOne(ctx, event)
	}
}

func (c *Committer) commitOne(ctx context.Context, event *domain.Event) {
	bets, err := c.bets.ListByEvent(ctx, event.ID)
	if err != nil {
		c.log.Error("merkle committer: list bets failed", "event_id", event.ID, "error", err)
		return
	}

	volume := decimal.Zero
	for _, b := range bets {
		volume = volume.Add(b.AmountUSDC)
	}
	if volume.LessThan(c.threshold) {
		return
	}

	tree := Build(bets)
	root := tree.Root()
	c.rootsMu.Lock()
	c.lastRoots[event.ID] = tree
	c.rootsMu.Unlock()

	txSig, err := c.chain.CommitMerkleRoot(ctx, event.OnChainPubkey, root)
	if err != nil {
		c.log.Warn("merkle committer: publish failed, will retry next tick", "event_id", event.ID, "error", err)
		return
	}
	c.log.Info("merkle root committed", "event_id", event.ID, "tx", txSig, "bet_count", len(bets))
	if c.audit != nil {
		c.audit.LogMerkleCommitted(event.ID, root, txSig)
	}
}

// ProofFor returns the current proof for a bet, for emergency-withdrawal
// assistance (spec §4.E). Returns false if the event has no cached tree
// yet or the bet is not found in it.
func (c *Committer) ProofFor(eventID uuid.UUID, betID uuid.UUID) (*Proof, bool) {
	c.rootsMu.RLock()
	tree, ok := c.lastRoots[eventID]
	c.rootsMu.RUnlock()
	if !ok {
		return nil, false
	}
	for i, id := range tree.betIDs {
		if id == betID {
			proof, err := tree.Proof(i)
			if err != nil {
				return nil, false
			}
			return proof, true
		}
	}
	return nil, false
}

func (c *Committer) recoverAndLog() {
	if r := recover(); r != nil {
		c.log.Error("PANIC recovered in merkle committer", "panic", r)
	}
}
