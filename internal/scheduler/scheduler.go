// Package scheduler manages the background goroutines that run the
// prediction-market core's periodic work:
//  1. Merkle committer   – publishes inclusion roots for Active events.
//  2. Advisory poller    – recomputes AMM prices and broadcasts on
//     significant change.
//  3. Reconciliation job – re-drives offline settlements and missed payouts.
//
// Grounded on the teacher's scheduler.go: each loop is its own goroutine,
// ticks on its own interval, and recovers its own panics so one loop's
// crash never takes down the others.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/mitra-labs/predcore/internal/advisory"
	"github.com/mitra-labs/predcore/internal/merkle"
	"github.com/mitra-labs/predcore/internal/service"
)

// Scheduler wires together the long-running background loops. Call
// Start(ctx) once from main(); cancel the context to shut everything down.
type Scheduler struct {
	committer     *merkle.Committer
	poller        *advisory.Poller
	settlement    *service.SettlementService
	sweepInterval time.Duration
	log           *slog.Logger
}

// NewScheduler creates a Scheduler. sweepInterval is the reconciliation
// job's period (default 30s, spec §4.M).
func NewScheduler(
	committer *merkle.Committer,
	poller *advisory.Poller,
	settlement *service.SettlementService,
	sweepInterval time.Duration,
	logger *slog.Logger,
) *Scheduler {
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	return &Scheduler{
		committer: committer, poller: poller, settlement: settlement,
		sweepInterval: sweepInterval, log: logger,
	}
}

// Start launches all background goroutines. Returns immediately; every
// loop runs until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	if s.committer != nil {
		go s.committer.Run(ctx)
	}
	if s.poller != nil {
		go s.poller.Run(ctx)
	}
	go s.reconciliationLoop(ctx)
	s.log.Info("scheduler started")
}

// ──────────────────────────────────────────────────────────────────────────────
// reconciliationLoop
// ──────────────────────────────────────────────────────────────────────────────

// reconciliationLoop runs the two-part sweep of spec §4.M on a fixed
// interval: retry offline on-chain settlements, then re-drive any winning
// bet still missing its Payout row.
func (s *Scheduler) reconciliationLoop(ctx context.Context) {
	defer s.recoverAndLog("reconciliationLoop")

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("reconciliationLoop: shutting down")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if s.settlement == nil {
		return
	}

	retried, err := s.settlement.ReconcileOfflineSettlements(ctx)
	if err != nil {
		s.log.Error("reconciliation: offline settlement sweep failed", "error", err)
	} else if retried > 0 {
		s.log.Info("reconciliation: retried offline settlements", "count", retried)
	}

	paid, err := s.settlement.ReconcileUnpaidPayouts(ctx)
	if err != nil {
		s.log.Error("reconciliation: unpaid payout sweep failed", "error", err)
	} else if paid > 0 {
		s.log.Info("reconciliation: re-drove unpaid payouts", "count", paid)
	}
}

func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.log.Error("PANIC recovered in scheduler loop", "loop", loop, "panic", r)
	}
}
