// Package main is the entry point for the prediction-market core API
// server. It wires together all services and starts the HTTP server
// alongside the WebSocket hub and background scheduler.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/shopspring/decimal"

	"github.com/mitra-labs/predcore/internal/advisory"
	"github.com/mitra-labs/predcore/internal/api"
	"github.com/mitra-labs/predcore/internal/audit"
	"github.com/mitra-labs/predcore/internal/auth"
	"github.com/mitra-labs/predcore/internal/chain"
	"github.com/mitra-labs/predcore/internal/config"
	"github.com/mitra-labs/predcore/internal/ledger"
	"github.com/mitra-labs/predcore/internal/merkle"
	"github.com/mitra-labs/predcore/internal/repository"
	"github.com/mitra-labs/predcore/internal/scheduler"
	"github.com/mitra-labs/predcore/internal/service"
	"github.com/mitra-labs/predcore/internal/ws"
)

func main() {
	// ── 1. Config + logger ───────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting predcore server", "env", cfg.Server.Env, "port", cfg.Server.Port)

	// ── 2. Database ───────────────────────────────────────────────────────────
	db, err := sqlx.Connect("postgres", cfg.DB.DSN)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err = db.Ping(); err != nil {
		logger.Error("database ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// ── 3. Migrations ─────────────────────────────────────────────────────────
	if err = runMigrations(db, "migrations"); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	logger.Info("migrations applied")

	// ── 4. Audit log ──────────────────────────────────────────────────────────
	auditLog, err := audit.NewLogger(cfg.Audit.Dir, logger)
	if err != nil {
		logger.Error("audit logger init failed", "err", err)
		os.Exit(1)
	}
	defer auditLog.Close()

	// ── 5. Repositories + ledger ──────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	eventRepo := repository.NewEventRepository(db)
	betRepo := repository.NewBetRepository(db)
	ledgerStore := ledger.New(db)

	// ── 6. External interfaces ────────────────────────────────────────────────
	verifier := auth.NewVerifier(cfg.Auth.DevMode)
	chainClient := chain.NewNoop()

	// ── 7. Services (order matters for cross-wiring) ──────────────────────────
	liquidity := decimal.NewFromFloat(cfg.LMSR.Liquidity)

	groupSvc := service.NewGroupService(db, verifier, chainClient, userRepo, groupRepo)

	eventSvc := service.NewEventService(db, verifier, groupRepo, eventRepo, betRepo)
	eventSvc.SetLiquidity(liquidity)
	eventSvc.SetAuditLogger(auditLog)

	bettingSvc := service.NewBettingService(db, verifier, chainClient, ledgerStore, userRepo, eventRepo, betRepo)
	bettingSvc.SetLiquidity(liquidity)
	bettingSvc.SetAuditLogger(auditLog)

	settlementSvc := service.NewSettlementService(db, verifier, chainClient, ledgerStore, groupRepo, eventRepo, betRepo, logger)
	settlementSvc.SetAuditLogger(auditLog)

	reportSvc := service.NewReportService(db)

	// Wire the EventService → SettlementService dispatch (avoids an import
	// cycle the same way the teacher wires MarketService → ResolutionService).
	eventSvc.SetSettlementDispatcher(settlementSvc)

	// ── 8. WebSocket Hub ──────────────────────────────────────────────────────
	var allowedOrigins []string
	if cfg.Server.AllowedOrigins != "" {
		for _, o := range strings.Split(cfg.Server.AllowedOrigins, ",") {
			allowedOrigins = append(allowedOrigins, strings.TrimSpace(o))
		}
	}
	hub := ws.NewHub(logger, allowedOrigins)

	bettingSvc.SetBroadcaster(hub)
	settlementSvc.SetBroadcaster(hub)

	// ── 9. Merkle committer + advisory poller ─────────────────────────────────
	committer := merkle.NewCommitter(eventRepo, betRepo, chainClient, logger,
		cfg.Merkle.CommitInterval, decimal.NewFromFloat(cfg.Merkle.VolumeThreshold))
	committer.SetAuditLogger(auditLog)

	poller := advisory.NewPoller(eventRepo, betRepo, hub, cfg.Advisory.Endpoint,
		cfg.Advisory.RequestTimeout, cfg.Advisory.PollInterval, logger)
	poller.SetLiquidity(liquidity)

	// ── 10. Root context + signal handling ────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 11. Start WS hub + scheduler ──────────────────────────────────────────
	go hub.Run()
	logger.Info("websocket hub started")

	sched := scheduler.NewScheduler(committer, poller, settlementSvc, cfg.Reconciliation.SweepInterval, logger)
	sched.Start(ctx)

	// ── 12. HTTP router ────────────────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		Verifier:   verifier,
		Groups:     groupSvc,
		Events:     eventSvc,
		Betting:    bettingSvc,
		Settlement: settlementSvc,
		Reports:    reportSvc,
		Committer:  committer,
		Audit:      auditLog,
		Hub:        hub,
		Cfg:        cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── 13. Start server ───────────────────────────────────────────────────────
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop() // trigger graceful shutdown
		}
	}()

	// ── 14. Graceful shutdown ────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}

	db.Close()
	logger.Info("server stopped cleanly")
}

// runMigrations reads all *.sql files from dir, sorted by name, and executes
// them sequentially. Idempotent: SQL files should use IF NOT EXISTS / ON CONFLICT.
func runMigrations(db *sqlx.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("runMigrations: read dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("runMigrations: read %q: %w", f, err)
		}
		if _, err = db.Exec(string(data)); err != nil {
			return fmt.Errorf("runMigrations: exec %q: %w", f, err)
		}
		slog.Info("migration applied", "file", filepath.Base(f))
	}
	return nil
}
