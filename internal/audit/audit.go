// Package audit implements the append-only JSON-lines forensic log of spec
// §4.I: one line per state-changing action, independent of the transaction
// ledger. Loss of the audit log is a degraded-operations signal, not a
// correctness failure, so every write failure here is logged and swallowed
// rather than bubbled up to abort the caller's business operation.
package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one audit log line.
type Entry struct {
	Timestamp  int64           `json:"timestamp"`
	EventType  string          `json:"event_type"`
	EventID    *uuid.UUID      `json:"event_id,omitempty"`
	UserWallet *string         `json:"user_wallet,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
}

// Logger appends Entry lines to a per-UTC-date file. Safe for concurrent use.
type Logger struct {
	dir string
	log *slog.Logger

	mu       sync.Mutex
	fileDate string
	file     *os.File
}

// NewLogger creates a Logger writing under dir. The directory is created
// (including parents) if it does not already exist.
func NewLogger(dir string, logger *slog.Logger) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create log directory: %w", err)
	}
	return &Logger{dir: dir, log: logger}, nil
}

// write appends entry as one JSON line to today's file, rolling over to a
// new file at UTC midnight.
func (l *Logger) write(entry Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		l.log.Error("audit: marshal entry failed", "error", err, "event_type", entry.EventType)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	date := time.Now().UTC().Format("2006-01-02")
	if l.file == nil || l.fileDate != date {
		if l.file != nil {
			l.file.Close()
		}
		path := filepath.Join(l.dir, fmt.Sprintf("audit_%s.log", date))
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			l.log.Error("audit: open log file failed", "error", err, "path", path)
			l.file = nil
			return
		}
		l.file = f
		l.fileDate = date
	}

	if _, err := l.file.Write(append(data, '\n')); err != nil {
		l.log.Error("audit: write entry failed", "error", err, "event_type", entry.EventType)
		return
	}
	if err := l.file.Sync(); err != nil {
		l.log.Error("audit: flush log file failed", "error", err)
	}
}

func detailsJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

func ptr[T any](v T) *T { return &v }

// LogBetPlaced records a successful place_bet (spec §4.D step 8).
func (l *Logger) LogBetPlaced(betID, eventID uuid.UUID, userWallet, outcome string, shares, price, amountUSDC string) {
	l.write(Entry{
		Timestamp:  time.Now().Unix(),
		EventType:  "bet_placed",
		EventID:    ptr(eventID),
		UserWallet: ptr(userWallet),
		Details: detailsJSON(map[string]string{
			"bet_id":      betID.String(),
			"outcome":     outcome,
			"shares":      shares,
			"price":       price,
			"amount_usdc": amountUSDC,
		}),
	})
}

// LogEventCreated records a successful create_event.
func (l *Logger) LogEventCreated(eventID, groupID uuid.UUID, creatorWallet, title, settlementType string, outcomes []string) {
	l.write(Entry{
		Timestamp:  time.Now().Unix(),
		EventType:  "event_created",
		EventID:    ptr(eventID),
		UserWallet: ptr(creatorWallet),
		Details: detailsJSON(map[string]any{
			"group_id":        groupID.String(),
			"title":           title,
			"outcomes":        outcomes,
			"settlement_type": settlementType,
		}),
	})
}

// LogEventSettled records a successful settlement, regardless of which of
// the three entry points (manual, consensus, oracle) triggered it.
func (l *Logger) LogEventSettled(eventID uuid.UUID, winningOutcome, settlerWallet, txSignature string) {
	l.write(Entry{
		Timestamp:  time.Now().Unix(),
		EventType:  "event_settled",
		EventID:    ptr(eventID),
		UserWallet: ptr(settlerWallet),
		Details: detailsJSON(map[string]string{
			"winning_outcome": winningOutcome,
			"chain_tx":        txSignature,
		}),
	})
}

// LogMerkleCommitted records a successful Merkle root commitment.
func (l *Logger) LogMerkleCommitted(eventID uuid.UUID, root [32]byte, txSignature string) {
	l.write(Entry{
		Timestamp: time.Now().Unix(),
		EventType: "merkle_committed",
		EventID:   ptr(eventID),
		Details: detailsJSON(map[string]string{
			"merkle_root": fmt.Sprintf("0x%x", root),
			"chain_tx":    txSignature,
		}),
	})
}

// LogEmergencyWithdrawal records a user claiming via the Merkle proof path
// rather than the normal claim_winnings flow.
func (l *Logger) LogEmergencyWithdrawal(betID uuid.UUID, userWallet, amount, txSignature string) {
	l.write(Entry{
		Timestamp:  time.Now().Unix(),
		EventType:  "emergency_withdrawal",
		UserWallet: ptr(userWallet),
		Details: detailsJSON(map[string]string{
			"bet_id":   betID.String(),
			"amount":   amount,
			"chain_tx": txSignature,
		}),
	})
}

// Close releases the underlying file handle, if open. Safe to call more
// than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
