package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	dir := t.TempDir()
	l, err := NewLogger(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, dir
}

func readEntries(t *testing.T, dir string) []Entry {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("audit_%s.log", time.Now().UTC().Format("2006-01-02")))
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal log line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestNewLogger_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "audit")
	l, err := NewLogger(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer l.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected directory %q to exist: %v", dir, err)
	}
}

func TestLogBetPlaced(t *testing.T) {
	l, dir := newTestLogger(t)

	betID, eventID := uuid.New(), uuid.New()
	l.LogBetPlaced(betID, eventID, "wallet-abc", "yes", "10", "0.55", "5.50")

	entries := readEntries(t, dir)
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	got := entries[0]
	if got.EventType != "bet_placed" {
		t.Errorf("event_type = %q, want bet_placed", got.EventType)
	}
	if got.EventID == nil || *got.EventID != eventID {
		t.Errorf("event_id = %v, want %v", got.EventID, eventID)
	}
	if got.UserWallet == nil || *got.UserWallet != "wallet-abc" {
		t.Errorf("user_wallet = %v, want wallet-abc", got.UserWallet)
	}

	var details map[string]string
	if err := json.Unmarshal(got.Details, &details); err != nil {
		t.Fatalf("unmarshal details: %v", err)
	}
	if details["bet_id"] != betID.String() {
		t.Errorf("details.bet_id = %q, want %q", details["bet_id"], betID.String())
	}
}

func TestLogEventSettled_AppendsSequentially(t *testing.T) {
	l, dir := newTestLogger(t)

	eventID := uuid.New()
	l.LogEventSettled(eventID, "yes", "wallet-arbiter", "tx-1")
	l.LogEventSettled(eventID, "no", "wallet-arbiter", "tx-2")

	entries := readEntries(t, dir)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries (append-only), got %d", len(entries))
	}
}

func TestLogMerkleCommitted_NoUserWallet(t *testing.T) {
	l, dir := newTestLogger(t)

	l.LogMerkleCommitted(uuid.New(), [32]byte{0xAB}, "tx-root")

	entries := readEntries(t, dir)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].UserWallet != nil {
		t.Errorf("merkle_committed should not carry a user_wallet, got %v", entries[0].UserWallet)
	}
}

func TestClose_Idempotent(t *testing.T) {
	l, _ := newTestLogger(t)
	l.LogEmergencyWithdrawal(uuid.New(), "wallet-x", "1.00", "tx-z")

	if err := l.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	// Closing again (no file currently open, since the first Close released
	// it; the test cleanup calls Close a third time) must not panic or error.
	if err := l.Close(); err != nil {
		t.Fatalf("second Close() failed: %v", err)
	}
}
