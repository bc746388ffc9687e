package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewScheduler_DefaultsSweepInterval(t *testing.T) {
	s := NewScheduler(nil, nil, nil, 0, discardLogger())
	if s.sweepInterval != 30*time.Second {
		t.Errorf("sweepInterval = %v, want 30s default when given 0", s.sweepInterval)
	}
}

func TestNewScheduler_KeepsExplicitInterval(t *testing.T) {
	s := NewScheduler(nil, nil, nil, 5*time.Second, discardLogger())
	if s.sweepInterval != 5*time.Second {
		t.Errorf("sweepInterval = %v, want 5s", s.sweepInterval)
	}
}

// Start must tolerate nil committer/poller/settlement (e.g. a deployment
// that disables a loop) without panicking, and must stop promptly when its
// context is cancelled.
func TestStart_NilCollaborators_NoPanic(t *testing.T) {
	s := NewScheduler(nil, nil, nil, 20*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	time.Sleep(60 * time.Millisecond) // let a couple of ticks fire
	cancel()
	time.Sleep(20 * time.Millisecond) // give reconciliationLoop time to observe ctx.Done()
}

func TestRecoverAndLog_SwallowsPanic(t *testing.T) {
	s := NewScheduler(nil, nil, nil, time.Second, discardLogger())

	func() {
		defer s.recoverAndLog("testLoop")
		panic("boom")
	}()
	// Reaching this line means the panic was recovered, not propagated.
}
