package service

import (
	"testing"

	"github.com/google/uuid"

	"github.com/mitra-labs/predcore/internal/domain"
)

func TestTallyVotes_Majority(t *testing.T) {
	eventID := uuid.New()
	votes := []domain.ConsensusVote{
		{EventID: eventID, Voter: uuid.New(), Winner: "YES"},
		{EventID: eventID, Voter: uuid.New(), Winner: "YES"},
		{EventID: eventID, Voter: uuid.New(), Winner: "NO"},
	}
	if got := tallyVotes(votes); got != "YES" {
		t.Errorf("tallyVotes = %s, want YES", got)
	}
}

func TestTallyVotes_TieBreaksFirstRegistered(t *testing.T) {
	eventID := uuid.New()
	votes := []domain.ConsensusVote{
		{EventID: eventID, Voter: uuid.New(), Winner: "NO"},
		{EventID: eventID, Voter: uuid.New(), Winner: "YES"},
	}
	if got := tallyVotes(votes); got != "NO" {
		t.Errorf("tallyVotes = %s, want NO (first-registered tiebreak)", got)
	}
}

func TestConsensusThreshold_CeilTwoThirds(t *testing.T) {
	// Scenario 6: group of 6 members, threshold = ceil(2*6/3) = 4.
	memberCount := 6
	threshold := (2*memberCount + 2) / 3
	if threshold != 4 {
		t.Errorf("threshold = %d, want 4", threshold)
	}
}
