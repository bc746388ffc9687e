package merkle

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mitra-labs/predcore/internal/domain"
)

func makeBets(n int) []*domain.Bet {
	eventID := uuid.New()
	bets := make([]*domain.Bet, n)
	for i := 0; i < n; i++ {
		bets[i] = &domain.Bet{
			ID:         uuid.New(),
			EventID:    eventID,
			UserID:     uuid.New(),
			Outcome:    "YES",
			Shares:     decimal.NewFromInt(int64(10 + i)),
			Price:      decimal.NewFromFloat(0.5),
			AmountUSDC: decimal.NewFromInt(int64(100 + i)),
			Timestamp:  time.Now().UTC(),
		}
	}
	return bets
}

// Scenario 5 / invariant P5: every bet in the committed set verifies
// against the root, and a proof becomes invalid if the underlying bet is
// mutated.
func TestMerkle_InclusionRoundTrip(t *testing.T) {
	bets := makeBets(4)
	tree := Build(bets)
	root := tree.Root()

	for i := range bets {
		proof, err := tree.Proof(i)
		if err != nil {
			t.Fatalf("Proof(%d) error: %v", i, err)
		}
		if !Verify(proof, root) {
			t.Errorf("bet %d: expected proof to verify against root", i)
		}
	}
}

func TestMerkle_MutatedBetFailsVerification(t *testing.T) {
	bets := makeBets(4)
	tree := Build(bets)
	root := tree.Root()

	proof, err := tree.Proof(1)
	if err != nil {
		t.Fatalf("Proof(1) error: %v", err)
	}
	if !Verify(proof, root) {
		t.Fatalf("expected original proof to verify")
	}

	bets[1].AmountUSDC = bets[1].AmountUSDC.Add(decimal.NewFromInt(1))
	mutatedTree := Build(bets)
	mutatedProof, err := mutatedTree.Proof(1)
	if err != nil {
		t.Fatalf("Proof(1) after mutation error: %v", err)
	}

	if Verify(mutatedProof, root) {
		t.Error("expected mutated bet's proof to fail against the original root")
	}
	if Verify(proof, mutatedTree.Root()) {
		t.Error("expected original proof to fail against the mutated root")
	}
}

func TestMerkle_EmptyTreeRootIsZero(t *testing.T) {
	tree := Build(nil)
	var zero [32]byte
	if tree.Root() != zero {
		t.Errorf("expected zero root for empty tree, got %x", tree.Root())
	}
}

func TestMerkle_SingleLeafRootIsLeafHash(t *testing.T) {
	bets := makeBets(1)
	tree := Build(bets)
	want := LeafHash(bets[0])
	if tree.Root() != [32]byte(want) {
		t.Errorf("expected single-leaf root to equal the leaf hash")
	}

	proof, err := tree.Proof(0)
	if err != nil {
		t.Fatalf("Proof(0) error: %v", err)
	}
	if len(proof.Path) != 0 {
		t.Errorf("expected empty path for a single-leaf tree, got %d steps", len(proof.Path))
	}
	if !Verify(proof, tree.Root()) {
		t.Error("expected single-leaf proof to verify")
	}
}

func TestMerkle_OddLeafCountDuplicatesLastNode(t *testing.T) {
	bets := makeBets(3)
	tree := Build(bets)
	root := tree.Root()

	for i := range bets {
		proof, err := tree.Proof(i)
		if err != nil {
			t.Fatalf("Proof(%d) error: %v", i, err)
		}
		if !Verify(proof, root) {
			t.Errorf("bet %d: expected proof to verify in odd-length tree", i)
		}
	}
}

func TestMerkle_ProofOutOfRange(t *testing.T) {
	tree := Build(makeBets(2))
	if _, err := tree.Proof(-1); err == nil {
		t.Error("expected error for negative index")
	}
	if _, err := tree.Proof(2); err == nil {
		t.Error("expected error for out-of-range index")
	}
}
