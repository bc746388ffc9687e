// Package merkle implements spec §4.E: leaf hashing, tree construction,
// and direction-aware inclusion proofs over a group's bet log, so a user
// can verify what they are owed even if the off-chain service is
// unreachable.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mitra-labs/predcore/internal/domain"
)

// Leaf is the hash of one bet's canonical encoding.
type Leaf [32]byte

// LeafHash computes SHA-256(id:event_id:user_id:outcome:shares:amount_usdc)
// using each field's canonical string form, per spec §4.E and §9's
// canonicalization note: decimals in their natural representation (no
// scientific notation, no trailing zeros beyond the stored scale), UUIDs
// hyphenated.
func LeafHash(b *domain.Bet) Leaf {
	msg := fmt.Sprintf("%s:%s:%s:%s:%s:%s",
		b.ID.String(), b.EventID.String(), b.UserID.String(),
		b.Outcome, canonicalDecimal(b.Shares), canonicalDecimal(b.AmountUSDC))
	return sha256.Sum256([]byte(msg))
}

// canonicalDecimal renders d without scientific notation and without
// trailing zeros beyond the value's stored scale, so two implementations
// encoding the same decimal always produce the same leaf (spec §9).
func canonicalDecimal(d decimal.Decimal) string {
	return d.String()
}

// Step is one level of a Merkle proof: the sibling hash and whether that
// sibling sits to the right of the node being lifted. Recording the
// direction resolves the ambiguity flagged in spec §4.E/§9 — the source
// combines (current, sibling) without tracking position, so verification
// here explicitly folds left/right instead of assuming an orientation.
type Step struct {
	Sibling        [32]byte
	SiblingOnRight bool
}

// Proof is the inclusion proof for one bet.
type Proof struct {
	BetID     uuid.UUID
	LeafHash  [32]byte
	Path      []Step
}

// Tree is a binary Merkle tree over a fixed ordered leaf set. levels[0] is
// the leaves; levels[len-1] is the single root.
type Tree struct {
	betIDs []uuid.UUID
	levels [][][32]byte
}

// Build constructs the tree over bets in the given order (callers should
// pass bets ordered by commit time — timestamp, then id — per spec §5's
// total-order requirement). The root over zero bets is 32 zero bytes; the
// root over one bet is that bet's leaf hash.
func Build(bets []*domain.Bet) *Tree {
	t := &Tree{betIDs: make([]uuid.UUID, len(bets))}
	level := make([][32]byte, len(bets))
	for i, b := range bets {
		t.betIDs[i] = b.ID
		level[i] = LeafHash(b)
	}
	if len(level) == 0 {
		t.levels = [][][32]byte{{{}}}
		return t
	}

	t.levels = append(t.levels, level)
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, combine(level[i], level[i+1]))
			} else {
				// Odd length: duplicate the last node at this level.
				next = append(next, combine(level[i], level[i]))
			}
		}
		level = next
		t.levels = append(t.levels, level)
	}
	return t
}

func combine(left, right [32]byte) [32]byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return sha256.Sum256(buf)
}

// Root returns the tree's root hash. Zero bets → 32 zero bytes.
func (t *Tree) Root() [32]byte {
	top := t.levels[len(t.levels)-1]
	if len(top) == 0 {
		return [32]byte{}
	}
	return top[0]
}

// Proof returns the direction-aware inclusion proof for the bet at the
// given index in the leaf order Build was called with.
func (t *Tree) Proof(index int) (*Proof, error) {
	if index < 0 || index >= len(t.betIDs) {
		return nil, fmt.Errorf("merkle: index %d out of range (%d leaves)", index, len(t.betIDs))
	}

	proof := &Proof{BetID: t.betIDs[index], LeafHash: t.levels[0][index]}
	idx := index
	for lvl := 0; lvl < len(t.levels)-1; lvl++ {
		level := t.levels[lvl]
		var siblingIdx int
		var onRight bool
		if idx%2 == 0 {
			siblingIdx = idx + 1
			onRight = true
			if siblingIdx >= len(level) {
				siblingIdx = idx // odd-length duplication: sibling is self
			}
		} else {
			siblingIdx = idx - 1
			onRight = false
		}
		proof.Path = append(proof.Path, Step{Sibling: level[siblingIdx], SiblingOnRight: onRight})
		idx /= 2
	}
	return proof, nil
}

// Verify recomputes the root by folding proof.Path against the leaf hash
// and compares it to root. Direction-aware: SiblingOnRight decides fold
// order at each step (spec P5).
func Verify(proof *Proof, root [32]byte) bool {
	current := proof.LeafHash
	for _, step := range proof.Path {
		if step.SiblingOnRight {
			current = combine(current, step.Sibling)
		} else {
			current = combine(step.Sibling, current)
		}
	}
	return bytes.Equal(current[:], root[:])
}
