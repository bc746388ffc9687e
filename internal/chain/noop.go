package chain

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NoopClient is the Client cmd/server wires in; this tree has no RPC-backed
// Client and no setting that selects one. Every call succeeds with a synthetic tx reference so the rest of the core can be
// exercised without a live chain — the ChainUnavailable path is reserved for
// a real client that fails (offline markers, reconciliation retries), not
// for the absence of configuration.
type NoopClient struct {
	counter atomic.Uint64
}

func NewNoop() *NoopClient { return &NoopClient{} }

func (n *NoopClient) nextSig() string {
	return fmt.Sprintf("noop-tx-%d", n.counter.Add(1))
}

func (n *NoopClient) CreateGroup(ctx context.Context, name, admin string) (string, string, error) {
	return n.nextSig(), fmt.Sprintf("noop-pubkey-%s", uuid.New().String()), nil
}

func (n *NoopClient) DepositToTreasury(ctx context.Context, group, user uuid.UUID, userUSDC string, amountSOL, amountUSDC decimal.Decimal) (string, error) {
	return n.nextSig(), nil
}

func (n *NoopClient) WithdrawFromTreasury(ctx context.Context, group, user uuid.UUID, userUSDC string, amountSOL, amountUSDC decimal.Decimal) (string, error) {
	return n.nextSig(), nil
}

func (n *NoopClient) CommitMerkleRoot(ctx context.Context, eventPubkey string, root [32]byte) (string, error) {
	return n.nextSig(), nil
}

func (n *NoopClient) SettleEvent(ctx context.Context, eventPubkey, groupPubkey, winner string) (string, error) {
	return n.nextSig(), nil
}

func (n *NoopClient) ClaimWinnings(ctx context.Context, eventPubkey, groupPubkey string, user uuid.UUID, userUSDC string, amount decimal.Decimal) (string, error) {
	return n.nextSig(), nil
}

func (n *NoopClient) GetMemberBalance(ctx context.Context, groupPubkey string, user uuid.UUID) (*MemberBalance, error) {
	return &MemberBalance{SOL: decimal.Zero, USDC: decimal.Zero, FundsLocked: false}, nil
}
