// Package chain declares the on-chain program interface the core depends
// on but never implements (spec §1: "out of scope external collaborator,
// specified only by the interface the core requires of it"). Grounded on
// the teacher's interface-for-circular-dependency pattern (Rebalancer,
// Broadcaster, Refunder in internal/service/*.go).
package chain

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemberBalance mirrors the on-chain custodial view of a member's funds,
// returned by GetMemberBalance. A nil return means the chain has no record
// (treated as "locked funds unknown", not an error).
type MemberBalance struct {
	SOL         decimal.Decimal
	USDC        decimal.Decimal
	FundsLocked bool
}

// Client is the seven-operation on-chain program interface of spec §6.
// Every method is opaque to the core: success returns a tx signature,
// failure returns an error. Implementations must never block
// indefinitely — callers wrap every call in a bounded context.
type Client interface {
	CreateGroup(ctx context.Context, name, admin string) (txSig, groupPubkey string, err error)
	DepositToTreasury(ctx context.Context, group, user uuid.UUID, userUSDC string, amountSOL, amountUSDC decimal.Decimal) (txSig string, err error)
	WithdrawFromTreasury(ctx context.Context, group, user uuid.UUID, userUSDC string, amountSOL, amountUSDC decimal.Decimal) (txSig string, err error)
	CommitMerkleRoot(ctx context.Context, eventPubkey string, root [32]byte) (txSig string, err error)
	SettleEvent(ctx context.Context, eventPubkey, groupPubkey, winner string) (txSig string, err error)
	ClaimWinnings(ctx context.Context, eventPubkey, groupPubkey string, user uuid.UUID, userUSDC string, amount decimal.Decimal) (txSig string, err error)
	GetMemberBalance(ctx context.Context, groupPubkey string, user uuid.UUID) (*MemberBalance, error)
}
