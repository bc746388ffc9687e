package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is created lazily on first reference by wallet address and is never
// deleted (spec §3).
type User struct {
	ID            uuid.UUID `db:"id"             json:"id"`
	WalletAddress string    `db:"wallet_address"  json:"wallet_address"`
	CreatedAt     time.Time `db:"created_at"      json:"created_at"`
}

// MemberRole is the closed set of roles a GroupMember may hold.
type MemberRole string

const (
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

// Group owns one or more per-member treasuries (UserGroupBalance rows) and
// events. Deleting a group cascades to members and events (spec §3).
type Group struct {
	ID            uuid.UUID `db:"id"              json:"id"`
	OnChainPubkey string    `db:"on_chain_pubkey"  json:"on_chain_pubkey,omitempty"`
	Name          string    `db:"name"             json:"name"`
	AdminWallet   string    `db:"admin_wallet"     json:"admin_wallet"`
	CreatedAt     time.Time `db:"created_at"       json:"created_at"`
}

// GroupMember's primary key is (group_id, user_id); the admin is also a
// member row with RoleAdmin.
type GroupMember struct {
	GroupID  uuid.UUID  `db:"group_id"  json:"group_id"`
	UserID   uuid.UUID  `db:"user_id"   json:"user_id"`
	Role     MemberRole `db:"role"      json:"role"`
	JoinedAt time.Time  `db:"joined_at" json:"joined_at"`
}
