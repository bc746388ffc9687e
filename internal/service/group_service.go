package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mitra-labs/predcore/internal/auth"
	"github.com/mitra-labs/predcore/internal/chain"
	"github.com/mitra-labs/predcore/internal/domain"
	"github.com/mitra-labs/predcore/internal/repository"
)

// GroupService implements spec §4.D's create_group / invite_member /
// delete_group, grounded on the teacher's auth_service.go atomic
// find-or-create-user + insert pattern, generalized from "register a user"
// to "stand up a group and its admin membership".
type GroupService struct {
	db       *sqlx.DB
	verifier *auth.Verifier
	chain    chain.Client
	users    *repository.UserRepository
	groups   *repository.GroupRepository
}

func NewGroupService(db *sqlx.DB, verifier *auth.Verifier, chainClient chain.Client, users *repository.UserRepository, groups *repository.GroupRepository) *GroupService {
	return &GroupService{db: db, verifier: verifier, chain: chainClient, users: users, groups: groups}
}

// CreateGroup verifies sig, finds-or-creates the admin user, attempts an
// on-chain group creation (falling back to a locally minted pubkey if
// the chain interface is unavailable), inserts the group, and adds the
// admin as the first member.
func (s *GroupService) CreateGroup(ctx context.Context, name, adminWallet, pubkey, sig string, ts int64) (*domain.Group, error) {
	if err := s.verifier.Verify(auth.Request{Wallet: adminWallet, Action: "create_group", Timestamp: ts, Signature: sig}); err != nil {
		return nil, err
	}
	if len(name) == 0 || len(name) > domain.MaxGroupNameLn {
		return nil, domain.NewValidation(domain.ErrGroupNameTooLong)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("group.CreateGroup begin: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	admin, err := s.users.FindOrCreate(ctx, tx, adminWallet)
	if err != nil {
		return nil, err
	}

	onChainPubkey := pubkey
	if onChainPubkey == "" {
		_, minted, chainErr := s.chain.CreateGroup(ctx, name, adminWallet)
		if chainErr == nil {
			onChainPubkey = minted
		} else {
			onChainPubkey = fmt.Sprintf("local-%s", uuid.New().String())
		}
	}

	group := &domain.Group{
		ID: uuid.New(), OnChainPubkey: onChainPubkey, Name: name,
		AdminWallet: adminWallet, CreatedAt: time.Now().UTC(),
	}
	if err := s.groups.Create(ctx, group); err != nil {
		return nil, err
	}

	member := &domain.GroupMember{GroupID: group.ID, UserID: admin.ID, Role: domain.RoleAdmin, JoinedAt: time.Now().UTC()}
	if err := s.groups.AddMember(ctx, member); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.NewStorage(fmt.Errorf("group.CreateGroup commit: %w", err))
	}
	committed = true
	return group, nil
}

// InviteMember verifies sig, requires the inviter to be a current member,
// finds-or-creates the invited user, and adds them as Member (idempotent).
func (s *GroupService) InviteMember(ctx context.Context, groupID uuid.UUID, invitedWallet, inviterWallet, sig string, ts int64) (*domain.GroupMember, error) {
	if err := s.verifier.Verify(auth.Request{Wallet: inviterWallet, Action: "invite_member", Timestamp: ts, Signature: sig}); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("group.InviteMember begin: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	inviter, err := s.users.FindOrCreate(ctx, tx, inviterWallet)
	if err != nil {
		return nil, err
	}
	if _, err := s.groups.GetMember(ctx, groupID, inviter.ID); err != nil {
		return nil, err
	}

	invited, err := s.users.FindOrCreate(ctx, tx, invitedWallet)
	if err != nil {
		return nil, err
	}

	member := &domain.GroupMember{GroupID: groupID, UserID: invited.ID, Role: domain.RoleMember, JoinedAt: time.Now().UTC()}
	if err := s.groups.AddMember(ctx, member); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.NewStorage(fmt.Errorf("group.InviteMember commit: %w", err))
	}
	committed = true
	return member, nil
}

// DeleteGroup is admin-only; cascades to members and events via the
// database's foreign-key CASCADE (spec §3).
func (s *GroupService) DeleteGroup(ctx context.Context, groupID uuid.UUID, adminWallet, sig string, ts int64) error {
	if err := s.verifier.Verify(auth.Request{Wallet: adminWallet, Action: "delete_group", Timestamp: ts, Signature: sig}); err != nil {
		return err
	}
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if group.AdminWallet != adminWallet {
		return domain.NewUnauthorized(domain.ErrNotAdmin)
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, groupID)
	if err != nil {
		return domain.NewStorage(fmt.Errorf("group.DeleteGroup: %w", err))
	}
	return nil
}

// ListGroupsForUser returns every group a wallet belongs to.
func (s *GroupService) ListGroupsForUser(ctx context.Context, wallet string) ([]*domain.Group, error) {
	user, err := s.users.GetByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return s.groups.ListByUser(ctx, user.ID)
}
