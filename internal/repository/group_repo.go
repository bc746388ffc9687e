// Package repository handles all database CRUD operations for Groups,
// Events, and Bets — kept as a layer separate from the Ledger Store
// (internal/ledger), which owns balance-affecting operations only, per
// spec §4.C/§4.D's separation of "treasury state" from "market state".
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/mitra-labs/predcore/internal/domain"
)

// GroupRepository handles Group and GroupMember rows.
type GroupRepository struct {
	db *sqlx.DB
}

func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// Create inserts a new group row. A unique violation on the group's
// on-chain pubkey is surfaced as domain.ErrDuplicate.
func (r *GroupRepository) Create(ctx context.Context, g *domain.Group) error {
	query := `
		INSERT INTO groups (id, on_chain_pubkey, name, admin_wallet, created_at)
		VALUES (:id, :on_chain_pubkey, :name, :admin_wallet, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, g); err != nil {
		if isUniqueViolation(err) {
			return domain.NewBusinessLogic(domain.ErrDuplicate)
		}
		return domain.NewStorage(fmt.Errorf("group_repo.Create: %w", err))
	}
	return nil
}

func (r *GroupRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Group, error) {
	var g domain.Group
	err := r.db.GetContext(ctx, &g, `SELECT * FROM groups WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound(domain.ErrGroupNotFound)
	}
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("group_repo.GetByID: %w", err))
	}
	return &g, nil
}

// AddMember inserts a membership row, default role 'member' unless admin.
func (r *GroupRepository) AddMember(ctx context.Context, m *domain.GroupMember) error {
	query := `
		INSERT INTO group_members (group_id, user_id, role, joined_at)
		VALUES (:group_id, :user_id, :role, :joined_at)
		ON CONFLICT (group_id, user_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return domain.NewStorage(fmt.Errorf("group_repo.AddMember: %w", err))
	}
	return nil
}

// GetMember fetches a single membership row, NotFound translated to
// ErrNotMember (the caller-facing meaning of a missing row here).
func (r *GroupRepository) GetMember(ctx context.Context, groupID, userID uuid.UUID) (*domain.GroupMember, error) {
	var m domain.GroupMember
	err := r.db.GetContext(ctx, &m,
		`SELECT * FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewBusinessLogic(domain.ErrNotMember)
	}
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("group_repo.GetMember: %w", err))
	}
	return &m, nil
}

// ListMembers returns every member of a group.
func (r *GroupRepository) ListMembers(ctx context.Context, groupID uuid.UUID) ([]*domain.GroupMember, error) {
	var members []*domain.GroupMember
	err := r.db.SelectContext(ctx, &members,
		`SELECT * FROM group_members WHERE group_id = $1 ORDER BY joined_at ASC`, groupID)
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("group_repo.ListMembers: %w", err))
	}
	return members, nil
}

// ListByUser returns every group a given wallet belongs to.
func (r *GroupRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Group, error) {
	var groups []*domain.Group
	err := r.db.SelectContext(ctx, &groups, `
		SELECT g.* FROM groups g
		JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.user_id = $1
		ORDER BY g.created_at DESC`, userID)
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("group_repo.ListByUser: %w", err))
	}
	return groups, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
