package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mitra-labs/predcore/internal/domain"
)

// UserRepository handles User rows, keyed by wallet address. Users are
// created lazily on first reference (spec §3: "Created lazily on first
// reference by wallet. Never deleted.").
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByWallet(ctx context.Context, wallet string) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE wallet_address = $1`, wallet)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound(fmt.Errorf("user with wallet %s: %w", wallet, sql.ErrNoRows))
	}
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("user_repo.GetByWallet: %w", err))
	}
	return &u, nil
}

// FindOrCreate returns the existing user for wallet, or creates one.
// Runs inside the caller's transaction so it composes atomically with the
// rest of a create_group/invite_member/place_bet sequence.
func (r *UserRepository) FindOrCreate(ctx context.Context, tx *sqlx.Tx, wallet string) (*domain.User, error) {
	var u domain.User
	err := tx.GetContext(ctx, &u, `SELECT * FROM users WHERE wallet_address = $1 FOR UPDATE`, wallet)
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewStorage(fmt.Errorf("user_repo.FindOrCreate select: %w", err))
	}

	u = domain.User{ID: uuid.New(), WalletAddress: wallet, CreatedAt: time.Now().UTC()}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, wallet_address, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (wallet_address) DO NOTHING`, u.ID, u.WalletAddress, u.CreatedAt)
	if err != nil {
		return nil, domain.NewStorage(fmt.Errorf("user_repo.FindOrCreate insert: %w", err))
	}

	if err = tx.GetContext(ctx, &u, `SELECT * FROM users WHERE wallet_address = $1 FOR UPDATE`, wallet); err != nil {
		return nil, domain.NewStorage(fmt.Errorf("user_repo.FindOrCreate reselect: %w", err))
	}
	return &u, nil
}
