package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kalvora/accounts-auth/app/entity"
	"github.com/kalvora/accounts-auth/app/repository"
)

// RefreshTokenService owns the stateful refresh-token lifecycle: opaque
// random strings that are single-use and rotated on every refresh. Tokens
// move ACTIVE -> REVOKED; expiry is derived from the stored instant at
// validation time.
type RefreshTokenService struct {
	db     *sql.DB
	tokens *repository.RefreshTokenRepository
	ttl    time.Duration
	now    func() time.Time
}

type RefreshTokenServiceOption func(*RefreshTokenService)

func NewRefreshTokenService(db *sql.DB, tokens *repository.RefreshTokenRepository, ttl time.Duration, opts ...RefreshTokenServiceOption) *RefreshTokenService {
	svc := &RefreshTokenService{
		db:     db,
		tokens: tokens,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithRefreshClock(now func() time.Time) RefreshTokenServiceOption {
	return func(s *RefreshTokenService) {
		if now != nil {
			s.now = now
		}
	}
}

func (s *RefreshTokenService) Create(ctx context.Context, userID uint64) (*entity.RefreshToken, error) {
	return s.createWithRepo(ctx, s.tokens, userID)
}

func (s *RefreshTokenService) createWithRepo(ctx context.Context, repo *repository.RefreshTokenRepository, userID uint64) (*entity.RefreshToken, error) {
	now := s.now()
	token := &entity.RefreshToken{
		UserID:    userID,
		Token:     uuid.New().String(),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}

	if err := repo.Create(ctx, token); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: refresh token collision", ErrStoreConflict)
		}
		return nil, err
	}
	return token, nil
}

func (s *RefreshTokenService) Validate(ctx context.Context, tokenString string) (*entity.RefreshToken, error) {
	token, err := s.tokens.FindByToken(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	return s.check(token)
}

func (s *RefreshTokenService) check(token *entity.RefreshToken) (*entity.RefreshToken, error) {
	if token == nil || token.Revoked {
		return nil, ErrInvalidToken
	}
	if token.ExpiresAt.Before(s.now()) {
		return nil, ErrTokenExpired
	}
	return token, nil
}

// Revoke is idempotent: revoking an unknown or already-revoked token is a
// silent no-op so revoke-on-rotate callers never fail the outer flow on a
// race.
func (s *RefreshTokenService) Revoke(ctx context.Context, tokenString string) error {
	_, err := s.tokens.RevokeByToken(ctx, tokenString)
	return err
}

// RevokeAll invalidates every active token for a user, for global logout
// or credential-compromise handling.
func (s *RefreshTokenService) RevokeAll(ctx context.Context, userID uint64) error {
	return s.tokens.RevokeByUserID(ctx, userID)
}

// Rotate consumes the presented token and issues its replacement in one
// transaction. The conditional revoke guarantees single use: of two
// concurrent rotations of the same token exactly one wins, the other gets
// ErrInvalidToken.
func (s *RefreshTokenService) Rotate(ctx context.Context, tokenString string) (*entity.RefreshToken, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	txTokens := s.tokens.WithTx(tx)

	token, err := txTokens.FindByTokenForUpdate(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	if _, err := s.check(token); err != nil {
		return nil, err
	}

	revoked, err := txTokens.RevokeByToken(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	if revoked == 0 {
		return nil, ErrInvalidToken
	}

	newToken, err := s.createWithRepo(ctx, txTokens, token.UserID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return newToken, nil
}

// DeleteExpired removes tokens past their expiry. Expired tokens are
// already unusable; this only reclaims storage.
func (s *RefreshTokenService) DeleteExpired(ctx context.Context) error {
	return s.tokens.DeleteExpired(ctx, s.now())
}
