package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kalvora/accounts-auth/app/dto"
	"github.com/kalvora/accounts-auth/app/entity"
	"github.com/kalvora/accounts-auth/app/repository"
)

// AuthService composes the credential components into the register, login
// and refresh flows, each producing an access+refresh bundle.
type AuthService struct {
	db            *sql.DB
	users         *repository.UserRepository
	codec         *TokenCodec
	refreshTokens *RefreshTokenService
	verification  *EmailVerificationService
	now           func() time.Time
}

type AuthServiceOption func(*AuthService)

func NewAuthService(
	db *sql.DB,
	users *repository.UserRepository,
	codec *TokenCodec,
	refreshTokens *RefreshTokenService,
	verification *EmailVerificationService,
	opts ...AuthServiceOption,
) *AuthService {
	svc := &AuthService{
		db:            db,
		users:         users,
		codec:         codec,
		refreshTokens: refreshTokens,
		verification:  verification,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithAuthClock(now func() time.Time) AuthServiceOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

// Register creates a disabled, unverified account and mails its
// verification token, all in one transaction. It still returns a full
// credential bundle even though the account cannot log in until verified;
// this mirrors the long-standing upstream behavior and callers depend on
// it.
func (s *AuthService) Register(ctx context.Context, email, password, firstName, lastName string) (*dto.AuthResult, error) {
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &entity.User{
		Email:         email,
		PasswordHash:  hash,
		FirstName:     firstName,
		LastName:      lastName,
		Role:          entity.RoleUser,
		Enabled:       false,
		EmailVerified: false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	txUsers := s.users.WithTx(tx)
	if err := txUsers.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: user row collision", ErrStoreConflict)
		}
		return nil, err
	}

	if _, err := s.verification.CreateTokenTx(ctx, tx, user); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.issueBundle(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*dto.AuthResult, error) {
	user, err := s.identify(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.issueBundle(ctx, user)
}

// identify verifies the password credential and the account state. The
// disabled check runs before the password comparison, so a disabled
// account surfaces as disabled regardless of the password presented. The
// verified flag is re-checked even for enabled accounts.
func (s *AuthService) identify(ctx context.Context, email, password string) (*entity.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if !user.Enabled {
		return nil, ErrAccountDisabled
	}

	if !CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	return user, nil
}

// Refresh rotates the presented refresh token and mints a new access
// token. The old refresh string is permanently dead afterward.
func (s *AuthService) Refresh(ctx context.Context, refreshTokenString string) (*dto.AuthResult, error) {
	newToken, err := s.refreshTokens.Rotate(ctx, refreshTokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, newToken.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	return s.bundleWith(user, newToken.Token)
}

func (s *AuthService) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.codec.Verify(tokenString)
}

func (s *AuthService) issueBundle(ctx context.Context, user *entity.User) (*dto.AuthResult, error) {
	refreshToken, err := s.refreshTokens.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.bundleWith(user, refreshToken.Token)
}

func (s *AuthService) bundleWith(user *entity.User, refreshToken string) (*dto.AuthResult, error) {
	accessToken, err := s.codec.Issue(user)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.codec.TTL().Seconds()),
		User:         dto.NewUserInfo(user),
	}, nil
}
