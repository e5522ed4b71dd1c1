package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kalvora/accounts-auth/app/entity"
	"github.com/kalvora/accounts-auth/app/repository"
	"github.com/kalvora/accounts-auth/config"
)

// PasswordResetService mirrors the verification lifecycle with its own,
// shorter expiry window.
type PasswordResetService struct {
	db     *sql.DB
	tokens *repository.OneTimeTokenRepository
	users  *repository.UserRepository
	mail   MailSender
	cfg    *config.Config
	now    func() time.Time
}

type PasswordResetServiceOption func(*PasswordResetService)

func NewPasswordResetService(
	db *sql.DB,
	tokens *repository.OneTimeTokenRepository,
	users *repository.UserRepository,
	mail MailSender,
	cfg *config.Config,
	opts ...PasswordResetServiceOption,
) *PasswordResetService {
	svc := &PasswordResetService{
		db:     db,
		tokens: tokens,
		users:  users,
		mail:   mail,
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithResetClock(now func() time.Time) PasswordResetServiceOption {
	return func(s *PasswordResetService) {
		if now != nil {
			s.now = now
		}
	}
}

// RequestReset issues a reset token and mails the link. An unknown email
// reports success with zero side effects, so this endpoint cannot be used
// to enumerate registered addresses.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	txTokens := s.tokens.WithTx(tx)

	if err := txTokens.DeleteByUserID(ctx, entity.TokenKindPasswordReset, user.ID); err != nil {
		return err
	}

	now := s.now()
	token := &entity.OneTimeToken{
		UserID:    user.ID,
		Kind:      entity.TokenKindPasswordReset,
		Token:     uuid.New().String(),
		ExpiresAt: now.Add(s.cfg.ResetTokenTTL),
		CreatedAt: now,
	}
	if err := txTokens.Create(ctx, token); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return fmt.Errorf("%w: reset token collision", ErrStoreConflict)
		}
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.AppBaseURL, token.Token)
	subject, body := buildPasswordResetEmail(user.FirstName, resetURL)
	if err := s.mail.Send(ctx, user.Email, subject, body); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to send password reset email")
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}

	return tx.Commit()
}

// ResetPassword consumes the token and replaces the user's password hash.
// Outstanding refresh tokens are left untouched; callers wanting post-reset
// hardening can revoke them explicitly.
func (s *PasswordResetService) ResetPassword(ctx context.Context, tokenString, newPassword string) error {
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	txTokens := s.tokens.WithTx(tx)
	txUsers := s.users.WithTx(tx)

	token, err := txTokens.FindByTokenForUpdate(ctx, entity.TokenKindPasswordReset, tokenString)
	if err != nil {
		return err
	}
	if token == nil {
		return ErrInvalidToken
	}
	if token.Used {
		return ErrTokenUsed
	}
	if token.ExpiresAt.Before(s.now()) {
		return ErrTokenExpired
	}

	if err := txUsers.UpdatePassword(ctx, token.UserID, hash, s.now()); err != nil {
		return err
	}

	used, err := txTokens.MarkUsed(ctx, token.ID)
	if err != nil {
		return err
	}
	if used == 0 {
		return ErrTokenUsed
	}

	return tx.Commit()
}
