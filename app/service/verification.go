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

// EmailVerificationService manages the single-use activation token a new
// account must consume before it can log in. At most one live token exists
// per user; issuing a new one deletes the previous outright.
type EmailVerificationService struct {
	db     *sql.DB
	tokens *repository.OneTimeTokenRepository
	users  *repository.UserRepository
	mail   MailSender
	cfg    *config.Config
	now    func() time.Time
}

type EmailVerificationServiceOption func(*EmailVerificationService)

func NewEmailVerificationService(
	db *sql.DB,
	tokens *repository.OneTimeTokenRepository,
	users *repository.UserRepository,
	mail MailSender,
	cfg *config.Config,
	opts ...EmailVerificationServiceOption,
) *EmailVerificationService {
	svc := &EmailVerificationService{
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

func WithVerificationClock(now func() time.Time) EmailVerificationServiceOption {
	return func(s *EmailVerificationService) {
		if now != nil {
			s.now = now
		}
	}
}

// CreateToken replaces any existing verification token for the user and
// mails the new one. Delete, insert and send share one transaction: a
// failed send aborts the operation so no token exists that the user never
// received.
func (s *EmailVerificationService) CreateToken(ctx context.Context, user *entity.User) (*entity.OneTimeToken, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	token, err := s.CreateTokenTx(ctx, tx, user)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return token, nil
}

// CreateTokenTx runs the delete-then-create-then-notify sequence inside a
// caller-owned transaction, so registration can issue the token in the
// same atomic scope that creates the user.
func (s *EmailVerificationService) CreateTokenTx(ctx context.Context, tx *sql.Tx, user *entity.User) (*entity.OneTimeToken, error) {
	txTokens := s.tokens.WithTx(tx)

	if err := txTokens.DeleteByUserID(ctx, entity.TokenKindEmailVerification, user.ID); err != nil {
		return nil, err
	}

	now := s.now()
	token := &entity.OneTimeToken{
		UserID:    user.ID,
		Kind:      entity.TokenKindEmailVerification,
		Token:     uuid.New().String(),
		ExpiresAt: now.Add(s.cfg.VerificationTokenTTL),
		CreatedAt: now,
	}
	if err := txTokens.Create(ctx, token); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: verification token collision", ErrStoreConflict)
		}
		return nil, err
	}

	verificationURL := fmt.Sprintf("%s/api/v1/auth/verify-email?token=%s", s.cfg.AppBaseURL, token.Token)
	subject, body := buildVerificationEmail(user.FirstName, verificationURL)
	if err := s.mail.Send(ctx, user.Email, subject, body); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to send verification email")
		return nil, fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}

	return token, nil
}

// VerifyEmail consumes the token and activates the account. The user flip
// and the token consumption commit together or not at all.
func (s *EmailVerificationService) VerifyEmail(ctx context.Context, tokenString string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	txTokens := s.tokens.WithTx(tx)
	txUsers := s.users.WithTx(tx)

	token, err := txTokens.FindByTokenForUpdate(ctx, entity.TokenKindEmailVerification, tokenString)
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

	if err := txUsers.MarkVerified(ctx, token.UserID, s.now()); err != nil {
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
