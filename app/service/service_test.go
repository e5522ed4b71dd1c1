package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kalvora/accounts-auth/app/repository"
	"github.com/kalvora/accounts-auth/app/service"
	"github.com/kalvora/accounts-auth/config"
)

var (
	userColumns = []string{
		"id",
		"email",
		"password_hash",
		"first_name",
		"last_name",
		"role",
		"enabled",
		"email_verified",
		"created_at",
		"updated_at",
	}
	refreshTokenColumns = []string{
		"id",
		"user_id",
		"token",
		"expires_at",
		"created_at",
		"revoked",
	}
	oneTimeTokenColumns = []string{
		"id",
		"user_id",
		"kind",
		"token",
		"expires_at",
		"used",
		"created_at",
	}
)

const (
	findUserByEmailQuery     = `(?s)SELECT id, email, password_hash, first_name, last_name, role, enabled, email_verified, created_at, updated_at\s+FROM users WHERE email = \?`
	findUserByIDQuery        = `(?s)SELECT id, email, password_hash, first_name, last_name, role, enabled, email_verified, created_at, updated_at\s+FROM users WHERE id = \?`
	existsUserByEmailQuery   = `SELECT COUNT\(1\) FROM users WHERE email = \?`
	insertUserQuery          = `(?s)INSERT INTO users \(email, password_hash, first_name, last_name, role, enabled, email_verified, created_at, updated_at\)\s+VALUES \(\?, \?, \?, \?, \?, \?, \?, \?, \?\)`
	markUserVerifiedQuery    = `UPDATE users SET email_verified = 1, enabled = 1, updated_at = \? WHERE id = \?`
	updateUserPasswordQuery  = `UPDATE users SET password_hash = \?, updated_at = \? WHERE id = \?`
	insertRefreshTokenQuery  = `(?s)INSERT INTO refresh_tokens \(user_id, token, expires_at, created_at, revoked\)\s+VALUES \(\?, \?, \?, \?, \?\)`
	findRefreshTokenQuery    = `(?s)SELECT id, user_id, token, expires_at, created_at, revoked\s+FROM refresh_tokens WHERE token = \?`
	findRefreshForUpdate     = `(?s)SELECT id, user_id, token, expires_at, created_at, revoked\s+FROM refresh_tokens WHERE token = \? FOR UPDATE`
	revokeRefreshTokenQuery  = `UPDATE refresh_tokens SET revoked = 1 WHERE token = \? AND revoked = 0`
	revokeRefreshByUserQuery = `UPDATE refresh_tokens SET revoked = 1 WHERE user_id = \? AND revoked = 0`
	deleteExpiredQuery       = `DELETE FROM refresh_tokens WHERE expires_at < \?`
	insertOneTimeTokenQuery  = `(?s)INSERT INTO one_time_tokens \(user_id, kind, token, expires_at, used, created_at\)\s+VALUES \(\?, \?, \?, \?, \?, \?\)`
	findOneTimeForUpdate     = `(?s)SELECT id, user_id, kind, token, expires_at, used, created_at\s+FROM one_time_tokens WHERE kind = \? AND token = \? FOR UPDATE`
	deleteOneTimeByUserQuery = `DELETE FROM one_time_tokens WHERE kind = \? AND user_id = \?`
	markOneTimeUsedQuery     = `UPDATE one_time_tokens SET used = 1 WHERE id = \? AND used = 0`
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type sentMail struct {
	to      string
	subject string
	body    string
}

type mailRecorder struct {
	sent []sentMail
	err  error
}

func (m *mailRecorder) Send(_ context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func newTestConfig() *config.Config {
	return &config.Config{
		JWTSecret:            "test-secret",
		JWTAccessTokenTTL:    15 * time.Minute,
		JWTRefreshTokenTTL:   7 * 24 * time.Hour,
		VerificationTokenTTL: 24 * time.Hour,
		ResetTokenTTL:        time.Hour,
		AppBaseURL:           "http://localhost:8080",
		MailFrom:             "no-reply@localhost",
		PasswordPolicy:       config.PasswordPolicy{MinLength: 8},
	}
}

type testServices struct {
	auth          *service.AuthService
	refreshTokens *service.RefreshTokenService
	verification  *service.EmailVerificationService
	resets        *service.PasswordResetService
	mail          *mailRecorder
	db            *sql.DB
}

func newServices(t *testing.T) (*testServices, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	cfg := newTestConfig()
	clock := func() time.Time { return testNow }

	userRepo := repository.NewUserRepository(db)
	refreshRepo := repository.NewRefreshTokenRepository(db)
	oneTimeRepo := repository.NewOneTimeTokenRepository(db)

	mail := &mailRecorder{}
	codec := service.NewTokenCodec(cfg.JWTSecret, cfg.JWTAccessTokenTTL)
	refreshTokens := service.NewRefreshTokenService(db, refreshRepo, cfg.JWTRefreshTokenTTL, service.WithRefreshClock(clock))
	verification := service.NewEmailVerificationService(db, oneTimeRepo, userRepo, mail, cfg, service.WithVerificationClock(clock))
	resets := service.NewPasswordResetService(db, oneTimeRepo, userRepo, mail, cfg, service.WithResetClock(clock))
	auth := service.NewAuthService(db, userRepo, codec, refreshTokens, verification, service.WithAuthClock(clock))

	svcs := &testServices{
		auth:          auth,
		refreshTokens: refreshTokens,
		verification:  verification,
		resets:        resets,
		mail:          mail,
		db:            db,
	}
	return svcs, mock, func() { _ = db.Close() }
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
