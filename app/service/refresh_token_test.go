package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kalvora/accounts-auth/app/service"
)

func TestRefreshTokenService_Create(t *testing.T) {
	svcs, mock, cleanup := newServices(t)
	defer cleanup()

	mock.ExpectExec(insertRefreshTokenQuery).
		WithArgs(uint64(3), sqlmock.AnyArg(), testNow.Add(7*24*time.Hour), testNow, false).
		WillReturnResult(sqlmock.NewResult(1, 1))

	token, err := svcs.refreshTokens.Create(context.Background(), 3)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if token.Token == "" {
		t.Fatal("expected an opaque token string")
	}
	if token.Revoked {
		t.Fatal("new token must start active")
	}
	expectationsMet(t, mock)
}

func TestRefreshTokenService_Validate_NotFound(t *testing.T) {
	svcs, mock, cleanup := newServices(t)
	defer cleanup()

	mock.ExpectQuery(findRefreshTokenQuery).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(refreshTokenColumns))

	_, err := svcs.refreshTokens.Validate(context.Background(), "missing")
	if !errors.Is(err, service.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestRefreshTokenService_Validate_Revoked(t *testing.T) {
	svcs, mock, cleanup := newServices(t)
	defer cleanup()

	mock.ExpectQuery(findRefreshTokenQuery).
		WithArgs("revoked").
		WillReturnRows(sqlmock.NewRows(refreshTokenColumns).AddRow(
			uint64(1), uint64(3), "revoked", testNow.Add(time.Hour), testNow, true,
		))

	_, err := svcs.refreshTokens.Validate(context.Background(), "revoked")
	if !errors.Is(err, service.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestRefreshTokenService_Validate_Expired(t *testing.T) {
	svcs, mock, cleanup := newServices(t)
	defer cleanup()

	mock.ExpectQuery(findRefreshTokenQuery).
		WithArgs("stale").
		WillReturnRows(sqlmock.NewRows(refreshTokenColumns).AddRow(
			uint64(1), uint64(3), "stale", testNow.Add(-time.Minute), testNow.Add(-time.Hour), false,
		))

	_, err := svcs.refreshTokens.Validate(context.Background(), "stale")
	if !errors.Is(err, service.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestRefreshTokenService_Validate_Active(t *testing.T) {
	svcs, mock, cleanup := newServices(t)
	defer cleanup()

	mock.ExpectQuery(findRefreshTokenQuery).
		WithArgs("live").
		WillReturnRows(sqlmock.NewRows(refreshTokenColumns).AddRow(
			uint64(1), uint64(3), "live", testNow.Add(time.Hour), testNow, false,
		))

	token, err := svcs.refreshTokens.Validate(context.Background(), "live")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if token.UserID != 3 {
		t.Fatalf("unexpected token owner: %d", token.UserID)
	}
	expectationsMet(t, mock)
}

func TestRefreshTokenService_Revoke_UnknownTokenIsNoop(t *testing.T) {
	svcs, mock, cleanup := newServices(t)
	defer cleanup()

	mock.ExpectExec(revokeRefreshTokenQuery).
		WithArgs("unknown").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := svcs.refreshTokens.Revoke(context.Background(), "unknown"); err != nil {
		t.Fatalf("revoking an unknown token must not fail: %v", err)
	}
	expectationsMet(t, mock)
}

func TestRefreshTokenService_RevokeAll(t *testing.T) {
	svcs, mock, cleanup := newServices(t)
	defer cleanup()

	mock.ExpectExec(revokeRefreshByUserQuery).
		WithArgs(uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	if err := svcs.refreshTokens.RevokeAll(context.Background(), 3); err != nil {
		t.Fatalf("revoke all failed: %v", err)
	}
	expectationsMet(t, mock)
}

func TestRefreshTokenService_DeleteExpired(t *testing.T) {
	svcs, mock, cleanup := newServices(t)
	defer cleanup()

	mock.ExpectExec(deleteExpiredQuery).
		WithArgs(testNow).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := svcs.refreshTokens.DeleteExpired(context.Background()); err != nil {
		t.Fatalf("delete expired failed: %v", err)
	}
	expectationsMet(t, mock)
}
