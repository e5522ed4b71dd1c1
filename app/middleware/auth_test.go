package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/kalvora/accounts-auth/app/entity"
	"github.com/kalvora/accounts-auth/app/middleware"
	"github.com/kalvora/accounts-auth/app/service"
)

type stubValidator struct {
	claims *service.Claims
	err    error
}

func (s *stubValidator) ValidateAccessToken(string) (*service.Claims, error) {
	return s.claims, s.err
}

func invoke(t *testing.T, m *middleware.AuthMiddleware, authHeader string) (*httptest.ResponseRecorder, echo.Context, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	err := m.RequireAuth(next)(c)
	return rec, c, err
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	m := middleware.NewAuthMiddleware(&stubValidator{})

	rec, _, err := invoke(t, m, "")
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuth_MalformedHeader(t *testing.T) {
	m := middleware.NewAuthMiddleware(&stubValidator{})

	rec, _, err := invoke(t, m, "Basic abc123")
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	m := middleware.NewAuthMiddleware(&stubValidator{err: errors.New("bad token")})

	rec, _, err := invoke(t, m, "Bearer bad-token")
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuth_ValidTokenSetsContext(t *testing.T) {
	claims := &service.Claims{UserID: 7, Role: entity.RoleUser}
	claims.Subject = "jane@example.com"
	m := middleware.NewAuthMiddleware(&stubValidator{claims: claims})

	rec, c, err := invoke(t, m, "Bearer good-token")
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := c.Get("user_id"); got != uint64(7) {
		t.Fatalf("expected user_id 7, got %v", got)
	}
	if got := c.Get("user_email"); got != "jane@example.com" {
		t.Fatalf("expected user_email, got %v", got)
	}
	if got := c.Get("user_role"); got != entity.RoleUser {
		t.Fatalf("expected user_role USER, got %v", got)
	}
}

func TestRequireAdmin(t *testing.T) {
	m := middleware.NewAuthMiddleware(&stubValidator{})
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_role", entity.RoleUser)
	if err := m.RequireAdmin(next)(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for USER role, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.Set("user_role", entity.RoleAdmin)
	if err := m.RequireAdmin(next)(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for ADMIN role, got %d", rec.Code)
	}
}
