package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/kalvora/accounts-auth/app/dto"
	dtohttp "github.com/kalvora/accounts-auth/app/dto/http"
	"github.com/kalvora/accounts-auth/app/service"
	"github.com/kalvora/accounts-auth/config"
)

type authOrchestrator interface {
	Register(ctx context.Context, email, password, firstName, lastName string) (*dto.AuthResult, error)
	Login(ctx context.Context, email, password string) (*dto.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.AuthResult, error)
}

type emailVerifier interface {
	VerifyEmail(ctx context.Context, token string) error
}

type passwordResetter interface {
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type AuthController struct {
	auth     authOrchestrator
	verifier emailVerifier
	resets   passwordResetter
	policy   config.PasswordPolicy
}

func NewAuthController(auth authOrchestrator, verifier emailVerifier, resets passwordResetter, policy config.PasswordPolicy) *AuthController {
	return &AuthController{
		auth:     auth,
		verifier: verifier,
		resets:   resets,
		policy:   policy,
	}
}

func (c *AuthController) Register(ctx echo.Context) error {
	var req dtohttp.RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dtohttp.ErrorResponse{Error: "invalid request body"})
	}

	if req.Email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		return ctx.JSON(http.StatusBadRequest, dtohttp.ErrorResponse{Error: "email, password, first_name and last_name are required"})
	}
	if err := c.policy.Validate(req.Password); err != nil {
		return ctx.JSON(http.StatusBadRequest, dtohttp.ErrorResponse{Error: err.Error()})
	}

	result, err := c.auth.Register(ctx.Request().Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		if errors.Is(err, service.ErrEmailExists) {
			return ctx.JSON(http.StatusConflict, dtohttp.ErrorResponse{Error: "email already exists"})
		}
		return internalError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, authResponse(result))
}

func (c *AuthController) Login(ctx echo.Context) error {
	var req dtohttp.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dtohttp.ErrorResponse{Error: "invalid request body"})
	}

	if req.Email == "" || req.Password == "" {
		return ctx.JSON(http.StatusBadRequest, dtohttp.ErrorResponse{Error: "email and password are required"})
	}

	result, err := c.auth.Login(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			return ctx.JSON(http.StatusUnauthorized, dtohttp.ErrorResponse{Error: "invalid email or password"})
		case errors.Is(err, service.ErrAccountDisabled):
			return ctx.JSON(http.StatusUnauthorized, dtohttp.ErrorResponse{Error: "your account has been disabled"})
		case errors.Is(err, service.ErrEmailNotVerified):
			return ctx.JSON(http.StatusUnauthorized, dtohttp.ErrorResponse{Error: "email not verified, please check your email"})
		}
		return internalError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, authResponse(result))
}

func (c *AuthController) Refresh(ctx echo.Context) error {
	var req dtohttp.RefreshTokenRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dtohttp.ErrorResponse{Error: "invalid request body"})
	}

	if req.RefreshToken == "" {
		return ctx.JSON(http.StatusBadRequest, dtohttp.ErrorResponse{Error: "refresh_token is required"})
	}

	result, err := c.auth.Refresh(ctx.Request().Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) || errors.Is(err, service.ErrTokenExpired) {
			return ctx.JSON(http.StatusUnauthorized, dtohttp.ErrorResponse{Error: "invalid or expired refresh token"})
		}
		return internalError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, authResponse(result))
}

func (c *AuthController) VerifyEmail(ctx echo.Context) error {
	token := ctx.QueryParam("token")
	if token == "" {
		return ctx.JSON(http.StatusBadRequest, dtohttp.ErrorResponse{Error: "token is required"})
	}

	if err := c.verifier.VerifyEmail(ctx.Request().Context(), token); err != nil {
		if resp := tokenErrorResponse(ctx, err); resp != nil {
			return resp
		}
		return internalError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, dtohttp.MessageResponse{
		Message: "email verified successfully, you can now log in",
	})
}

func (c *AuthController) ForgotPassword(ctx echo.Context) error {
	var req dtohttp.ForgotPasswordRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dtohttp.ErrorResponse{Error: "invalid request body"})
	}

	if req.Email == "" {
		return ctx.JSON(http.StatusBadRequest, dtohttp.ErrorResponse{Error: "email is required"})
	}

	if err := c.resets.RequestReset(ctx.Request().Context(), req.Email); err != nil {
		return internalError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, dtohttp.MessageResponse{
		Message: "if the email exists, a password reset link has been sent",
	})
}

func (c *AuthController) ResetPassword(ctx echo.Context) error {
	var req dtohttp.ResetPasswordRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, dtohttp.ErrorResponse{Error: "invalid request body"})
	}

	if req.Token == "" || req.NewPassword == "" {
		return ctx.JSON(http.StatusBadRequest, dtohttp.ErrorResponse{Error: "token and new_password are required"})
	}
	if err := c.policy.Validate(req.NewPassword); err != nil {
		return ctx.JSON(http.StatusBadRequest, dtohttp.ErrorResponse{Error: err.Error()})
	}

	if err := c.resets.ResetPassword(ctx.Request().Context(), req.Token, req.NewPassword); err != nil {
		if resp := tokenErrorResponse(ctx, err); resp != nil {
			return resp
		}
		return internalError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, dtohttp.MessageResponse{
		Message: "password reset successfully, you can now log in with your new password",
	})
}

func (c *AuthController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, dtohttp.MessageResponse{
		Message: "auth service is running",
	})
}

func authResponse(result *dto.AuthResult) dtohttp.AuthResponse {
	return dtohttp.AuthResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
		User:         result.User,
	}
}

// tokenErrorResponse maps the stateful-token error kinds; it returns nil
// for errors it does not recognize.
func tokenErrorResponse(ctx echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidToken):
		return ctx.JSON(http.StatusUnauthorized, dtohttp.ErrorResponse{Error: "invalid token"})
	case errors.Is(err, service.ErrTokenExpired):
		return ctx.JSON(http.StatusUnauthorized, dtohttp.ErrorResponse{Error: "token has expired"})
	case errors.Is(err, service.ErrTokenUsed):
		return ctx.JSON(http.StatusBadRequest, dtohttp.ErrorResponse{Error: "token has already been used"})
	}
	return nil
}

func internalError(ctx echo.Context, err error) error {
	logrus.WithError(err).Error("request failed")
	return ctx.JSON(http.StatusInternalServerError, dtohttp.ErrorResponse{Error: "internal server error"})
}
