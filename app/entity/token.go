package entity

import "time"

type RefreshToken struct {
	ID        uint64
	UserID    uint64
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// TokenKind discriminates the two single-use token lifecycles that share
// the one_time_tokens table.
type TokenKind string

const (
	TokenKindEmailVerification TokenKind = "email_verification"
	TokenKindPasswordReset     TokenKind = "password_reset"
)

type OneTimeToken struct {
	ID        uint64
	UserID    uint64
	Kind      TokenKind
	Token     string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}
