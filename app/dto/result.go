package dto

import "github.com/kalvora/accounts-auth/app/entity"

// UserInfo is the public projection of a user. It never carries the
// password hash.
type UserInfo struct {
	ID            uint64 `json:"id"`
	Email         string `json:"email"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
}

func NewUserInfo(user *entity.User) *UserInfo {
	return &UserInfo{
		ID:            user.ID,
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Role:          user.Role,
		EmailVerified: user.EmailVerified,
	}
}

// AuthResult is the credential bundle returned by register, login and
// refresh.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	User         *UserInfo
}
