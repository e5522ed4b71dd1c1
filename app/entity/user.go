package entity

import "time"

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type User struct {
	ID            uint64
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	Role          string
	Enabled       bool
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
