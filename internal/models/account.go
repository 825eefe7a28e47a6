package models

import (
	"time"

	"github.com/google/uuid"
)

// Seed admin identity, created at startup if no matching account exists.
const (
	SeedAdminEmail    = "admin@neologin.com"
	SeedAdminUsername = "admin"
	SeedAdminMobile   = "9999999999"
)

type Account struct {
	ID             uuid.UUID       `json:"id"`
	FirstName      string          `json:"first_name"`
	LastName       string          `json:"last_name"`
	DOB            string          `json:"dob"`
	Gender         string          `json:"gender"`
	Mobile         string          `json:"mobile"`
	Email          string          `json:"email"`
	Username       string          `json:"username"`
	PasswordHash   string          `json:"-"`
	IsAdmin        bool            `json:"is_admin"`
	Reported       bool            `json:"reported"`
	FailedAttempts int             `json:"-"`
	LockUntil      *time.Time      `json:"-"`
	Reset          *ResetChallenge `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ResetChallenge is an in-flight password reset. A nil challenge means no
// reset is pending; a non-nil one always carries both the code and its
// expiry, so a code without an expiry is unrepresentable.
type ResetChallenge struct {
	Code      string
	ExpiresAt time.Time
}

// Expired reports whether the challenge is past its expiry at now.
func (c *ResetChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
