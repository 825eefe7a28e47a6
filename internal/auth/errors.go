package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidCredentials is returned when the identifier matches no account.
// Deliberately generic: it does not reveal whether the identifier exists.
var ErrInvalidCredentials = errors.New("invalid email/mobile or password")

// ErrPasswordPolicy is returned when a password fails the strength rules.
var ErrPasswordPolicy = errors.New("password does not meet all requirements")

// ErrPasswordMismatch is returned when password and confirmation differ.
var ErrPasswordMismatch = errors.New("passwords do not match")

// ValidationError reports malformed input. Fields lists the form fields the
// client should clear before retrying.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string { return e.Message }

// DuplicateError reports a uniqueness violation. Fields lists the conflicting
// identity fields, most specific first.
type DuplicateError struct {
	Fields []string
}

func (e *DuplicateError) Error() string {
	switch {
	case len(e.Fields) == 2:
		return "mobile number and email ID already exist"
	case len(e.Fields) == 1:
		return fmt.Sprintf("%s already exists", e.Fields[0])
	default:
		return fmt.Sprintf("duplicate fields: %s", strings.Join(e.Fields, ", "))
	}
}

// WrongPasswordError is returned on a failed password comparison for an
// existing account, carrying the attempts left before a lock.
type WrongPasswordError struct {
	Remaining int
}

func (e *WrongPasswordError) Error() string {
	return fmt.Sprintf("invalid password, %d attempts remaining", e.Remaining)
}

// LockedError rejects an attempt against a locked account. JustLocked is set
// when this very attempt crossed the threshold.
type LockedError struct {
	Remaining  time.Duration
	JustLocked bool
}

func (e *LockedError) Error() string {
	if e.JustLocked {
		return fmt.Sprintf("too many failed attempts, account locked for %d minutes", int(e.Remaining.Minutes()))
	}
	m := int(e.Remaining.Minutes())
	s := int(e.Remaining.Seconds()) % 60
	return fmt.Sprintf("account locked, try again in %dm %ds", m, s)
}
