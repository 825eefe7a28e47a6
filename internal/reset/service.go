// Package reset implements the OTP-based password reset flow. Reset
// requests share the login lockout state: a locked account cannot request
// a code.
package reset

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/neologin/backend/internal/auth"
	"github.com/neologin/backend/internal/lockout"
	"github.com/neologin/backend/internal/mailer"
	"github.com/neologin/backend/internal/models"
)

// OTPTTL is how long an issued code stays valid.
const OTPTTL = 5 * time.Minute

// ErrUserNotFound is returned when no account has the given email. The
// reset flow reveals account existence; registration already does through
// its duplicate errors.
var ErrUserNotFound = errors.New("user not found")

// ErrInvalidOTP is returned when the submitted code does not match the
// pending challenge, or no challenge is pending. The challenge, if any,
// stays intact for a retry.
var ErrInvalidOTP = errors.New("invalid OTP")

// ErrExpiredOTP is returned when the pending code is past its expiry. The
// challenge is cleared: the caller must request a fresh code.
var ErrExpiredOTP = errors.New("OTP expired")

// Store is the persistence surface the reset service needs. The auth
// repository satisfies it.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetByEmailForUpdate(ctx context.Context, tx pgx.Tx, email string) (*models.Account, error)
	UpdateAttemptState(ctx context.Context, tx pgx.Tx, id uuid.UUID, attempts int, lockUntil *time.Time) error
	SetResetChallenge(ctx context.Context, tx pgx.Tx, id uuid.UUID, c *models.ResetChallenge) error
	ClearResetChallenge(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	UpdatePasswordHash(ctx context.Context, tx pgx.Tx, id uuid.UUID, hash string) error
}

// EnqueueOTPMailTxFunc inserts the delivery job in the same transaction
// that persists the challenge, so a code that fails to persist is never
// delivered.
type EnqueueOTPMailTxFunc func(ctx context.Context, tx pgx.Tx, args mailer.SendOTPEmailArgs) error

type Service interface {
	RequestReset(ctx context.Context, email string) (*models.ResetChallenge, error)
	VerifyAndReset(ctx context.Context, email, submittedOTP, newPassword, confirmPassword string) error
}

type service struct {
	store       Store
	enqueueMail EnqueueOTPMailTxFunc
	now         func() time.Time
}

func NewService(store Store, enqueueMail EnqueueOTPMailTxFunc) *service {
	return &service{store: store, enqueueMail: enqueueMail, now: time.Now}
}

var _ Service = (*service)(nil)

// RequestReset issues a fresh 6-digit challenge for the account with the
// given email and hands it to the delivery queue. An expired lock is
// cleared on the way through; an active lock rejects the request.
func (s *service) RequestReset(ctx context.Context, email string) (*models.ResetChallenge, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	acc, err := s.store.GetByEmailForUpdate(ctx, tx, email)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrUserNotFound
	}

	now := s.now()
	state := lockout.Evaluate(acc.FailedAttempts, acc.LockUntil, now)
	if locked, remaining := state.Locked(now); locked {
		return nil, &auth.LockedError{Remaining: remaining}
	}
	if acc.LockUntil != nil {
		// The stored lock has lapsed; persist the lazy unlock.
		attempts, lockUntil := state.Persist()
		if err := s.store.UpdateAttemptState(ctx, tx, acc.ID, attempts, lockUntil); err != nil {
			return nil, err
		}
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	challenge := &models.ResetChallenge{Code: code, ExpiresAt: now.Add(OTPTTL)}
	if err := s.store.SetResetChallenge(ctx, tx, acc.ID, challenge); err != nil {
		return nil, err
	}
	if err := s.enqueueMail(ctx, tx, mailer.SendOTPEmailArgs{
		Email:     acc.Email,
		Code:      code,
		ExpiresAt: challenge.ExpiresAt,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return challenge, nil
}

// VerifyAndReset checks the submitted values in a fixed order: code
// equality, expiry, password policy, confirmation match. Only the expiry
// failure consumes the challenge.
func (s *service) VerifyAndReset(ctx context.Context, email, submittedOTP, newPassword, confirmPassword string) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	acc, err := s.store.GetByEmailForUpdate(ctx, tx, email)
	if err != nil {
		return err
	}
	if acc == nil {
		return ErrUserNotFound
	}
	if acc.Reset == nil || acc.Reset.Code != submittedOTP {
		return ErrInvalidOTP
	}
	if acc.Reset.Expired(s.now()) {
		if err := s.store.ClearResetChallenge(ctx, tx, acc.ID); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		return ErrExpiredOTP
	}
	if !auth.ValidPassword(newPassword) {
		return auth.ErrPasswordPolicy
	}
	if newPassword != confirmPassword {
		return auth.ErrPasswordMismatch
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePasswordHash(ctx, tx, acc.ID, string(hash)); err != nil {
		return err
	}
	if err := s.store.ClearResetChallenge(ctx, tx, acc.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// generateCode draws a uniformly random 6-digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
