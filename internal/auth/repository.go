package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neologin/backend/internal/models"
)

const accountColumns = `id, first_name, last_name, dob, gender, mobile, email, username,
		password_hash, is_admin, reported, failed_attempts, lock_until, otp_code, otp_expires_at,
		created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Begin starts a transaction on the underlying pool.
func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Create inserts a new account. Timestamps are filled in by the database.
func (r *Repository) Create(ctx context.Context, a *models.Account) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, first_name, last_name, dob, gender, mobile, email, username, password_hash, is_admin, reported, failed_attempts, lock_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, NULL)
		RETURNING created_at, updated_at
	`, a.ID, a.FirstName, a.LastName, a.DOB, a.Gender, a.Mobile, a.Email, a.Username, a.PasswordHash, a.IsAdmin, a.Reported).Scan(&a.CreatedAt, &a.UpdatedAt)
}

// GetByEmail returns the account with the given email, or nil if none exists.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
}

// GetByIdentifier matches email first, then mobile. Uniqueness of both
// fields guarantees at most one account can match.
func (r *Repository) GetByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	return r.getOne(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE email = $1 OR mobile = $1
		ORDER BY (email = $1) DESC LIMIT 1
	`, identifier)
}

// GetByIdentifierForUpdate is GetByIdentifier under a row lock. Call within
// a transaction; concurrent attempts against the same account serialize here.
func (r *Repository) GetByIdentifierForUpdate(ctx context.Context, tx pgx.Tx, identifier string) (*models.Account, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE email = $1 OR mobile = $1
		ORDER BY (email = $1) DESC LIMIT 1 FOR UPDATE
	`, identifier)
	return scanAccount(row)
}

// GetByEmailForUpdate locks the account row for the reset flow.
func (r *Repository) GetByEmailForUpdate(ctx context.Context, tx pgx.Tx, email string) (*models.Account, error) {
	row := tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1 FOR UPDATE`, email)
	return scanAccount(row)
}

// ExistsEmail, ExistsMobile and ExistsUsername support the duplicate-report
// priority at registration. The unique indexes remain the backstop for races.
func (r *Repository) ExistsEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1)`, email)
}

func (r *Repository) ExistsMobile(ctx context.Context, mobile string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE mobile = $1)`, mobile)
}

func (r *Repository) ExistsUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE username = $1)`, username)
}

// UpdateAttemptState persists the lockout counter and lock deadline.
// Call within the transaction that read the row for update.
func (r *Repository) UpdateAttemptState(ctx context.Context, tx pgx.Tx, id uuid.UUID, attempts int, lockUntil *time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE accounts SET failed_attempts = $2, lock_until = $3, updated_at = now() WHERE id = $1
	`, id, attempts, lockUntil)
	return err
}

// UpdatePasswordHash replaces the stored hash (successful reset, or the
// one-time rehash of a legacy plaintext secret).
func (r *Repository) UpdatePasswordHash(ctx context.Context, tx pgx.Tx, id uuid.UUID, hash string) error {
	_, err := tx.Exec(ctx, `
		UPDATE accounts SET password_hash = $2, updated_at = now() WHERE id = $1
	`, id, hash)
	return err
}

// SetResetChallenge stores the OTP code and expiry for a pending reset.
func (r *Repository) SetResetChallenge(ctx context.Context, tx pgx.Tx, id uuid.UUID, c *models.ResetChallenge) error {
	_, err := tx.Exec(ctx, `
		UPDATE accounts SET otp_code = $2, otp_expires_at = $3, updated_at = now() WHERE id = $1
	`, id, c.Code, c.ExpiresAt)
	return err
}

// ClearResetChallenge drops any pending OTP. Both columns go together.
func (r *Repository) ClearResetChallenge(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE accounts SET otp_code = NULL, otp_expires_at = NULL, updated_at = now() WHERE id = $1
	`, id)
	return err
}

// RevokeToken records a logout. The row is only needed until the token's
// natural expiry; expired rows are ignored and can be purged at any time.
func (r *Repository) RevokeToken(ctx context.Context, jti uuid.UUID, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, expiresAt)
	return err
}

// IsTokenRevoked reports whether the token id was revoked by a logout.
func (r *Repository) IsTokenRevoked(ctx context.Context, jti uuid.UUID) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti)
}

func (r *Repository) getOne(ctx context.Context, query string, args ...any) (*models.Account, error) {
	row := r.pool.QueryRow(ctx, query, args...)
	return scanAccount(row)
}

func (r *Repository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// scanAccount maps a row onto an Account. Returns (nil, nil) when no row
// matched. The OTP columns collapse into a ResetChallenge only when both
// are present; a half-set pair never escapes the repository.
func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	var otpCode *string
	var otpExpires *time.Time
	err := row.Scan(&a.ID, &a.FirstName, &a.LastName, &a.DOB, &a.Gender, &a.Mobile, &a.Email, &a.Username,
		&a.PasswordHash, &a.IsAdmin, &a.Reported, &a.FailedAttempts, &a.LockUntil, &otpCode, &otpExpires,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if otpCode != nil && otpExpires != nil {
		a.Reset = &models.ResetChallenge{Code: *otpCode, ExpiresAt: *otpExpires}
	}
	return &a, nil
}
