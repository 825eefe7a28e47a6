package repository

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

// AccountRepo serves the account reads and admin-side mutations. The auth
// flows have their own repository with row-locked access paths.
type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccountRow(row)
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccountRow(row)
}

func (r *AccountRepo) List(ctx context.Context) ([]*models.Account, error) {
	return r.list(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC`)
}

// ListAdmins returns admin accounts only, for the admin oversight view.
func (r *AccountRepo) ListAdmins(ctx context.Context) ([]*models.Account, error) {
	return r.list(ctx, `SELECT `+accountColumns+` FROM accounts WHERE is_admin ORDER BY created_at DESC`)
}

// SetAdmin toggles the admin role. Demoting also clears the reported flag
// so a later re-promotion starts clean.
func (r *AccountRepo) SetAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts SET is_admin = $2, reported = CASE WHEN $2 THEN reported ELSE FALSE END, updated_at = now()
		WHERE id = $1
	`, id, isAdmin)
	return err
}

// SetReported flags or clears the admin-misconduct signal.
func (r *AccountRepo) SetReported(ctx context.Context, id uuid.UUID, reported bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE accounts SET reported = $2, updated_at = now() WHERE id = $1`, id, reported)
	return err
}

func (r *AccountRepo) UpdateUsername(ctx context.Context, id uuid.UUID, username string) error {
	_, err := r.pool.Exec(ctx, `UPDATE accounts SET username = $2, updated_at = now() WHERE id = $1`, id, username)
	return err
}

func (r *AccountRepo) UpdateName(ctx context.Context, id uuid.UUID, firstName, lastName string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts SET first_name = $2, last_name = $3, updated_at = now() WHERE id = $1
	`, id, firstName, lastName)
	return err
}

func (r *AccountRepo) UpdateGender(ctx context.Context, id uuid.UUID, gender string) error {
	_, err := r.pool.Exec(ctx, `UPDATE accounts SET gender = $2, updated_at = now() WHERE id = $1`, id, gender)
	return err
}

// UpdateRecovery replaces the recovery contact fields (email and mobile).
func (r *AccountRepo) UpdateRecovery(ctx context.Context, id uuid.UUID, email, mobile string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts SET email = $2, mobile = $3, updated_at = now() WHERE id = $1
	`, id, email, mobile)
	return err
}

// Delete removes the account. Task rows referencing it are left with
// dangling references on purpose; task history outlives its author.
func (r *AccountRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	return err
}

func (r *AccountRepo) list(ctx context.Context, query string, args ...any) ([]*models.Account, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Account
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func scanAccountRow(row pgx.Row) (*models.Account, error) {
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
