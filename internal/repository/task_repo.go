package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neologin/backend/internal/models"
)

const taskColumns = `id, title, description, reward, status, created_by, assigned_to,
	active_for_user, completed, created_at`

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

func (r *TaskRepo) Create(ctx context.Context, t *models.Task) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO tasks (id, title, description, reward, status, created_by, assigned_to, active_for_user, completed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, t.ID, t.Title, t.Description, t.Reward, t.Status, t.CreatedBy, t.AssignedTo, t.ActiveForUser, t.Completed).Scan(&t.CreatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTaskRow(row)
}

func (r *TaskRepo) Update(ctx context.Context, t *models.Task) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tasks SET title = $2, description = $3, reward = $4, status = $5, assigned_to = $6, active_for_user = $7, completed = $8
		WHERE id = $1
	`, t.ID, t.Title, t.Description, t.Reward, t.Status, t.AssignedTo, t.ActiveForUser, t.Completed)
	return err
}

func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return err
}

// ListAvailable returns approved, unassigned tasks open for acceptance.
func (r *TaskRepo) ListAvailable(ctx context.Context) ([]*models.Task, error) {
	return r.list(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE status = $1 AND assigned_to IS NULL ORDER BY created_at DESC
	`, models.TaskStatusApproved)
}

// ListPendingApproval returns tasks awaiting an admin decision.
func (r *TaskRepo) ListPendingApproval(ctx context.Context) ([]*models.Task, error) {
	return r.list(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE status = $1 ORDER BY created_at DESC
	`, models.TaskStatusPending)
}

func (r *TaskRepo) ListAll(ctx context.Context) ([]*models.Task, error) {
	return r.list(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC`)
}

// GetActiveFor returns the user's currently active task, or nil.
func (r *TaskRepo) GetActiveFor(ctx context.Context, userID uuid.UUID) (*models.Task, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE assigned_to = $1 AND active_for_user AND NOT completed LIMIT 1
	`, userID)
	return scanTaskRow(row)
}

// ListPendingFor returns accepted-but-inactive, uncompleted tasks.
func (r *TaskRepo) ListPendingFor(ctx context.Context, userID uuid.UUID) ([]*models.Task, error) {
	return r.list(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE assigned_to = $1 AND NOT active_for_user AND NOT completed ORDER BY created_at DESC
	`, userID)
}

func (r *TaskRepo) ListCompletedFor(ctx context.Context, userID uuid.UUID) ([]*models.Task, error) {
	return r.list(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE assigned_to = $1 AND completed ORDER BY created_at DESC
	`, userID)
}

// DeactivateActiveFor clears the active flag on whatever task the user has
// active, if any.
func (r *TaskRepo) DeactivateActiveFor(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tasks SET active_for_user = FALSE
		WHERE assigned_to = $1 AND active_for_user AND NOT completed
	`, userID)
	return err
}

func (r *TaskRepo) list(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func scanTaskRow(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Reward, &t.Status, &t.CreatedBy, &t.AssignedTo,
		&t.ActiveForUser, &t.Completed, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
