// Package tasks implements the marketplace workflow around the security
// core: users post tasks, admins approve them, users accept and track them.
package tasks

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/neologin/backend/internal/models"
)

var (
	ErrNotFound     = errors.New("task not found")
	ErrNotPending   = errors.New("task is not awaiting approval")
	ErrNotAvailable = errors.New("task is not open for acceptance")
	ErrNotAssignee  = errors.New("task is not assigned to you")
	ErrCompleted    = errors.New("task is already completed")
)

// Store is the persistence surface the task service needs. TaskRepo
// satisfies it.
type Store interface {
	Create(ctx context.Context, t *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Update(ctx context.Context, t *models.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListAvailable(ctx context.Context) ([]*models.Task, error)
	ListPendingApproval(ctx context.Context) ([]*models.Task, error)
	ListAll(ctx context.Context) ([]*models.Task, error)
	GetActiveFor(ctx context.Context, userID uuid.UUID) (*models.Task, error)
	ListPendingFor(ctx context.Context, userID uuid.UUID) ([]*models.Task, error)
	ListCompletedFor(ctx context.Context, userID uuid.UUID) ([]*models.Task, error)
	DeactivateActiveFor(ctx context.Context, userID uuid.UUID) error
}

// TaskLists groups a user's assigned tasks by tracking state.
type TaskLists struct {
	Active    *models.Task
	Pending   []*models.Task
	Completed []*models.Task
}

type Service interface {
	Post(ctx context.Context, creatorID uuid.UUID, title, description, reward string) (*models.Task, error)
	Approve(ctx context.Context, taskID uuid.UUID) error
	Accept(ctx context.Context, userID, taskID uuid.UUID) error
	Activate(ctx context.Context, userID, taskID uuid.UUID) error
	Complete(ctx context.Context, userID, taskID uuid.UUID) error
	Assign(ctx context.Context, taskID, userID uuid.UUID) error
	Remove(ctx context.Context, taskID uuid.UUID) error
	Available(ctx context.Context) ([]*models.Task, error)
	PendingApproval(ctx context.Context) ([]*models.Task, error)
	All(ctx context.Context) ([]*models.Task, error)
	Mine(ctx context.Context, userID uuid.UUID) (*TaskLists, error)
}

type service struct {
	store Store
}

func NewService(store Store) *service {
	return &service{store: store}
}

var _ Service = (*service)(nil)

// Post creates a task in the pending state, waiting for admin approval.
func (s *service) Post(ctx context.Context, creatorID uuid.UUID, title, description, reward string) (*models.Task, error) {
	if title == "" || description == "" || reward == "" {
		return nil, errors.New("title, description and reward are required")
	}
	t := &models.Task{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Reward:      reward,
		Status:      models.TaskStatusPending,
		CreatedBy:   creatorID,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Approve moves a pending task into the marketplace.
func (s *service) Approve(ctx context.Context, taskID uuid.UUID) error {
	t, err := s.store.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrNotFound
	}
	if t.Status != models.TaskStatusPending {
		return ErrNotPending
	}
	t.Status = models.TaskStatusApproved
	return s.store.Update(ctx, t)
}

// Accept assigns an approved, unassigned task to the user. The task lands
// in the pending list; the user activates it explicitly.
func (s *service) Accept(ctx context.Context, userID, taskID uuid.UUID) error {
	t, err := s.store.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrNotFound
	}
	if t.Status != models.TaskStatusApproved || t.AssignedTo != nil {
		return ErrNotAvailable
	}
	t.Status = models.TaskStatusAccepted
	t.AssignedTo = &userID
	t.ActiveForUser = false
	t.Completed = false
	return s.store.Update(ctx, t)
}

// Activate makes the given task the user's single active task, parking
// whatever was active before.
func (s *service) Activate(ctx context.Context, userID, taskID uuid.UUID) error {
	t, err := s.store.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrNotFound
	}
	if t.AssignedTo == nil || *t.AssignedTo != userID {
		return ErrNotAssignee
	}
	if t.Completed {
		return ErrCompleted
	}
	if t.ActiveForUser {
		return nil
	}
	if err := s.store.DeactivateActiveFor(ctx, userID); err != nil {
		return err
	}
	t.ActiveForUser = true
	return s.store.Update(ctx, t)
}

// Complete marks the user's assigned task done and drops it from the
// active slot.
func (s *service) Complete(ctx context.Context, userID, taskID uuid.UUID) error {
	t, err := s.store.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrNotFound
	}
	if t.AssignedTo == nil || *t.AssignedTo != userID {
		return ErrNotAssignee
	}
	if t.Completed {
		return ErrCompleted
	}
	t.Completed = true
	t.ActiveForUser = false
	return s.store.Update(ctx, t)
}

// Assign is the admin path: hand an approved task directly to a user.
func (s *service) Assign(ctx context.Context, taskID, userID uuid.UUID) error {
	t, err := s.store.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrNotFound
	}
	if t.Status != models.TaskStatusApproved || t.AssignedTo != nil {
		return ErrNotAvailable
	}
	t.Status = models.TaskStatusAccepted
	t.AssignedTo = &userID
	t.ActiveForUser = false
	t.Completed = false
	return s.store.Update(ctx, t)
}

// Remove is the admin path for taking a task down entirely, whatever state
// it is in.
func (s *service) Remove(ctx context.Context, taskID uuid.UUID) error {
	t, err := s.store.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrNotFound
	}
	return s.store.Delete(ctx, taskID)
}

func (s *service) Available(ctx context.Context) ([]*models.Task, error) {
	return s.store.ListAvailable(ctx)
}

func (s *service) PendingApproval(ctx context.Context) ([]*models.Task, error) {
	return s.store.ListPendingApproval(ctx)
}

func (s *service) All(ctx context.Context) ([]*models.Task, error) {
	return s.store.ListAll(ctx)
}

func (s *service) Mine(ctx context.Context, userID uuid.UUID) (*TaskLists, error) {
	active, err := s.store.GetActiveFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	pending, err := s.store.ListPendingFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	completed, err := s.store.ListCompletedFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &TaskLists{Active: active, Pending: pending, Completed: completed}, nil
}
