package models

import (
	"time"

	"github.com/google/uuid"
)

// Task status values. A task starts pending, an admin approves it, and a
// user accepts it; completion is tracked separately so an accepted task can
// move between the active and pending lists without losing its status.
const (
	TaskStatusPending  = "pending"
	TaskStatusApproved = "approved"
	TaskStatusAccepted = "accepted"
)

type Task struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Reward        string     `json:"reward"`
	Status        string     `json:"status"`
	CreatedBy     uuid.UUID  `json:"created_by"`
	AssignedTo    *uuid.UUID `json:"assigned_to,omitempty"`
	ActiveForUser bool       `json:"active_for_user"`
	Completed     bool       `json:"completed"`
	CreatedAt     time.Time  `json:"created_at"`
}
