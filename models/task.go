package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the workflow state of a task
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusDone       TaskStatus = "done"
)

// IsValid reports whether the status is a member of the enumerated set
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Task represents an owned resource. UserID is the owning account and is
// immutable once set; every read and mutation is gated on it.
type Task struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	UserID      uuid.UUID  `json:"user" db:"user_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Deadline    time.Time  `json:"deadline" db:"deadline"`
	AssignedTo  string     `json:"assignedTo" db:"assigned_to"`
	Status      TaskStatus `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Task model
func (Task) TableName() string {
	return "tasks"
}

// NewTask creates a new Task owned by the given account
func NewTask(userID uuid.UUID, title, description string, deadline time.Time, assignedTo string, status TaskStatus) *Task {
	if status == "" {
		status = StatusPending
	}
	now := time.Now().UTC()
	return &Task{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Deadline:    deadline,
		AssignedTo:  assignedTo,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
