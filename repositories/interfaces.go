package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/upb/taskboard/models"
)

// UserRepository handles account data operations
type UserRepository interface {
	// Create creates a new account. Returns ErrDuplicate when the
	// google_sub or email uniqueness constraint is violated.
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves an account by internal id
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByGoogleSub retrieves an account by its bound external subject id
	GetByGoogleSub(ctx context.Context, googleSub string) (*models.User, error)

	// GetByEmail retrieves an account by normalized email
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// BindGoogleSub binds an external subject id to an account that has
	// none yet. The WHERE guard refuses to overwrite an existing binding.
	BindGoogleSub(ctx context.Context, id uuid.UUID, googleSub, avatar string) error

	// UpdateProfile refreshes the mutable display attributes
	UpdateProfile(ctx context.Context, id uuid.UUID, name, avatar string) error
}

// TaskRepository handles task data operations
type TaskRepository interface {
	// Create creates a new task
	Create(ctx context.Context, task *models.Task) error

	// GetByID retrieves a task by id
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)

	// ListByUserID retrieves all tasks owned by an account
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Task, error)

	// Update updates a task's mutable fields. The owner reference is
	// immutable and never part of the update.
	Update(ctx context.Context, task *models.Task) error

	// Delete deletes a task
	Delete(ctx context.Context, id uuid.UUID) error
}
