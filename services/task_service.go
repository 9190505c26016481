package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upb/taskboard/models"
	"github.com/upb/taskboard/repositories"
	"go.uber.org/zap"
)

// TaskInput carries the client-supplied task fields. The owner is never part
// of the input; it always comes from the authenticated principal.
type TaskInput struct {
	Title       string    `json:"title" validate:"required,min=3,max=100"`
	Description string    `json:"description" validate:"required,min=10,max=500"`
	Deadline    time.Time `json:"deadline" validate:"required"`
	AssignedTo  string    `json:"assignedTo" validate:"required"`
	Status      string    `json:"status" validate:"omitempty,oneof=pending in-progress done"`
}

// TaskService implements task CRUD with per-resource ownership enforcement.
// A missing task is reported as not-found before ownership is ever
// evaluated, so existence never leaks inconsistently; any other mismatch
// denies.
type TaskService struct {
	tasks  repositories.TaskRepository
	logger *zap.Logger
}

// NewTaskService creates a new task service
func NewTaskService(tasks repositories.TaskRepository, logger *zap.Logger) *TaskService {
	return &TaskService{
		tasks:  tasks,
		logger: logger,
	}
}

// List returns the principal's tasks
func (s *TaskService) List(ctx context.Context, principal uuid.UUID) ([]*models.Task, error) {
	tasks, err := s.tasks.ListByUserID(ctx, principal)
	if err != nil {
		return nil, WrapInternal("failed to list tasks", err)
	}
	return tasks, nil
}

// Create creates a task owned by the principal
func (s *TaskService) Create(ctx context.Context, principal uuid.UUID, input TaskInput) (*models.Task, error) {
	task := models.NewTask(
		principal,
		input.Title,
		input.Description,
		input.Deadline,
		input.AssignedTo,
		models.TaskStatus(input.Status),
	)

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, WrapInternal("failed to create task", err)
	}

	s.logger.Debug("task created",
		zap.String("task_id", task.ID.String()),
		zap.String("user_id", principal.String()))
	return task, nil
}

// Get returns a single task after the ownership check
func (s *TaskService) Get(ctx context.Context, principal, taskID uuid.UUID) (*models.Task, error) {
	return s.authorize(ctx, principal, taskID)
}

// Update applies input to a task after the ownership check. The owner
// reference is immutable.
func (s *TaskService) Update(ctx context.Context, principal, taskID uuid.UUID, input TaskInput) (*models.Task, error) {
	task, err := s.authorize(ctx, principal, taskID)
	if err != nil {
		return nil, err
	}

	task.Title = input.Title
	task.Description = input.Description
	task.Deadline = input.Deadline
	task.AssignedTo = input.AssignedTo
	if input.Status != "" {
		task.Status = models.TaskStatus(input.Status)
	}
	task.UpdatedAt = time.Now().UTC()

	if err := s.tasks.Update(ctx, task); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, WrapInternal("failed to update task", err)
	}

	return task, nil
}

// Delete removes a task after the ownership check
func (s *TaskService) Delete(ctx context.Context, principal, taskID uuid.UUID) error {
	if _, err := s.authorize(ctx, principal, taskID); err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrTaskNotFound
		}
		return WrapInternal("failed to delete task", err)
	}

	s.logger.Debug("task deleted",
		zap.String("task_id", taskID.String()),
		zap.String("user_id", principal.String()))
	return nil
}

// authorize fetches the task and enforces ownership. Not-found is decided
// first; the ownership rule is allow only when the owner matches, deny
// everything else.
func (s *TaskService) authorize(ctx context.Context, principal, taskID uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, WrapInternal("failed to get task", err)
	}

	if principal == uuid.Nil || task.UserID != principal {
		s.logger.Warn("task access denied",
			zap.String("task_id", taskID.String()),
			zap.String("principal", principal.String()))
		return nil, ErrForbidden
	}

	return task, nil
}
