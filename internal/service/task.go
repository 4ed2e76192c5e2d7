package service

import (
	"context"
	"strings"

	"github.com/hikari/taskboard/internal/domain"
)

// TaskRepo defines the task data access interface consumed by TaskService.
type TaskRepo interface {
	ListByOwner(ctx context.Context, ownerID int64) ([]domain.Task, error)
	FindByOwner(ctx context.Context, ownerID, id int64) (*domain.Task, error)
	Create(ctx context.Context, task domain.Task) (*domain.Task, error)
	Update(ctx context.Context, task domain.Task) (*domain.Task, error)
	Delete(ctx context.Context, ownerID, id int64) error
}

// TaskService owns the task business rules: required fields, defaults and
// ownership scoping. Row-level atomicity is delegated to the repository.
type TaskService struct {
	tasks TaskRepo
}

// NewTaskService creates a new TaskService.
func NewTaskService(tasks TaskRepo) *TaskService {
	return &TaskService{tasks: tasks}
}

// CreateTaskInput carries the fields of a create call. Zero values for
// Category/Priority/Status mean "use the default".
type CreateTaskInput struct {
	Title       string
	Description *string
	Category    domain.TaskCategory
	Priority    domain.TaskPriority
	Status      domain.TaskStatus
	DueDate     *domain.Date
}

// UpdateTaskInput carries a partial update; nil fields are left unchanged.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Category    *domain.TaskCategory
	Priority    *domain.TaskPriority
	Status      *domain.TaskStatus
	DueDate     *domain.Date
	ClearDue    bool
}

// List returns all tasks owned by ownerID, due date ascending with nulls
// last, ties broken by newest creation first.
func (s *TaskService) List(ctx context.Context, ownerID int64) ([]domain.Task, error) {
	tasks, err := s.tasks.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

// Create validates the input, applies defaults and persists the task.
func (s *TaskService) Create(ctx context.Context, ownerID int64, input CreateTaskInput) (*domain.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, &domain.ValidationError{Field: "title", Message: "Title is required"}
	}

	task := domain.Task{
		OwnerID:     ownerID,
		Title:       title,
		Description: input.Description,
		Category:    input.Category,
		Priority:    input.Priority,
		Status:      input.Status,
		DueDate:     input.DueDate,
	}
	if task.Category == "" {
		task.Category = domain.CategoryOther
	}
	if task.Priority == "" {
		task.Priority = domain.PriorityMedium
	}
	if task.Status == "" {
		task.Status = domain.StatusPending
	}

	return s.tasks.Create(ctx, task)
}

// Update merges the supplied fields onto the owner's existing task. A task
// that is absent or owned by someone else yields domain.ErrTaskNotFound
// before anything is written.
func (s *TaskService) Update(ctx context.Context, ownerID, id int64, input UpdateTaskInput) (*domain.Task, error) {
	task, err := s.tasks.FindByOwner(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, &domain.ValidationError{Field: "title", Message: "Title is required"}
		}
		task.Title = title
	}
	if input.Description != nil {
		task.Description = input.Description
	}
	if input.Category != nil {
		task.Category = *input.Category
	}
	if input.Priority != nil {
		task.Priority = *input.Priority
	}
	if input.Status != nil {
		task.Status = *input.Status
	}
	if input.DueDate != nil {
		task.DueDate = input.DueDate
	} else if input.ClearDue {
		task.DueDate = nil
	}

	return s.tasks.Update(ctx, *task)
}

// Delete removes the owner's task permanently.
func (s *TaskService) Delete(ctx context.Context, ownerID, id int64) error {
	return s.tasks.Delete(ctx, ownerID, id)
}
