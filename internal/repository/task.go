package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hikari/taskboard/internal/domain"
)

const taskColumns = `id, user_id, title, description, category, priority, status, due_date, created_at, updated_at`

// TaskRepository handles task data access operations. Every query is scoped
// by user_id; a task owned by someone else is indistinguishable from one
// that does not exist.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// ListByOwner returns all tasks owned by ownerID, due date ascending with
// nulls last, then newest-created first. The trailing id keeps the order
// total when created_at collides.
func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Task, error) {
	var tasks []domain.Task
	err := r.db.SelectContext(ctx, &tasks,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE user_id = $1
		 ORDER BY due_date ASC NULLS LAST, created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list tasks for user %d: %w", ownerID, err)
	}
	return tasks, nil
}

// FindByOwner retrieves a single task owned by ownerID.
func (r *TaskRepository) FindByOwner(ctx context.Context, ownerID, id int64) (*domain.Task, error) {
	var task domain.Task
	err := r.db.GetContext(ctx, &task,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task %d: %w", id, err)
	}
	return &task, nil
}

// Create inserts a task and returns the persisted row including the
// generated id and timestamps.
func (r *TaskRepository) Create(ctx context.Context, task domain.Task) (*domain.Task, error) {
	var result domain.Task
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO tasks (user_id, title, description, category, priority, status, due_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+taskColumns,
		task.OwnerID, task.Title, task.Description, task.Category, task.Priority, task.Status, task.DueDate,
	).StructScan(&result)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &result, nil
}

// Update overwrites the mutable columns of a task owned by task.OwnerID and
// restamps updated_at. Returns the fresh row.
func (r *TaskRepository) Update(ctx context.Context, task domain.Task) (*domain.Task, error) {
	var result domain.Task
	err := r.db.QueryRowxContext(ctx,
		`UPDATE tasks
		 SET title = $1, description = $2, category = $3, priority = $4, status = $5, due_date = $6, updated_at = NOW()
		 WHERE id = $7 AND user_id = $8
		 RETURNING `+taskColumns,
		task.Title, task.Description, task.Category, task.Priority, task.Status, task.DueDate, task.ID, task.OwnerID,
	).StructScan(&result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("update task %d: %w", task.ID, err)
	}
	return &result, nil
}

// Delete removes a task owned by ownerID. Deletion is permanent.
func (r *TaskRepository) Delete(ctx context.Context, ownerID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if affected == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}
