package domain

import "time"

// TaskCategory classifies what a task is about.
type TaskCategory string

const (
	CategoryTraining    TaskCategory = "training"
	CategoryGame        TaskCategory = "game"
	CategoryEquipment   TaskCategory = "equipment"
	CategoryTeamMeeting TaskCategory = "team_meeting"
	CategoryOther       TaskCategory = "other"
)

// TaskPriority represents how urgent a task is.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

// Task represents a single task owned by exactly one user. OwnerID is
// immutable after creation; every read and write is scoped to it.
type Task struct {
	ID          int64        `json:"id" db:"id"`
	OwnerID     int64        `json:"owner_id" db:"user_id"`
	Title       string       `json:"title" db:"title"`
	Description *string      `json:"description,omitempty" db:"description"`
	Category    TaskCategory `json:"category" db:"category"`
	Priority    TaskPriority `json:"priority" db:"priority"`
	Status      TaskStatus   `json:"status" db:"status"`
	DueDate     *Date        `json:"due_date" db:"due_date"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}
