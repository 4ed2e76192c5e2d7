package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hikari/taskboard/internal/domain"
	"github.com/hikari/taskboard/internal/metrics"
	"github.com/hikari/taskboard/internal/realtime"
	"github.com/hikari/taskboard/internal/service"
)

// TaskHandler handles the task CRUD endpoints. Every successful mutation is
// broadcast to the owner's live connections from the same success branch
// that writes the HTTP response.
type TaskHandler struct {
	tasks       *service.TaskService
	broadcaster *realtime.Broadcaster
	metrics     *metrics.Collector
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(tasks *service.TaskService, broadcaster *realtime.Broadcaster, collector *metrics.Collector) *TaskHandler {
	return &TaskHandler{tasks: tasks, broadcaster: broadcaster, metrics: collector}
}

// List returns the authenticated user's tasks, due date ascending with
// nulls last, newest-created first on ties.
func (h *TaskHandler) List(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrNoCredential
	}

	tasks, err := h.tasks.List(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, tasks)
}

type createTaskRequest struct {
	Title       string               `json:"title" validate:"required"`
	Description *string              `json:"description"`
	Category    *domain.TaskCategory `json:"category" validate:"omitempty,oneof=training game equipment team_meeting other"`
	Priority    *domain.TaskPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Status      *domain.TaskStatus   `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	DueDate     *domain.Date         `json:"due_date"`
}

// Create persists a new task and broadcasts task_created.
func (h *TaskHandler) Create(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrNoCredential
	}

	var req createTaskRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	input := service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if req.Category != nil {
		input.Category = *req.Category
	}
	if req.Priority != nil {
		input.Priority = *req.Priority
	}
	if req.Status != nil {
		input.Status = *req.Status
	}

	task, err := h.tasks.Create(c.Request().Context(), userID, input)
	if err != nil {
		return err
	}

	h.broadcaster.Publish(userID, realtime.EventTaskCreated, task)
	h.metrics.RecordTaskMutation("created")

	return c.JSON(http.StatusCreated, task)
}

type updateTaskRequest struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Category    *domain.TaskCategory `json:"category" validate:"omitempty,oneof=training game equipment team_meeting other"`
	Priority    *domain.TaskPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Status      *domain.TaskStatus   `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	DueDate     *domain.Date         `json:"due_date"`
}

// Update applies a partial update to the owner's task and broadcasts
// task_updated. Omitted fields are untouched; an explicit due_date null
// clears the due date.
func (h *TaskHandler) Update(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrNoCredential
	}

	id, err := parseTaskID(c)
	if err != nil {
		return err
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	c.Request().Body = io.NopCloser(bytes.NewReader(body))

	var req updateTaskRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	input := service.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		Status:      req.Status,
		DueDate:     req.DueDate,
		ClearDue:    req.DueDate == nil && hasNullField(body, "due_date"),
	}

	task, err := h.tasks.Update(c.Request().Context(), userID, id, input)
	if err != nil {
		return err
	}

	h.broadcaster.Publish(userID, realtime.EventTaskUpdated, task)
	h.metrics.RecordTaskMutation("updated")

	return c.JSON(http.StatusOK, task)
}

// Delete removes the owner's task and broadcasts task_deleted.
func (h *TaskHandler) Delete(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrNoCredential
	}

	id, err := parseTaskID(c)
	if err != nil {
		return err
	}

	if err := h.tasks.Delete(c.Request().Context(), userID, id); err != nil {
		return err
	}

	h.broadcaster.Publish(userID, realtime.EventTaskDeleted, deletedPayload{ID: id})
	h.metrics.RecordTaskMutation("deleted")

	return c.JSON(http.StatusOK, echo.Map{"message": "Task deleted successfully"})
}

type deletedPayload struct {
	ID int64 `json:"id"`
}

// parseTaskID reads the :id route parameter. A non-numeric id behaves like
// a missing task rather than a bad request, matching the ownership check.
func parseTaskID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrTaskNotFound
	}
	return id, nil
}

// hasNullField reports whether the raw JSON body sets the given key to an
// explicit null. Needed to tell "clear the due date" apart from "leave it".
func hasNullField(body []byte, key string) bool {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return false
	}
	value, ok := raw[key]
	return ok && string(bytes.TrimSpace(value)) == "null"
}
