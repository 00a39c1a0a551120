package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/smarttask/internal/model"
)

// taskRow adds the JSON-encoded tags column to model.Task.
type taskRow struct {
	model.Task
	TagsJSON string `db:"tags"`
}

func (r taskRow) toTask() (model.Task, error) {
	task := r.Task
	task.Tags = []string{}
	if r.TagsJSON != "" {
		if err := json.Unmarshal([]byte(r.TagsJSON), &task.Tags); err != nil {
			return model.Task{}, fmt.Errorf("unmarshaling tags of task %s: %w", task.ID, err)
		}
	}
	return task, nil
}

// SaveTask inserts the task, or updates it when the ID already exists.
// A UUID is generated when ID is empty.
func (s *SQLiteStore) SaveTask(ctx context.Context, task *model.Task) error {
	if strings.TrimSpace(task.Title) == "" {
		return fmt.Errorf("task title must not be empty")
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Status == "" {
		task.Status = model.StatusTodo
	}
	if task.Tags == nil {
		task.Tags = []string{}
	}

	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	tags, err := json.Marshal(task.Tags)
	if err != nil {
		return fmt.Errorf("marshaling tags: %w", err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO tasks (
			id, user_id, title, description, status, priority,
			due_date, completed_at, estimated_hours, actual_hours,
			tags, parent_id, ai_suggested_priority, ai_analysis,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			status = excluded.status,
			priority = excluded.priority,
			due_date = excluded.due_date,
			completed_at = excluded.completed_at,
			estimated_hours = excluded.estimated_hours,
			actual_hours = excluded.actual_hours,
			tags = excluded.tags,
			parent_id = excluded.parent_id,
			ai_suggested_priority = excluded.ai_suggested_priority,
			ai_analysis = excluded.ai_analysis,
			updated_at = excluded.updated_at`,
		task.ID, task.UserID, task.Title, task.Description, task.Status, task.Priority,
		utcPtr(task.DueDate), utcPtr(task.CompletedAt), task.EstimatedHours, task.ActualHours,
		string(tags), task.ParentID, boolToInt(task.AISuggestedPriority), task.AIAnalysis,
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving task %s: %w", task.ID, err)
	}
	return nil
}

// GetTask retrieves a single task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var row taskRow
	err := sqlx.GetContext(ctx, s.q, &row, "SELECT * FROM tasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}

	task, err := row.toTask()
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask removes a task by ID. Subtasks cascade.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	result, err := s.q.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

// TasksForUser returns every task owned by userID, oldest first.
func (s *SQLiteStore) TasksForUser(ctx context.Context, userID int64) ([]model.Task, error) {
	return s.selectTasks(ctx,
		"SELECT * FROM tasks WHERE user_id = ? ORDER BY created_at, id", userID)
}

// TasksByStatus returns the user's tasks in the given status, oldest first.
func (s *SQLiteStore) TasksByStatus(
	ctx context.Context,
	userID int64,
	status model.TaskStatus,
) ([]model.Task, error) {
	return s.selectTasks(ctx,
		"SELECT * FROM tasks WHERE user_id = ? AND status = ? ORDER BY created_at, id",
		userID, status)
}

// OverdueTasks returns the user's tasks that are not COMPLETED and whose
// due date is before now.
func (s *SQLiteStore) OverdueTasks(ctx context.Context, userID int64, now time.Time) ([]model.Task, error) {
	return s.selectTasks(ctx, `
		SELECT * FROM tasks
		WHERE user_id = ? AND status != ? AND due_date IS NOT NULL AND due_date < ?
		ORDER BY due_date, id`,
		userID, model.StatusCompleted, now.UTC())
}

// Subtasks returns the direct children of parentID.
func (s *SQLiteStore) Subtasks(ctx context.Context, parentID string) ([]model.Task, error) {
	return s.selectTasks(ctx,
		"SELECT * FROM tasks WHERE parent_id = ? ORDER BY created_at, id", parentID)
}

// CompletedTasksSince returns the user's COMPLETED tasks finished at or after since.
func (s *SQLiteStore) CompletedTasksSince(ctx context.Context, userID int64, since time.Time) ([]model.Task, error) {
	return s.selectTasks(ctx, `
		SELECT * FROM tasks
		WHERE user_id = ? AND status = ? AND completed_at IS NOT NULL AND completed_at >= ?
		ORDER BY completed_at, id`,
		userID, model.StatusCompleted, since.UTC())
}

func (s *SQLiteStore) selectTasks(ctx context.Context, query string, args ...interface{}) ([]model.Task, error) {
	var rows []taskRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(rows))
	for _, row := range rows {
		task, err := row.toTask()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
