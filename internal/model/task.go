package model

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
	StatusCancelled  TaskStatus = "CANCELLED"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Priority is the urgency level of a task. The zero value means "unset".
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Rank orders priorities for sorting: URGENT=4, HIGH=3, MEDIUM=2, LOW=1,
// unset or unknown=0.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// ParsePriority converts user input such as "high" into a Priority.
// An empty string yields the unset priority.
func ParsePriority(s string) (Priority, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	for _, p := range Priorities {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// Task is a unit of work owned by a user. Subtasks point at their parent
// through ParentID; children are looked up by query rather than stored on
// the parent.
type Task struct {
	// ID is the UUID of the task.
	ID string `json:"id" db:"id"`

	// UserID is the owner of the task.
	UserID int64 `json:"user_id" db:"user_id"`

	// Title is the short human-readable name.
	Title string `json:"title" db:"title"`

	// Description is the optional long-form body.
	Description string `json:"description" db:"description"`

	// Status is the lifecycle state (use Status* constants).
	Status TaskStatus `json:"status" db:"status"`

	// Priority is the urgency level; empty when unset.
	Priority Priority `json:"priority,omitempty" db:"priority"`

	// DueDate is when the task should be finished.
	DueDate *time.Time `json:"due_date,omitempty" db:"due_date"`

	// CompletedAt is set the first time the task moves to COMPLETED.
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	// EstimatedHours is the planned effort.
	EstimatedHours *int `json:"estimated_hours,omitempty" db:"estimated_hours"`

	// ActualHours is the effort actually spent.
	ActualHours *int `json:"actual_hours,omitempty" db:"actual_hours"`

	// Tags are free-form labels in insertion order.
	Tags []string `json:"tags" db:"-"`

	// ParentID references the parent task for subtasks.
	ParentID *string `json:"parent_id,omitempty" db:"parent_id"`

	// AISuggestedPriority marks tasks created through AI-assisted creation.
	AISuggestedPriority bool `json:"ai_suggested_priority" db:"ai_suggested_priority"`

	// AIAnalysis is the narrative returned by the analysis engine.
	AIAnalysis string `json:"ai_analysis,omitempty" db:"ai_analysis"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Hours returns the actual hours if recorded, else the estimate, else 0.
func (t Task) Hours() int {
	if t.ActualHours != nil {
		return *t.ActualHours
	}
	if t.EstimatedHours != nil {
		return *t.EstimatedHours
	}
	return 0
}
