// Package tasks implements task creation, AI-assisted creation, updates and
// the reports built on top of them.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/smarttask/internal/metrics"
	"github.com/nhle/smarttask/internal/model"
	"github.com/nhle/smarttask/internal/store"
)

// ErrForbidden is returned when a user touches a task they do not own.
var ErrForbidden = errors.New("you don't have permission to access this task")

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("invalid task request")

// Request carries the fields of a create or update. A nil Tags slice means
// "not provided", which matters for AI-assisted creation.
type Request struct {
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Status         model.TaskStatus `json:"status,omitempty"`
	Priority       model.Priority   `json:"priority,omitempty"`
	DueDate        *time.Time       `json:"due_date,omitempty"`
	EstimatedHours *int             `json:"estimated_hours,omitempty"`
	ActualHours    *int             `json:"actual_hours,omitempty"`
	Tags           []string         `json:"tags,omitempty"`
	ParentID       *string          `json:"parent_id,omitempty"`
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	if r.Status != "" && !r.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, r.Status)
	}
	if r.Priority != "" && r.Priority.Rank() == 0 {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidRequest, r.Priority)
	}
	return nil
}

// Report is a productivity summary over completed tasks.
type Report struct {
	Since          time.Time `json:"since"`
	CompletedTasks int       `json:"completed_tasks"`
	TotalHours     int       `json:"total_hours"`
	Narrative      string    `json:"report"`
}

// Store is the storage Service needs.
type Store interface {
	store.TaskStore
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetPreference(ctx context.Context, userID int64) (*model.NotificationPreference, error)
	Update(ctx context.Context, fn func(w store.Writer) error) error
}

// Analyzer is the AI side of the service.
type Analyzer interface {
	Analyze(ctx context.Context, req model.AnalysisRequest, userID int64) (model.AnalysisResult, error)
	GenerateProductivityReport(ctx context.Context, completedTitles []string, totalHours int, userID int64) (string, error)
}

// CompletionNotifier sends the end-of-day completion summary.
type CompletionNotifier interface {
	SendCompletionSummary(ctx context.Context, userID int64, userName string, completed, totalHours int) (model.DeliveryOutcome, error)
}

// Service is the task use-case layer.
type Service struct {
	store    Store
	analyzer Analyzer
	notifier CompletionNotifier
	sink     metrics.Sink
	now      func() time.Time
}

// NewService creates a Service. A nil sink discards metrics.
func NewService(s Store, analyzer Analyzer, notifier CompletionNotifier, sink metrics.Sink) *Service {
	if sink == nil {
		sink = metrics.Nop{}
	}
	return &Service{store: s, analyzer: analyzer, notifier: notifier, sink: sink, now: time.Now}
}

// run traces op and records its duration.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	defer func() { s.sink.RecordTaskDuration(op, time.Since(start)) }()
	return metrics.Trace(ctx, s.sink, "tasks."+op, fn)
}

// Create stores a new task for userID.
func (s *Service) Create(ctx context.Context, userID int64, req Request) (*model.Task, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var task *model.Task
	err := s.run(ctx, "create", func(ctx context.Context) error {
		if _, err := s.store.GetUser(ctx, userID); err != nil {
			return err
		}
		if req.ParentID != nil {
			if _, err := s.owned(ctx, userID, *req.ParentID); err != nil {
				return fmt.Errorf("parent task: %w", err)
			}
		}

		t := newTask(userID, req)
		if t.Status == model.StatusCompleted {
			now := s.now().UTC()
			t.CompletedAt = &now
		}
		if err := s.store.SaveTask(ctx, &t); err != nil {
			return err
		}
		s.sink.RecordTaskEvent("created", priorityAttr(t.Priority))
		task = &t
		return nil
	})
	return task, err
}

// CreateWithAI analyzes title and description and fills every field the
// request leaves empty from the analysis. Suggested subtasks are created
// with the parent's priority, in the same transaction as the parent.
func (s *Service) CreateWithAI(ctx context.Context, userID int64, req Request) (*model.Task, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var task *model.Task
	err := s.run(ctx, "create_with_ai", func(ctx context.Context) error {
		if _, err := s.store.GetUser(ctx, userID); err != nil {
			return err
		}

		analysis, err := s.analyzer.Analyze(ctx, model.AnalysisRequest{
			Text: req.Title + " " + req.Description,
		}, userID)
		if err != nil {
			return err
		}

		t := newTask(userID, req)
		t.ParentID = nil
		if t.Priority == "" {
			t.Priority = analysis.Priority
		}
		if t.EstimatedHours == nil {
			t.EstimatedHours = analysis.EstimatedHours
		}
		if req.Tags == nil {
			t.Tags = append([]string{}, analysis.Tags...)
		}
		t.AISuggestedPriority = true
		t.AIAnalysis = analysis.Narrative

		err = s.store.Update(ctx, func(w store.Writer) error {
			if err := w.SaveTask(ctx, &t); err != nil {
				return err
			}
			for _, title := range analysis.SubtaskTitles {
				parentID := t.ID
				sub := model.Task{
					UserID:   userID,
					Title:    title,
					Status:   model.StatusTodo,
					Priority: t.Priority,
					ParentID: &parentID,
				}
				if err := w.SaveTask(ctx, &sub); err != nil {
					return fmt.Errorf("creating subtask %q: %w", title, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		s.sink.RecordTaskEvent("created", priorityAttr(t.Priority))
		task = &t
		return nil
	})
	return task, err
}

// Get returns a task owned by userID.
func (s *Service) Get(ctx context.Context, userID int64, id string) (*model.Task, error) {
	return s.owned(ctx, userID, id)
}

// List returns the user's tasks, optionally filtered by status.
func (s *Service) List(ctx context.Context, userID int64, status model.TaskStatus) ([]model.Task, error) {
	var list []model.Task
	err := s.run(ctx, "list_all", func(ctx context.Context) error {
		var err error
		if status == "" {
			list, err = s.store.TasksForUser(ctx, userID)
		} else {
			list, err = s.store.TasksByStatus(ctx, userID, status)
		}
		return err
	})
	return list, err
}

// Update replaces the editable fields of a task. The first move to
// COMPLETED stamps CompletedAt and counts one completion.
func (s *Service) Update(ctx context.Context, userID int64, id string, req Request) (*model.Task, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var task *model.Task
	err := s.run(ctx, "update", func(ctx context.Context) error {
		t, err := s.owned(ctx, userID, id)
		if err != nil {
			return err
		}

		t.Title = strings.TrimSpace(req.Title)
		t.Description = req.Description
		if req.Status != "" {
			t.Status = req.Status
		}
		t.Priority = req.Priority
		t.DueDate = req.DueDate
		t.EstimatedHours = req.EstimatedHours
		t.ActualHours = req.ActualHours
		t.Tags = req.Tags

		completed := false
		if t.Status == model.StatusCompleted && t.CompletedAt == nil {
			now := s.now().UTC()
			t.CompletedAt = &now
			completed = true
		}

		if err := s.store.SaveTask(ctx, t); err != nil {
			return err
		}
		if completed {
			s.sink.RecordTaskEvent("completed", "")
		}
		task = t
		return nil
	})
	return task, err
}

// Delete removes a task and its subtasks.
func (s *Service) Delete(ctx context.Context, userID int64, id string) error {
	return s.run(ctx, "delete", func(ctx context.Context) error {
		if _, err := s.owned(ctx, userID, id); err != nil {
			return err
		}
		if err := s.store.DeleteTask(ctx, id); err != nil {
			return err
		}
		s.sink.RecordTaskEvent("deleted", "")
		return nil
	})
}

// Overdue returns the user's tasks that are not completed and past due.
func (s *Service) Overdue(ctx context.Context, userID int64) ([]model.Task, error) {
	return s.store.OverdueTasks(ctx, userID, s.now())
}

// Subtasks returns the children of a task owned by userID.
func (s *Service) Subtasks(ctx context.Context, userID int64, parentID string) ([]model.Task, error) {
	if _, err := s.owned(ctx, userID, parentID); err != nil {
		return nil, err
	}
	return s.store.Subtasks(ctx, parentID)
}

// ProductivityReport summarizes tasks completed since the given time.
// Hours use the actual value when recorded, else the estimate.
func (s *Service) ProductivityReport(ctx context.Context, userID int64, since time.Time) (Report, error) {
	var report Report
	err := s.run(ctx, "productivity_report", func(ctx context.Context) error {
		done, err := s.store.CompletedTasksSince(ctx, userID, since)
		if err != nil {
			return err
		}

		titles := make([]string, len(done))
		total := 0
		for i, t := range done {
			titles[i] = t.Title
			total += t.Hours()
		}

		narrative, err := s.analyzer.GenerateProductivityReport(ctx, titles, total, userID)
		if err != nil {
			return err
		}
		report = Report{Since: since, CompletedTasks: len(done), TotalHours: total, Narrative: narrative}
		return nil
	})
	return report, err
}

// SendCompletionSummary sends today's completion summary when the user's
// preference asks for it. Without a preference nothing is sent.
func (s *Service) SendCompletionSummary(ctx context.Context, userID int64) (model.DeliveryOutcome, error) {
	skipped := model.DeliveryOutcome{UserID: userID, Channel: model.ChannelSkipped, MessageType: "completion_summary"}

	pref, err := s.store.GetPreference(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return skipped, nil
	}
	if err != nil {
		return model.DeliveryOutcome{}, err
	}
	if !pref.SendCompletionSummary {
		return skipped, nil
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return model.DeliveryOutcome{}, err
	}

	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	done, err := s.store.CompletedTasksSince(ctx, userID, midnight)
	if err != nil {
		return model.DeliveryOutcome{}, err
	}

	total := 0
	for _, t := range done {
		total += t.Hours()
	}
	return s.notifier.SendCompletionSummary(ctx, userID, user.Username, len(done), total)
}

func (s *Service) owned(ctx context.Context, userID int64, id string) (*model.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, ErrForbidden
	}
	return t, nil
}

func newTask(userID int64, req Request) model.Task {
	status := req.Status
	if status == "" {
		status = model.StatusTodo
	}
	return model.Task{
		UserID:         userID,
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Status:         status,
		Priority:       req.Priority,
		DueDate:        req.DueDate,
		EstimatedHours: req.EstimatedHours,
		ActualHours:    req.ActualHours,
		Tags:           req.Tags,
		ParentID:       req.ParentID,
	}
}

func priorityAttr(p model.Priority) string {
	if p == "" {
		return "priority=NONE"
	}
	return "priority=" + string(p)
}
