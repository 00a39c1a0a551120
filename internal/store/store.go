package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/smarttask/internal/model"
)

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("not found")

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// TaskStore persists tasks. Subtasks are found through their ParentID.
type TaskStore interface {
	SaveTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	DeleteTask(ctx context.Context, id string) error
	TasksForUser(ctx context.Context, userID int64) ([]model.Task, error)
	TasksByStatus(ctx context.Context, userID int64, status model.TaskStatus) ([]model.Task, error)
	// OverdueTasks returns tasks not COMPLETED whose due date is before now.
	OverdueTasks(ctx context.Context, userID int64, now time.Time) ([]model.Task, error)
	Subtasks(ctx context.Context, parentID string) ([]model.Task, error)
	CompletedTasksSince(ctx context.Context, userID int64, since time.Time) ([]model.Task, error)
}

// PreferenceStore persists notification preferences, one per user.
type PreferenceStore interface {
	GetPreference(ctx context.Context, userID int64) (*model.NotificationPreference, error)
	// EnabledPreferences returns every preference with Enabled set.
	EnabledPreferences(ctx context.Context) ([]model.NotificationPreference, error)
	// PreferencesByReminderTime returns enabled preferences whose daily
	// reminder fires at t.
	PreferencesByReminderTime(ctx context.Context, t model.TimeOfDay) ([]model.NotificationPreference, error)
	SavePreference(ctx context.Context, pref *model.NotificationPreference) error
}

// SettingsStore persists per-user provider credentials.
type SettingsStore interface {
	GetSettings(ctx context.Context, userID int64) (*model.UserSettings, error)
	SaveSettings(ctx context.Context, settings *model.UserSettings) error
}

// Reader is the read side used inside a View.
type Reader interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	TasksByStatus(ctx context.Context, userID int64, status model.TaskStatus) ([]model.Task, error)
	OverdueTasks(ctx context.Context, userID int64, now time.Time) ([]model.Task, error)
	EnabledPreferences(ctx context.Context) ([]model.NotificationPreference, error)
	PreferencesByReminderTime(ctx context.Context, t model.TimeOfDay) ([]model.NotificationPreference, error)
}

// Writer is the write side used inside an Update.
type Writer interface {
	SaveTask(ctx context.Context, task *model.Task) error
}

// Store is the full persistence interface.
type Store interface {
	UserStore
	TaskStore
	PreferenceStore
	SettingsStore

	// View runs fn against a single read transaction.
	View(ctx context.Context, fn func(r Reader) error) error
	// Update runs fn against a single write transaction.
	Update(ctx context.Context, fn func(w Writer) error) error
	Close() error
}
