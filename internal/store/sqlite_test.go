package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/smarttask/internal/model"
	"github.com/nhle/smarttask/internal/store"
	"github.com/nhle/smarttask/tests/testutil"
)

func TestSQLiteStore_Users(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	u := testutil.CreateUser(t, s, "ana")
	assert.NotZero(t, u.ID)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", got.Username)
	assert.Equal(t, "ana@example.com", got.Email)

	byName, err := s.GetUserByUsername(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	ok, err := s.UsernameExists(ctx, "ana")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.EmailExists(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.GetUser(ctx, 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.CreateUser(ctx, &model.User{Username: "ana", Email: "other@example.com"})
	assert.Error(t, err, "duplicate username")
}

func TestSQLiteStore_SaveTask_InsertThenUpdate(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, s, "bob")

	due := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	task := &model.Task{
		UserID:         u.ID,
		Title:          "Write report",
		Priority:       model.PriorityHigh,
		DueDate:        &due,
		EstimatedHours: testutil.Hours(3),
		Tags:           []string{"work", "writing", "work"},
	}
	require.NoError(t, s.SaveTask(ctx, task))
	require.NotEmpty(t, task.ID)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusTodo, got.Status)
	assert.Equal(t, model.PriorityHigh, got.Priority)
	assert.Equal(t, []string{"work", "writing", "work"}, got.Tags)
	require.NotNil(t, got.DueDate)
	assert.True(t, due.Equal(*got.DueDate))
	require.NotNil(t, got.EstimatedHours)
	assert.Equal(t, 3, *got.EstimatedHours)
	assert.Nil(t, got.ActualHours)

	task.Status = model.StatusInProgress
	task.Priority = ""
	require.NoError(t, s.SaveTask(ctx, task))

	got, err = s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status)
	assert.Equal(t, model.Priority(""), got.Priority)
}

func TestSQLiteStore_SaveTask_RequiresTitle(t *testing.T) {
	s := testutil.NewTestStore(t)
	u := testutil.CreateUser(t, s, "carla")

	err := s.SaveTask(context.Background(), &model.Task{UserID: u.ID, Title: "  "})
	assert.Error(t, err)
}

func TestSQLiteStore_TasksByStatus(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, s, "dan")
	other := testutil.CreateUser(t, s, "eve")

	for _, tc := range []struct {
		user   int64
		title  string
		status model.TaskStatus
	}{
		{u.ID, "a", model.StatusTodo},
		{u.ID, "b", model.StatusInProgress},
		{u.ID, "c", model.StatusTodo},
		{u.ID, "d", model.StatusCompleted},
		{other.ID, "e", model.StatusTodo},
	} {
		require.NoError(t, s.SaveTask(ctx, &model.Task{UserID: tc.user, Title: tc.title, Status: tc.status}))
	}

	todo, err := s.TasksByStatus(ctx, u.ID, model.StatusTodo)
	require.NoError(t, err)
	require.Len(t, todo, 2)
	assert.ElementsMatch(t, []string{"a", "c"}, []string{todo[0].Title, todo[1].Title})

	all, err := s.TasksForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSQLiteStore_OverdueTasks(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, s, "fay")

	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	save := func(title string, status model.TaskStatus, due *time.Time) {
		require.NoError(t, s.SaveTask(ctx, &model.Task{UserID: u.ID, Title: title, Status: status, DueDate: due}))
	}
	save("late todo", model.StatusTodo, &past)
	save("late cancelled", model.StatusCancelled, &past)
	save("late done", model.StatusCompleted, &past)
	save("future", model.StatusTodo, &future)
	save("no due", model.StatusTodo, nil)

	overdue, err := s.OverdueTasks(ctx, u.ID, now)
	require.NoError(t, err)

	var titles []string
	for _, task := range overdue {
		titles = append(titles, task.Title)
	}
	assert.ElementsMatch(t, []string{"late todo", "late cancelled"}, titles)
}

func TestSQLiteStore_Subtasks(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, s, "gus")

	parent := &model.Task{UserID: u.ID, Title: "parent"}
	require.NoError(t, s.SaveTask(ctx, parent))
	for _, title := range []string{"child 1", "child 2"} {
		require.NoError(t, s.SaveTask(ctx, &model.Task{UserID: u.ID, Title: title, ParentID: &parent.ID}))
	}

	children, err := s.Subtasks(ctx, parent.ID)
	require.NoError(t, err)
	assert.Len(t, children, 2)
	for _, c := range children {
		require.NotNil(t, c.ParentID)
		assert.Equal(t, parent.ID, *c.ParentID)
	}

	require.NoError(t, s.DeleteTask(ctx, parent.ID))
	children, err = s.Subtasks(ctx, parent.ID)
	require.NoError(t, err)
	assert.Empty(t, children, "subtasks cascade with their parent")

	assert.ErrorIs(t, s.DeleteTask(ctx, parent.ID), store.ErrNotFound)
}

func TestSQLiteStore_CompletedTasksSince(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, s, "hal")

	since := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	before := since.Add(-time.Hour)
	after := since.Add(time.Hour)

	require.NoError(t, s.SaveTask(ctx, &model.Task{UserID: u.ID, Title: "old", Status: model.StatusCompleted, CompletedAt: &before}))
	require.NoError(t, s.SaveTask(ctx, &model.Task{UserID: u.ID, Title: "new", Status: model.StatusCompleted, CompletedAt: &after}))
	require.NoError(t, s.SaveTask(ctx, &model.Task{UserID: u.ID, Title: "open"}))

	done, err := s.CompletedTasksSince(ctx, u.ID, since)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "new", done[0].Title)
}

func TestSQLiteStore_Preferences(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, s, "ida")
	b := testutil.CreateUser(t, s, "jon")
	c := testutil.CreateUser(t, s, "kim")

	at := model.TimeOfDay("08:00")
	other := model.TimeOfDay("09:15")
	number := "+5511999990000"

	prefA := model.NewNotificationPreference(a.ID)
	prefA.Enabled = true
	prefA.Destination = &number
	prefA.DailyReminderTime = &at
	require.NoError(t, s.SavePreference(ctx, &prefA))

	prefB := model.NewNotificationPreference(b.ID)
	prefB.Enabled = false
	prefB.DailyReminderTime = &at
	require.NoError(t, s.SavePreference(ctx, &prefB))

	prefC := model.NewNotificationPreference(c.ID)
	prefC.Enabled = true
	prefC.DailyReminderTime = &other
	require.NoError(t, s.SavePreference(ctx, &prefC))

	atEight, err := s.PreferencesByReminderTime(ctx, at)
	require.NoError(t, err)
	require.Len(t, atEight, 1)
	assert.Equal(t, a.ID, atEight[0].UserID)

	enabled, err := s.EnabledPreferences(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 2)
	assert.Equal(t, a.ID, enabled[0].UserID)
	assert.Equal(t, c.ID, enabled[1].UserID)

	got, err := s.GetPreference(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Destination)
	assert.Equal(t, number, *got.Destination)
	require.NotNil(t, got.DailyReminderTime)
	assert.Equal(t, at, *got.DailyReminderTime)
	assert.Equal(t, model.DefaultTimezone, got.Timezone)
	assert.True(t, got.SendOverdueAlerts)

	got.SendOverdueAlerts = false
	require.NoError(t, s.SavePreference(ctx, got))
	again, err := s.GetPreference(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, again.SendOverdueAlerts)

	_, err = s.GetPreference(ctx, 424242)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSQLiteStore_Settings(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, s, "lea")

	_, err := s.GetSettings(ctx, u.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	settings := &model.UserSettings{UserID: u.ID, EncryptedAIKey: "sealed", DestinationNumber: "+5511"}
	require.NoError(t, s.SaveSettings(ctx, settings))

	settings.EncryptedAIKey = ""
	require.NoError(t, s.SaveSettings(ctx, settings))

	got, err := s.GetSettings(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.EncryptedAIKey)
	assert.Equal(t, "+5511", got.DestinationNumber)
}

func TestSQLiteStore_View(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, s, "max")
	require.NoError(t, s.SaveTask(ctx, &model.Task{UserID: u.ID, Title: "inside"}))

	err := s.View(ctx, func(r store.Reader) error {
		user, err := r.GetUser(ctx, u.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, "max", user.Username)

		tasks, err := r.TasksByStatus(ctx, u.ID, model.StatusTodo)
		if err != nil {
			return err
		}
		assert.Len(t, tasks, 1)
		return nil
	})
	require.NoError(t, err)

	// The connection is released once View returns.
	_, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
}

func TestSQLiteStore_Update_CommitsOnSuccess(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, s, "max")

	err := s.Update(ctx, func(w store.Writer) error {
		if err := w.SaveTask(ctx, &model.Task{UserID: u.ID, Title: "one"}); err != nil {
			return err
		}
		return w.SaveTask(ctx, &model.Task{UserID: u.ID, Title: "two"})
	})
	require.NoError(t, err)

	tasks, err := s.TasksForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestSQLiteStore_Update_RollsBackOnError(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, s, "max")

	err := s.Update(ctx, func(w store.Writer) error {
		if err := w.SaveTask(ctx, &model.Task{UserID: u.ID, Title: "kept?"}); err != nil {
			return err
		}
		return w.SaveTask(ctx, &model.Task{UserID: u.ID, Title: "  "})
	})
	require.Error(t, err)

	tasks, err := s.TasksForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
