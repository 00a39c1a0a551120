package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/smarttask/internal/ai"
	"github.com/nhle/smarttask/internal/metrics"
	"github.com/nhle/smarttask/internal/model"
	"github.com/nhle/smarttask/internal/store"
	"github.com/nhle/smarttask/tests/testutil"
)

type fakeAnalyzer struct {
	result     model.AnalysisResult
	lastText   string
	lastTitles []string
	lastHours  int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req model.AnalysisRequest, _ int64) (model.AnalysisResult, error) {
	f.lastText = req.Text
	return f.result, nil
}

func (f *fakeAnalyzer) GenerateProductivityReport(_ context.Context, titles []string, hours int, _ int64) (string, error) {
	f.lastTitles = titles
	f.lastHours = hours
	return "narrative", nil
}

type summaryCall struct {
	userName   string
	completed  int
	totalHours int
}

type fakeNotifier struct {
	calls []summaryCall
}

func (f *fakeNotifier) SendCompletionSummary(_ context.Context, userID int64, userName string, completed, totalHours int) (model.DeliveryOutcome, error) {
	f.calls = append(f.calls, summaryCall{userName, completed, totalHours})
	return model.DeliveryOutcome{UserID: userID, Channel: model.ChannelSimulated, MessageType: "completion_summary"}, nil
}

type fixture struct {
	svc      *Service
	store    *store.SQLiteStore
	analyzer *fakeAnalyzer
	notifier *fakeNotifier
	registry *metrics.Registry
	user     *model.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	s := testutil.NewTestStore(t)
	f := fixture{
		store:    s,
		analyzer: &fakeAnalyzer{result: ai.MockResult("x")},
		notifier: &fakeNotifier{},
		registry: metrics.NewRegistry(),
		user:     testutil.CreateUser(t, s, "ana"),
	}
	f.svc = NewService(s, f.analyzer, f.notifier, f.registry)
	return f
}

func TestService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.user.ID, Request{Title: " Write docs ", Priority: model.PriorityHigh, Tags: []string{"docs"}})
	require.NoError(t, err)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "Write docs", task.Title)
	assert.Equal(t, model.StatusTodo, task.Status)
	assert.False(t, task.AISuggestedPriority)
	assert.EqualValues(t, 1, f.registry.Counter(metrics.TaskEvents, "event=created,priority=HIGH"))
	assert.EqualValues(t, 1, f.registry.Snapshot().Durations[metrics.TaskDuration+"{op=create}"].Count)
}

func TestService_CreateValidates(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.user.ID, Request{Title: "  "})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.svc.Create(context.Background(), f.user.ID, Request{Title: "x", Priority: "SOMEDAY"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestService_CreateUnderForeignParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := testutil.CreateUser(t, f.store, "bob")

	parent, err := f.svc.Create(ctx, other.ID, Request{Title: "bob's"})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.user.ID, Request{Title: "child", ParentID: &parent.ID})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestService_CreateWithAI(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hours := 5
	f.analyzer.result = model.AnalysisResult{
		Summary:        "Fix login",
		Priority:       model.PriorityUrgent,
		EstimatedHours: &hours,
		Tags:           []string{"auth", "bug"},
		SubtaskTitles:  []string{"Reproduce", "Patch"},
		Narrative:      "Session expires early.",
	}

	task, err := f.svc.CreateWithAI(ctx, f.user.ID, Request{Title: "Fix login bug", Description: "on mobile"})
	require.NoError(t, err)

	assert.Equal(t, "Fix login bug on mobile", f.analyzer.lastText)
	assert.Equal(t, model.PriorityUrgent, task.Priority)
	require.NotNil(t, task.EstimatedHours)
	assert.Equal(t, 5, *task.EstimatedHours)
	assert.Equal(t, []string{"auth", "bug"}, task.Tags)
	assert.True(t, task.AISuggestedPriority)
	assert.Equal(t, "Session expires early.", task.AIAnalysis)

	subs, err := f.svc.Subtasks(ctx, f.user.ID, task.ID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	titles := []string{subs[0].Title, subs[1].Title}
	assert.ElementsMatch(t, []string{"Reproduce", "Patch"}, titles)
	for _, sub := range subs {
		assert.Equal(t, model.PriorityUrgent, sub.Priority)
		assert.Equal(t, model.StatusTodo, sub.Status)
	}
}

// failingWriter fails the failAt-th SaveTask of one transaction.
type failingWriter struct {
	store.Writer
	saves  *int
	failAt int
}

func (w failingWriter) SaveTask(ctx context.Context, task *model.Task) error {
	*w.saves++
	if *w.saves == w.failAt {
		return errors.New("disk full")
	}
	return w.Writer.SaveTask(ctx, task)
}

type failingStore struct {
	*store.SQLiteStore
	failAt int
}

func (s *failingStore) Update(ctx context.Context, fn func(w store.Writer) error) error {
	saves := 0
	return s.SQLiteStore.Update(ctx, func(w store.Writer) error {
		return fn(failingWriter{Writer: w, saves: &saves, failAt: s.failAt})
	})
}

func TestService_CreateWithAIRollsBackOnSubtaskFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.analyzer.result.SubtaskTitles = []string{"one", "two", "three"}
	svc := NewService(&failingStore{SQLiteStore: f.store, failAt: 3}, f.analyzer, f.notifier, f.registry)

	task, err := svc.CreateWithAI(ctx, f.user.ID, Request{Title: "parent"})
	require.Error(t, err)
	assert.Nil(t, task)
	assert.ErrorContains(t, err, `creating subtask "two": disk full`)

	left, err := f.store.TasksForUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.Zero(t, f.registry.Counter(metrics.TaskEvents, "event=created,priority=MEDIUM"))
}

func TestService_CreateWithAIKeepsExplicitFields(t *testing.T) {
	f := newFixture(t)
	hours := 1

	task, err := f.svc.CreateWithAI(context.Background(), f.user.ID, Request{
		Title:          "Plan sprint",
		Priority:       model.PriorityLow,
		EstimatedHours: &hours,
		Tags:           []string{},
	})
	require.NoError(t, err)

	assert.Equal(t, model.PriorityLow, task.Priority)
	assert.Equal(t, 1, *task.EstimatedHours)
	assert.Empty(t, task.Tags)
	assert.True(t, task.AISuggestedPriority, "flag is set on every AI-assisted creation")
	assert.Equal(t, "Plan sprint ", f.analyzer.lastText)
}

func TestService_UpdateCompletesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.user.ID, Request{Title: "ship"})
	require.NoError(t, err)

	done, err := f.svc.Update(ctx, f.user.ID, task.ID, Request{Title: "ship", Status: model.StatusCompleted})
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	first := *done.CompletedAt

	again, err := f.svc.Update(ctx, f.user.ID, task.ID, Request{Title: "  ship it ", Status: model.StatusCompleted})
	require.NoError(t, err)
	assert.True(t, first.Equal(*again.CompletedAt))
	assert.Equal(t, "ship it", again.Title)

	assert.EqualValues(t, 1, f.registry.Counter(metrics.TaskEvents, "event=completed"))
}

func TestService_OwnershipChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := testutil.CreateUser(t, f.store, "bob")

	task, err := f.svc.Create(ctx, f.user.ID, Request{Title: "mine"})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, other.ID, task.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Update(ctx, other.ID, task.ID, Request{Title: "stolen"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, f.svc.Delete(ctx, other.ID, task.ID), ErrForbidden)

	require.NoError(t, f.svc.Delete(ctx, f.user.ID, task.ID))
	_, err = f.svc.Get(ctx, f.user.ID, task.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.EqualValues(t, 1, f.registry.Counter(metrics.TaskEvents, "event=deleted"))
}

func TestService_Overdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)

	_, err := f.svc.Create(ctx, f.user.ID, Request{Title: "late", DueDate: &past})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.user.ID, Request{Title: "no due date"})
	require.NoError(t, err)

	overdue, err := f.svc.Overdue(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "late", overdue[0].Title)
}

func TestService_ProductivityReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	since := time.Now().Add(-24 * time.Hour)

	_, err := f.svc.Create(ctx, f.user.ID, Request{Title: "a", Status: model.StatusCompleted, EstimatedHours: testutil.Hours(3), ActualHours: testutil.Hours(4)})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.user.ID, Request{Title: "b", Status: model.StatusCompleted, EstimatedHours: testutil.Hours(2)})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.user.ID, Request{Title: "open", EstimatedHours: testutil.Hours(9)})
	require.NoError(t, err)

	report, err := f.svc.ProductivityReport(ctx, f.user.ID, since)
	require.NoError(t, err)

	assert.Equal(t, 2, report.CompletedTasks)
	assert.Equal(t, 6, report.TotalHours)
	assert.Equal(t, "narrative", report.Narrative)
	assert.ElementsMatch(t, []string{"a", "b"}, f.analyzer.lastTitles)
	assert.Equal(t, 6, f.analyzer.lastHours)
}

func TestService_SendCompletionSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outcome, err := f.svc.SendCompletionSummary(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ChannelSkipped, outcome.Channel, "no preference saved")

	pref := model.NewNotificationPreference(f.user.ID)
	require.NoError(t, f.store.SavePreference(ctx, &pref))

	_, err = f.svc.Create(ctx, f.user.ID, Request{Title: "done", Status: model.StatusCompleted, ActualHours: testutil.Hours(2)})
	require.NoError(t, err)

	outcome, err = f.svc.SendCompletionSummary(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ChannelSimulated, outcome.Channel)
	assert.Equal(t, []summaryCall{{userName: "ana", completed: 1, totalHours: 2}}, f.notifier.calls)

	pref.SendCompletionSummary = false
	require.NoError(t, f.store.SavePreference(ctx, &pref))
	outcome, err = f.svc.SendCompletionSummary(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ChannelSkipped, outcome.Channel)
	assert.Len(t, f.notifier.calls, 1)
}
