package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/smarttask/internal/model"
	"github.com/nhle/smarttask/internal/store"
	"github.com/nhle/smarttask/tests/testutil"
)

type sent struct {
	kind     model.JobKind
	userID   int64
	userName string
	titles   []string
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sent
	failFor map[int64]error
	panicOn map[int64]bool
}

func (f *fakeNotifier) record(kind model.JobKind, userID int64, userName string, tasks []model.Task) (model.DeliveryOutcome, error) {
	if f.panicOn[userID] {
		panic("boom")
	}
	if err := f.failFor[userID]; err != nil {
		return model.DeliveryOutcome{}, err
	}

	titles := make([]string, len(tasks))
	for i, t := range tasks {
		titles[i] = t.Title
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{kind: kind, userID: userID, userName: userName, titles: titles})
	return model.DeliveryOutcome{UserID: userID, Channel: model.ChannelSimulated}, nil
}

func (f *fakeNotifier) SendDailyReminder(_ context.Context, userID int64, userName string, tasks []model.Task) (model.DeliveryOutcome, error) {
	return f.record(model.JobDailyReminder, userID, userName, tasks)
}

func (f *fakeNotifier) SendOverdueAlert(_ context.Context, userID int64, userName string, tasks []model.Task) (model.DeliveryOutcome, error) {
	return f.record(model.JobOverdueAlert, userID, userName, tasks)
}

func (f *fakeNotifier) users() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, len(f.sent))
	for i, s := range f.sent {
		ids[i] = s.userID
	}
	return ids
}

// faultyViewer fails every task read of one user.
type faultyViewer struct {
	store    store.Store
	failUser int64
}

type faultyReader struct {
	store.Reader
	failUser int64
}

func (r faultyReader) TasksByStatus(ctx context.Context, userID int64, status model.TaskStatus) ([]model.Task, error) {
	if userID == r.failUser {
		return nil, errors.New("disk on fire")
	}
	return r.Reader.TasksByStatus(ctx, userID, status)
}

func (v faultyViewer) View(ctx context.Context, fn func(r store.Reader) error) error {
	return v.store.View(ctx, func(r store.Reader) error {
		return fn(faultyReader{Reader: r, failUser: v.failUser})
	})
}

func savePref(t *testing.T, s store.Store, userID int64, at string, mutate func(*model.NotificationPreference)) {
	t.Helper()
	pref := model.NewNotificationPreference(userID)
	pref.Enabled = true
	if at != "" {
		tod, err := model.ParseTimeOfDay(at)
		require.NoError(t, err)
		pref.DailyReminderTime = &tod
	}
	if mutate != nil {
		mutate(&pref)
	}
	require.NoError(t, s.SavePreference(context.Background(), &pref))
}

func saveTask(t *testing.T, s store.Store, task model.Task) {
	t.Helper()
	require.NoError(t, s.SaveTask(context.Background(), &task))
}

var reminderAt = time.Date(2026, 5, 4, 8, 0, 42, 0, time.UTC)

func TestScheduler_DailyReminderSortsByPriority(t *testing.T) {
	s := testutil.NewTestStore(t)
	u := testutil.CreateUser(t, s, "ana")
	savePref(t, s, u.ID, "08:00", nil)

	saveTask(t, s, model.Task{UserID: u.ID, Title: "low", Priority: model.PriorityLow})
	saveTask(t, s, model.Task{UserID: u.ID, Title: "urgent", Priority: model.PriorityUrgent, Status: model.StatusInProgress})
	saveTask(t, s, model.Task{UserID: u.ID, Title: "medium", Priority: model.PriorityMedium})
	saveTask(t, s, model.Task{UserID: u.ID, Title: "done", Priority: model.PriorityUrgent, Status: model.StatusCompleted})

	n := &fakeNotifier{}
	require.NoError(t, New(s, n, 1).SendScheduledNotifications(context.Background(), reminderAt))

	require.Len(t, n.sent, 1)
	assert.Equal(t, "ana", n.sent[0].userName)
	assert.Equal(t, []string{"urgent", "medium", "low"}, n.sent[0].titles)
}

func TestScheduler_DailyReminderOnlyMatchingMinuteAndEnabled(t *testing.T) {
	s := testutil.NewTestStore(t)
	match := testutil.CreateUser(t, s, "match")
	other := testutil.CreateUser(t, s, "other")
	off := testutil.CreateUser(t, s, "off")
	savePref(t, s, match.ID, "08:00", nil)
	savePref(t, s, other.ID, "08:01", nil)
	savePref(t, s, off.ID, "08:00", func(p *model.NotificationPreference) { p.Enabled = false })

	n := &fakeNotifier{}
	require.NoError(t, New(s, n, 1).SendScheduledNotifications(context.Background(), reminderAt))

	assert.Equal(t, []int64{match.ID}, n.users())
	assert.Empty(t, n.sent[0].titles)
}

func TestScheduler_FailureIsIsolatedPerUser(t *testing.T) {
	s := testutil.NewTestStore(t)
	a := testutil.CreateUser(t, s, "a")
	b := testutil.CreateUser(t, s, "b")
	c := testutil.CreateUser(t, s, "c")
	for _, u := range []*model.User{a, b, c} {
		savePref(t, s, u.ID, "08:00", nil)
	}

	n := &fakeNotifier{
		failFor: map[int64]error{a.ID: errors.New("vault exploded")},
		panicOn: map[int64]bool{b.ID: true},
	}
	require.NoError(t, New(s, n, 1).SendScheduledNotifications(context.Background(), reminderAt))
	assert.Equal(t, []int64{c.ID}, n.users())
}

func TestScheduler_ReadFailureIsIsolatedPerUser(t *testing.T) {
	s := testutil.NewTestStore(t)
	a := testutil.CreateUser(t, s, "a")
	b := testutil.CreateUser(t, s, "b")
	savePref(t, s, a.ID, "08:00", nil)
	savePref(t, s, b.ID, "08:00", nil)

	n := &fakeNotifier{}
	sched := New(faultyViewer{store: s, failUser: a.ID}, n, 1)
	require.NoError(t, sched.SendScheduledNotifications(context.Background(), reminderAt))
	assert.Equal(t, []int64{b.ID}, n.users())
}

func TestScheduler_WorkerPoolDeliversEveryone(t *testing.T) {
	s := testutil.NewTestStore(t)
	var want []int64
	for _, name := range []string{"u1", "u2", "u3", "u4", "u5"} {
		u := testutil.CreateUser(t, s, name)
		savePref(t, s, u.ID, "08:00", nil)
		want = append(want, u.ID)
	}

	n := &fakeNotifier{}
	require.NoError(t, New(s, n, 3).SendScheduledNotifications(context.Background(), reminderAt))
	assert.ElementsMatch(t, want, n.users())
}

func TestScheduler_OverdueAlerts(t *testing.T) {
	s := testutil.NewTestStore(t)
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	late := testutil.CreateUser(t, s, "late")
	optedOut := testutil.CreateUser(t, s, "optedout")
	onTime := testutil.CreateUser(t, s, "ontime")
	savePref(t, s, late.ID, "", nil)
	savePref(t, s, optedOut.ID, "", func(p *model.NotificationPreference) { p.SendOverdueAlerts = false })
	savePref(t, s, onTime.ID, "", nil)

	saveTask(t, s, model.Task{UserID: late.ID, Title: "pay rent", DueDate: &past})
	saveTask(t, s, model.Task{UserID: late.ID, Title: "finished", DueDate: &past, Status: model.StatusCompleted})
	saveTask(t, s, model.Task{UserID: optedOut.ID, Title: "ignored", DueDate: &past})
	saveTask(t, s, model.Task{UserID: onTime.ID, Title: "later", DueDate: &future})

	n := &fakeNotifier{}
	require.NoError(t, New(s, n, 1).SendOverdueAlerts(context.Background(), now))

	require.Len(t, n.sent, 1)
	assert.Equal(t, model.JobOverdueAlert, n.sent[0].kind)
	assert.Equal(t, late.ID, n.sent[0].userID)
	assert.Equal(t, []string{"pay rent"}, n.sent[0].titles)
}

func TestSortByPriority_StableForEqualRanks(t *testing.T) {
	tasks := []model.Task{
		{Title: "a", Priority: model.PriorityLow},
		{Title: "b"},
		{Title: "c", Priority: model.PriorityHigh},
		{Title: "d", Priority: model.PriorityLow},
		{Title: "e", Priority: model.PriorityHigh},
	}
	sortByPriority(tasks)

	var titles []string
	for _, task := range tasks {
		titles = append(titles, task.Title)
	}
	assert.Equal(t, []string{"c", "e", "a", "d", "b"}, titles)
}

func TestNextMinute(t *testing.T) {
	got := nextMinute(time.Date(2026, 5, 4, 8, 0, 42, 500, time.UTC))
	assert.Equal(t, time.Date(2026, 5, 4, 8, 1, 0, 0, time.UTC), got)

	got = nextMinute(time.Date(2026, 5, 4, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC), got)
}

func TestNextOverdueRun(t *testing.T) {
	cases := []struct {
		in, want time.Time
	}{
		{time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), time.Date(2026, 5, 4, 6, 0, 0, 0, time.UTC)},
		{time.Date(2026, 5, 4, 5, 59, 59, 0, time.UTC), time.Date(2026, 5, 4, 6, 0, 0, 0, time.UTC)},
		{time.Date(2026, 5, 4, 13, 10, 0, 0, time.UTC), time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)},
		{time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC), time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, nextOverdueRun(c.in), c.in.String())
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	s := testutil.NewTestStore(t)
	sched := New(s, &fakeNotifier{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestScheduler_Stop(t *testing.T) {
	s := testutil.NewTestStore(t)
	sched := New(s, &fakeNotifier{}, 1)

	done := make(chan struct{})
	go func() {
		sched.Run(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		sched.mu.Lock()
		defer sched.mu.Unlock()
		return sched.running
	}, time.Second, 5*time.Millisecond)

	sched.Stop()
	sched.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

// blockingNotifier holds the first daily reminder until release is closed.
type blockingNotifier struct {
	fakeNotifier
	once     sync.Once
	entered  chan struct{}
	release  chan struct{}
	finished atomic.Int32
}

func (b *blockingNotifier) SendDailyReminder(ctx context.Context, userID int64, userName string, tasks []model.Task) (model.DeliveryOutcome, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	defer b.finished.Add(1)
	return b.fakeNotifier.SendDailyReminder(ctx, userID, userName, tasks)
}

func TestScheduler_StopWaitsForInFlightTick(t *testing.T) {
	s := testutil.NewTestStore(t)
	u := testutil.CreateUser(t, s, "ana")
	savePref(t, s, u.ID, "07:59", nil)

	n := &blockingNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	sched := New(s, n, 1)
	// One millisecond before the next minute, so the reminder timer fires at once.
	sched.clock = func() time.Time { return time.Date(2026, 5, 4, 7, 59, 59, 999_000_000, time.UTC) }

	done := make(chan struct{})
	go func() {
		sched.Run(context.Background())
		close(done)
	}()

	select {
	case <-n.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("reminder tick never started")
	}

	stopped := make(chan struct{})
	go func() {
		sched.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a tick was still delivering")
	case <-time.After(50 * time.Millisecond):
	}

	close(n.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the tick finished")
	}

	assert.GreaterOrEqual(t, n.finished.Load(), int32(1))
	sched.mu.Lock()
	assert.False(t, sched.running)
	sched.mu.Unlock()
	<-done
}
