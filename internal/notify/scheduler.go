// Package notify runs the periodic WhatsApp jobs: the per-minute daily
// reminder and the six-hourly overdue alert.
package notify

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/smarttask/internal/model"
	"github.com/nhle/smarttask/internal/store"
)

// tickTimeout bounds one run of a job, reads and deliveries included.
const tickTimeout = 5 * time.Minute

const overdueIntervalHours = 6

// Viewer runs a function inside one read transaction.
type Viewer interface {
	View(ctx context.Context, fn func(r store.Reader) error) error
}

// Notifier delivers the scheduled messages.
type Notifier interface {
	SendDailyReminder(ctx context.Context, userID int64, userName string, tasks []model.Task) (model.DeliveryOutcome, error)
	SendOverdueAlert(ctx context.Context, userID int64, userName string, overdue []model.Task) (model.DeliveryOutcome, error)
}

// delivery is the data gathered for one user during a tick.
type delivery struct {
	userID   int64
	userName string
	tasks    []model.Task
}

// Scheduler fires the reminder and overdue jobs on wall-clock boundaries.
// Store reads for a tick happen in one read transaction; messages are sent
// after it closes, on a pool of at most Workers goroutines. A failure for
// one user is logged and never stops the others.
type Scheduler struct {
	store    Viewer
	notifier Notifier
	workers  int
	clock    func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

// New creates a Scheduler. workers below 1 means sequential delivery.
func New(s Viewer, n Notifier, workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		store:    s,
		notifier: n,
		workers:  workers,
		clock:    time.Now,
	}
}

// Run blocks until ctx is cancelled or Stop is called, firing each job on
// its own timer.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	stopCh, done := s.stopCh, s.done
	s.mu.Unlock()

	log.Printf("[scheduler] started with %d worker(s)", s.workers)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.loop(ctx, stopCh, model.JobDailyReminder, nextMinute, s.SendScheduledNotifications)
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, stopCh, model.JobOverdueAlert, nextOverdueRun, s.SendOverdueAlerts)
	}()
	wg.Wait()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	close(done)
	log.Printf("[scheduler] stopped")
}

// Stop halts a running scheduler and waits for an in-flight tick to finish.
// It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running || s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	done := s.done
	s.mu.Unlock()

	<-done
}

func (s *Scheduler) loop(
	ctx context.Context,
	stopCh <-chan struct{},
	kind model.JobKind,
	next func(time.Time) time.Time,
	run func(ctx context.Context, now time.Time) error,
) {
	for {
		now := s.clock()
		timer := time.NewTimer(next(now).Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.C:
			tickCtx, cancel := context.WithTimeout(ctx, tickTimeout)
			if err := run(tickCtx, s.clock()); err != nil {
				log.Printf("[scheduler] %s tick failed: %v", kind, err)
			}
			cancel()
		}
	}
}

// SendScheduledNotifications sends the daily reminder to every enabled user
// whose reminder time is the minute of now. Each user's TODO and
// IN_PROGRESS tasks are listed highest priority first.
func (s *Scheduler) SendScheduledNotifications(ctx context.Context, now time.Time) error {
	job := newJob(model.JobDailyReminder, now.Truncate(time.Minute))
	at := model.TimeOfDayOf(job.FiredAt)

	var batch []delivery
	err := s.store.View(ctx, func(r store.Reader) error {
		prefs, err := r.PreferencesByReminderTime(ctx, at)
		if err != nil {
			return fmt.Errorf("listing preferences for %s: %w", at, err)
		}
		log.Printf("[scheduler] %s run=%s at %s: %d user(s)", job.Kind, job.RunID, at, len(prefs))

		for _, p := range prefs {
			d, err := isolate(p.UserID, func() (delivery, error) {
				return gatherReminder(ctx, r, p.UserID)
			})
			if err != nil {
				log.Printf("[scheduler] %s: reading data for user %d failed: %v", job.Kind, p.UserID, err)
				continue
			}
			batch = append(batch, d)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.dispatch(ctx, job, batch, func(ctx context.Context, d delivery) error {
		if _, err := s.notifier.SendDailyReminder(ctx, d.userID, d.userName, d.tasks); err != nil {
			return err
		}
		log.Printf("[scheduler] daily reminder for user %d with %d task(s)", d.userID, len(d.tasks))
		return nil
	})
	return nil
}

// SendOverdueAlerts warns every enabled user who opted into overdue alerts
// and has at least one task past its due date at now.
func (s *Scheduler) SendOverdueAlerts(ctx context.Context, now time.Time) error {
	job := newJob(model.JobOverdueAlert, now)

	var batch []delivery
	err := s.store.View(ctx, func(r store.Reader) error {
		prefs, err := r.EnabledPreferences(ctx)
		if err != nil {
			return fmt.Errorf("listing enabled preferences: %w", err)
		}
		log.Printf("[scheduler] %s run=%s: %d enabled user(s)", job.Kind, job.RunID, len(prefs))

		for _, p := range prefs {
			if !p.SendOverdueAlerts {
				continue
			}
			d, err := isolate(p.UserID, func() (delivery, error) {
				return gatherOverdue(ctx, r, p.UserID, now)
			})
			if err != nil {
				log.Printf("[scheduler] %s: reading data for user %d failed: %v", job.Kind, p.UserID, err)
				continue
			}
			if len(d.tasks) > 0 {
				batch = append(batch, d)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.dispatch(ctx, job, batch, func(ctx context.Context, d delivery) error {
		_, err := s.notifier.SendOverdueAlert(ctx, d.userID, d.userName, d.tasks)
		return err
	})
	return nil
}

func gatherReminder(ctx context.Context, r store.Reader, userID int64) (delivery, error) {
	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return delivery{}, err
	}

	var tasks []model.Task
	for _, status := range []model.TaskStatus{model.StatusTodo, model.StatusInProgress} {
		ts, err := r.TasksByStatus(ctx, userID, status)
		if err != nil {
			return delivery{}, err
		}
		tasks = append(tasks, ts...)
	}
	sortByPriority(tasks)

	return delivery{userID: userID, userName: user.Username, tasks: tasks}, nil
}

func gatherOverdue(ctx context.Context, r store.Reader, userID int64, now time.Time) (delivery, error) {
	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return delivery{}, err
	}
	tasks, err := r.OverdueTasks(ctx, userID, now)
	if err != nil {
		return delivery{}, err
	}
	return delivery{userID: userID, userName: user.Username, tasks: tasks}, nil
}

// dispatch runs send for every delivery on the worker pool. Errors and
// panics are logged per user.
func (s *Scheduler) dispatch(ctx context.Context, job model.ScheduledJob, batch []delivery, send func(context.Context, delivery) error) {
	var g errgroup.Group
	g.SetLimit(s.workers)

	for _, d := range batch {
		g.Go(func() error {
			_, err := isolate(d.userID, func() (struct{}, error) {
				return struct{}{}, send(ctx, d)
			})
			if err != nil {
				log.Printf("[scheduler] %s run=%s: user %d failed: %v", job.Kind, job.RunID, d.userID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// isolate runs fn and turns a panic into an error so one user's data can
// never take down a tick.
func isolate[T any](userID int64, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing user %d: %v", userID, r)
		}
	}()
	return fn()
}

// sortByPriority orders tasks by descending priority rank, keeping the
// store order among equal ranks.
func sortByPriority(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority.Rank() > tasks[j].Priority.Rank()
	})
}

func newJob(kind model.JobKind, firedAt time.Time) model.ScheduledJob {
	return model.ScheduledJob{Kind: kind, FiredAt: firedAt, RunID: uuid.NewString()}
}

// nextMinute returns the start of the minute after t.
func nextMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute).Add(time.Minute)
}

// nextOverdueRun returns the next 00:00, 06:00, 12:00 or 18:00 after t in
// t's location.
func nextOverdueRun(t time.Time) time.Time {
	slot := (t.Hour()/overdueIntervalHours + 1) * overdueIntervalHours
	return time.Date(t.Year(), t.Month(), t.Day(), slot, 0, 0, 0, t.Location())
}
