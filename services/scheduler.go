package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/logger"
)

// Clock abstracts time for the scheduler.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// TaskFunc is a scheduled job body.
type TaskFunc func(ctx context.Context) error

// TaskStatus is a snapshot of one scheduled task.
type TaskStatus struct {
	Name     string    `json:"name"`
	Enabled  bool      `json:"enabled"`
	NextFire time.Time `json:"next_fire"`
	LastRun  time.Time `json:"last_run,omitempty"`
	LastErr  string    `json:"last_error,omitempty"`
}

type scheduledTask struct {
	name     string
	fn       TaskFunc
	interval time.Duration // zero for daily tasks
	hour     int
	minute   int
	daily    bool
	enabled  bool
	nextFire time.Time
	lastRun  time.Time
	lastErr  string
}

// Scheduler runs registered tasks at daily times or fixed intervals. It
// polls the clock rather than arming timers, so a fake clock can drive it
// deterministically.
type Scheduler struct {
	mu       sync.Mutex
	tasks    map[string]*scheduledTask
	clock    Clock
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewScheduler(clock Clock) *Scheduler {
	if clock == nil {
		clock = systemClock{}
	}
	return &Scheduler{
		tasks:    make(map[string]*scheduledTask),
		clock:    clock,
		interval: 30 * time.Second,
		stopChan: make(chan struct{}),
	}
}

// AddDailyTask schedules fn every day at hour:minute.
func (s *Scheduler) AddDailyTask(name string, hour, minute int, fn TaskFunc) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid time %02d:%02d for task %s", hour, minute, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task := &scheduledTask{
		name:    name,
		fn:      fn,
		hour:    hour,
		minute:  minute,
		daily:   true,
		enabled: true,
	}
	task.nextFire = nextDaily(s.clock.Now(), hour, minute)
	s.tasks[name] = task
	return nil
}

// AddIntervalTask schedules fn every interval.
func (s *Scheduler) AddIntervalTask(name string, interval time.Duration, fn TaskFunc) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval %v for task %s", interval, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[name] = &scheduledTask{
		name:     name,
		fn:       fn,
		interval: interval,
		enabled:  true,
		nextFire: s.clock.Now().Add(interval),
	}
	return nil
}

// SetEnabled toggles a task without removing it. Re-enabling a daily task
// recomputes its next fire so a long-disabled task does not fire
// immediately for every missed day.
func (s *Scheduler) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[name]
	if !ok {
		return fmt.Errorf("unknown task %s", name)
	}

	if enabled && !task.enabled {
		now := s.clock.Now()
		if task.daily {
			task.nextFire = nextDaily(now, task.hour, task.minute)
		} else {
			task.nextFire = now.Add(task.interval)
		}
	}
	task.enabled = enabled
	return nil
}

// RemoveTask unregisters a task. A removed task never fires again.
func (s *Scheduler) RemoveTask(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[name]; !ok {
		return fmt.Errorf("unknown task %s", name)
	}
	delete(s.tasks, name)
	return nil
}

// RunNow fires a task immediately regardless of its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	task, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown task %s", name)
	}

	err := s.execute(ctx, task)

	s.mu.Lock()
	task.lastRun = s.clock.Now()
	if err != nil {
		task.lastErr = err.Error()
	} else {
		task.lastErr = ""
	}
	s.mu.Unlock()

	return err
}

// Status lists all tasks sorted by name.
func (s *Scheduler) Status() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskStatus, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, TaskStatus{
			Name:     task.name,
			Enabled:  task.enabled,
			NextFire: task.nextFire,
			LastRun:  task.lastRun,
			LastErr:  task.lastErr,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start runs the polling loop until Stop is called. Call in a goroutine.
func (s *Scheduler) Start() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Info("Scheduler started", "tasks", len(s.Status()))

	for {
		select {
		case <-ticker.C:
			s.Tick()
		case <-s.stopChan:
			logger.Info("Scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// Tick runs every task whose fire time has arrived. Exported so tests can
// drive the scheduler with a fake clock.
func (s *Scheduler) Tick() {
	now := s.clock.Now()

	s.mu.Lock()
	due := make([]*scheduledTask, 0)
	for _, task := range s.tasks {
		if task.enabled && !now.Before(task.nextFire) {
			due = append(due, task)
			// Advance from the scheduled time, not from now, so the
			// cadence does not drift with execution lag. Missed fires
			// after a stall collapse into this single run.
			if task.daily {
				for !now.Before(task.nextFire) {
					task.nextFire = nextDaily(task.nextFire, task.hour, task.minute)
				}
			} else {
				for !now.Before(task.nextFire) {
					task.nextFire = task.nextFire.Add(task.interval)
				}
			}
		}
	}
	s.mu.Unlock()

	for _, task := range due {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		err := s.execute(ctx, task)
		cancel()

		s.mu.Lock()
		task.lastRun = now
		if err != nil {
			task.lastErr = err.Error()
			logger.Error("Scheduled task failed", "task", task.name, "error", err)
		} else {
			task.lastErr = ""
			logger.Info("Scheduled task completed", "task", task.name)
		}
		s.mu.Unlock()
	}
}

// execute runs the task body, turning panics into errors so one bad task
// cannot take down the loop.
func (s *Scheduler) execute(ctx context.Context, task *scheduledTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task.name, r)
		}
	}()
	return task.fn(ctx)
}

// nextDaily returns the first hour:minute strictly after t.
func nextDaily(t time.Time, hour, minute int) time.Time {
	next := time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
