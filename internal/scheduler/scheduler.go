package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/srcfl/srcful-gateway-sub001/internal/task"
)

// Scheduling constants.
const (
	// DefaultWorkers is the worker pool size when Config.Workers is zero.
	DefaultWorkers = 4

	// DefaultShutdownTimeout bounds how long Run waits for in-flight tasks.
	DefaultShutdownTimeout = 30 * time.Second

	// staleDelayMs is added to "now" for tasks added with a due time that
	// has already passed.
	staleDelayMs = 100
)

// ErrAlreadyRun is returned when Run is called a second time.
var ErrAlreadyRun = errors.New("scheduler: already run")

// Source provides the clock and the injected-task inbox. It is implemented
// by *blackboard.Blackboard.
type Source interface {
	NowMs() int64
	PurgeTasks() []task.Task
}

// taskNotifier is implemented by sources that can wake the loop when a task
// is injected.
type taskNotifier interface {
	SetTaskListener(fn func())
}

// Logger defines the logging interface used by the Scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Metrics receives scheduler measurements.
type Metrics interface {
	TaskExecuted(kind string)
	TaskFailed()
	QueueDepth(n int)
	ActiveWorkers(n int)
}

type noopMetrics struct{}

func (noopMetrics) TaskExecuted(string) {}
func (noopMetrics) TaskFailed()         {}
func (noopMetrics) QueueDepth(int)      {}
func (noopMetrics) ActiveWorkers(int)   {}

// Config contains scheduler settings.
type Config struct {
	// Workers is the number of tasks that may execute concurrently.
	Workers int

	// ShutdownTimeout bounds how long Run waits for in-flight tasks after
	// a stop.
	ShutdownTimeout time.Duration

	Logger  Logger
	Metrics Metrics
}

// Scheduler runs due tasks on a bounded worker pool.
//
// One goroutine (Run) owns dispatch: it pops the earliest task once it is due
// and a worker is free, otherwise it sleeps until the earliest due time, a new
// task arrives or a worker finishes. Tasks with earlier due times are offered
// first; tasks due at the same time run in unspecified order.
//
// Add and Stop are safe for concurrent use.
type Scheduler struct {
	source  Source
	pool    *ants.Pool
	workers int
	timeout time.Duration
	logger  Logger
	metrics Metrics

	mu      sync.Mutex
	queue   taskHeap
	seq     uint64
	active  int
	stopped bool
	ran     bool

	wake chan struct{}
}

// New creates a Scheduler that reads time and injected tasks from source.
func New(source Source, cfg Config) (*Scheduler, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	s := &Scheduler{
		source:  source,
		pool:    pool,
		workers: cfg.Workers,
		timeout: cfg.ShutdownTimeout,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		wake:    make(chan struct{}, 1),
	}

	if n, ok := source.(taskNotifier); ok {
		n.SetTaskListener(s.signal)
	}
	return s, nil
}

// Add queues t. A task whose due time is not in the future is moved to
// now+100ms so that fast resubmission cannot starve the loop.
func (s *Scheduler) Add(t task.Task) {
	if t == nil {
		return
	}

	now := s.source.NowMs()
	if due := t.DueTimeMs(); due <= now {
		s.logger.Warn("task due time in the past, delaying",
			"task", fmt.Sprintf("%T", t),
			"due", due,
			"now", now,
		)
		t.AdjustDueTime(now + staleDelayMs)
	}

	s.mu.Lock()
	s.seq++
	heap.Push(&s.queue, queueItem{t: t, due: t.DueTimeMs(), seq: s.seq})
	depth := len(s.queue)
	s.mu.Unlock()

	s.metrics.QueueDepth(depth)
	s.signal()
}

// Stop makes Run return after in-flight tasks finish. Queued tasks are not
// executed.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.signal()
}

// Len returns the number of queued tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Active returns the number of executing tasks.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Run dispatches tasks until Stop is called, a task returns task.Stop() or
// ctx is cancelled. It then waits up to the shutdown timeout for executing
// tasks and releases the worker pool. Run can only be called once.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.ran {
		s.mu.Unlock()
		return ErrAlreadyRun
	}
	s.ran = true
	s.mu.Unlock()

	s.logger.Info("scheduler started", "workers", s.workers)

	for {
		if ctx.Err() != nil {
			s.Stop()
		}
		for _, t := range s.source.PurgeTasks() {
			s.Add(t)
		}

		next, wait, stop := s.next()
		if stop {
			break
		}
		if next != nil {
			s.dispatch(next)
			continue
		}

		if !s.sleep(ctx, wait) {
			s.Stop()
		}
	}

	s.logger.Info("scheduler stopping", "in_flight", s.Active(), "queued", s.Len())
	if err := s.pool.ReleaseTimeout(s.timeout); err != nil {
		return fmt.Errorf("waiting for running tasks: %w", err)
	}
	s.logger.Info("scheduler stopped")
	return nil
}

// next pops the earliest task if it is due and a worker is free. Otherwise
// it returns how long to sleep (negative means until woken).
func (s *Scheduler) next() (t task.Task, wait time.Duration, stop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, 0, true
	}
	if s.active >= s.workers || len(s.queue) == 0 {
		return nil, -1, false
	}

	now := s.source.NowMs()
	head := s.queue.peek()
	if head.due > now {
		return nil, time.Duration(head.due-now) * time.Millisecond, false
	}

	item := heap.Pop(&s.queue).(queueItem)
	s.active++
	s.metrics.ActiveWorkers(s.active)
	s.metrics.QueueDepth(len(s.queue))
	return item.t, 0, false
}

// sleep blocks for d (or until woken when d < 0). It returns false when ctx
// is done.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d < 0 {
		select {
		case <-s.wake:
			return true
		case <-ctx.Done():
			return false
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-s.wake:
	case <-timer.C:
	case <-ctx.Done():
		return false
	}
	return true
}

// signal wakes the loop without blocking.
func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) dispatch(t task.Task) {
	if err := s.pool.Submit(func() { s.execute(t) }); err != nil {
		s.logger.Error("submitting task to pool", "task", fmt.Sprintf("%T", t), "error", err)

		s.mu.Lock()
		s.active--
		s.seq++
		heap.Push(&s.queue, queueItem{t: t, due: t.DueTimeMs(), seq: s.seq})
		s.mu.Unlock()
	}
}

// execute runs on a pool worker. A failing or panicking task is logged and
// dropped; it never takes the loop down.
func (s *Scheduler) execute(t task.Task) {
	name := fmt.Sprintf("%T", t)

	defer func() {
		if r := recover(); r != nil {
			s.metrics.TaskFailed()
			s.logger.Error("task panic recovered", "task", name, "panic", r)
		}

		s.mu.Lock()
		s.active--
		active := s.active
		s.mu.Unlock()

		s.metrics.ActiveWorkers(active)
		s.signal()
	}()

	res, err := t.Execute(s.source.NowMs())
	if err != nil {
		s.metrics.TaskFailed()
		s.logger.Error("task failed", "task", name, "error", err)
		return
	}

	s.metrics.TaskExecuted(res.Kind().String())
	if res.IsStop() {
		s.logger.Info("stop requested by task", "task", name)
		s.Stop()
		return
	}

	for _, f := range res.FollowUps() {
		s.Add(f)
	}
}
