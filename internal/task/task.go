package task

// Task is a unit of deferred work ordered by its due time.
//
// Execute is called by a scheduler worker once the due time has passed. The
// returned Result tells the scheduler what to run next. A task must only touch
// shared state through the blackboard it was constructed with, and it must not
// assume it runs on the same goroutine between invocations.
type Task interface {
	// DueTimeMs returns the time, in clock milliseconds, the task wants to run.
	DueTimeMs() int64

	// AdjustDueTime moves the due time. The scheduler uses it to clamp stale
	// tasks; tasks use it to reschedule themselves.
	AdjustDueTime(ms int64)

	// Execute performs the work. A non-nil error is logged by the scheduler
	// and the task is dropped without follow-ups.
	Execute(nowMs int64) (Result, error)
}

// Source lets code that is not a task inject work into the scheduler.
type Source interface {
	AddTask(t Task)
	PurgeTasks() []Task
}

// Base carries the due time for tasks that embed it.
//
// The scheduler never reads a task's due time while Execute is running, so
// no locking is needed.
type Base struct {
	dueMs int64
}

// NewBase returns a Base due at dueMs.
func NewBase(dueMs int64) Base {
	return Base{dueMs: dueMs}
}

// DueTimeMs returns the due time.
func (b *Base) DueTimeMs() int64 {
	return b.dueMs
}

// AdjustDueTime sets the due time.
func (b *Base) AdjustDueTime(ms int64) {
	b.dueMs = ms
}
