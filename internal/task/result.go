package task

// Kind tags what a Result asks the scheduler to do.
type Kind int

const (
	// KindDone means the task finished and nothing follows.
	KindDone Kind = iota

	// KindContinue means the task rescheduled itself.
	KindContinue

	// KindSpawn means the task produced other follow-ups.
	KindSpawn

	// KindStop asks the scheduler to terminate its run loop.
	KindStop
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindDone:
		return "done"
	case KindContinue:
		return "continue"
	case KindSpawn:
		return "spawn"
	case KindStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of Task.Execute.
type Result struct {
	kind  Kind
	tasks []Task
}

// Done returns a result with no follow-ups.
func Done() Result {
	return Result{kind: KindDone}
}

// Continue reschedules self at nextMs.
func Continue(self Task, nextMs int64) Result {
	self.AdjustDueTime(nextMs)
	return Result{kind: KindContinue, tasks: []Task{self}}
}

// Spawn returns the given follow-ups. Nil tasks are skipped; with no tasks
// left the result is Done.
func Spawn(tasks ...Task) Result {
	r := Result{kind: KindSpawn}
	r.tasks = appendNonNil(r.tasks, tasks)
	if len(r.tasks) == 0 {
		return Done()
	}
	return r
}

// Stop asks the scheduler to stop. Follow-ups are never attached to it.
func Stop() Result {
	return Result{kind: KindStop}
}

// With appends follow-ups. A Done result becomes a Spawn; Stop is unchanged.
func (r Result) With(tasks ...Task) Result {
	if r.kind == KindStop {
		return r
	}

	out := Result{kind: r.kind, tasks: make([]Task, 0, len(r.tasks)+len(tasks))}
	out.tasks = append(out.tasks, r.tasks...)
	out.tasks = appendNonNil(out.tasks, tasks)
	if out.kind == KindDone && len(out.tasks) > 0 {
		out.kind = KindSpawn
	}
	return out
}

// Kind returns the result tag.
func (r Result) Kind() Kind {
	return r.kind
}

// FollowUps returns the tasks to schedule next.
func (r Result) FollowUps() []Task {
	return r.tasks
}

// IsStop reports whether the scheduler should stop.
func (r Result) IsStop() bool {
	return r.kind == KindStop
}

func appendNonNil(dst []Task, src []Task) []Task {
	for _, t := range src {
		if t != nil {
			dst = append(dst, t)
		}
	}
	return dst
}
