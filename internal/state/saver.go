package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/srcfl/srcful-gateway-sub001/internal/blackboard"
	"github.com/srcfl/srcful-gateway-sub001/internal/task"
)

// saveTimeout bounds one save across all sinks.
const saveTimeout = 10 * time.Second

// Sink receives state snapshots.
type Sink interface {
	SaveState(ctx context.Context, st blackboard.State) error
}

// Logger defines the logging interface used by the state package.
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

// Saver fans a snapshot out to its sinks.
type Saver struct {
	sinks  []Sink
	logger Logger
}

// NewSaver returns a Saver writing to sinks. Nil sinks are skipped.
func NewSaver(logger Logger, sinks ...Sink) *Saver {
	if logger == nil {
		logger = noopLogger{}
	}
	s := &Saver{logger: logger}
	for _, sink := range sinks {
		if sink != nil {
			s.sinks = append(s.sinks, sink)
		}
	}
	return s
}

// Save writes st to every sink. All sinks are tried; the failures are
// joined.
func (s *Saver) Save(ctx context.Context, st blackboard.State) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.SaveState(ctx, st); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", sink, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	return nil
}

// Factory returns the blackboard hook that turns save requests into
// SaveTasks.
func (s *Saver) Factory() blackboard.SaveStateFactory {
	return func(dueMs int64, bb *blackboard.Blackboard) task.Task {
		return NewSaveTask(dueMs, bb, s)
	}
}

// saveNow snapshots bb and saves it under saveTimeout.
func (s *Saver) saveNow(bb *blackboard.Blackboard) error {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	return s.Save(ctx, bb.State())
}
