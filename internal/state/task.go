package state

import (
	"github.com/srcfl/srcful-gateway-sub001/internal/blackboard"
	"github.com/srcfl/srcful-gateway-sub001/internal/task"
)

// Save timing in milliseconds.
const (
	// FirstSaveDelayMs is when the first perpetual save runs after start-up.
	FirstSaveDelayMs = 60_000

	// PerpetualIntervalMs is the time between perpetual saves.
	PerpetualIntervalMs = 5 * 60_000

	// PerpetualRetryMs is the delay after a failed perpetual save.
	PerpetualRetryMs = 10_000
)

// SaveTask writes one snapshot and finishes. A failure is logged and not
// retried; the perpetual task writes a fresh snapshot soon enough.
//
// The snapshot is taken when the task runs, not when it is created, so that
// a burst of mutations still saves the latest state.
type SaveTask struct {
	task.Base
	bb    *blackboard.Blackboard
	saver *Saver
}

// NewSaveTask returns a SaveTask due at dueMs.
func NewSaveTask(dueMs int64, bb *blackboard.Blackboard, saver *Saver) *SaveTask {
	return &SaveTask{Base: task.NewBase(dueMs), bb: bb, saver: saver}
}

func (t *SaveTask) Execute(int64) (task.Result, error) {
	if err := t.saver.saveNow(t.bb); err != nil {
		t.saver.logger.Error("saving state", "error", err)
	}
	return task.Done(), nil
}

// PerpetualSaveTask saves every PerpetualIntervalMs for the life of the
// gateway.
type PerpetualSaveTask struct {
	task.Base
	bb    *blackboard.Blackboard
	saver *Saver
}

// NewPerpetualSaveTask returns a PerpetualSaveTask due at dueMs.
func NewPerpetualSaveTask(dueMs int64, bb *blackboard.Blackboard, saver *Saver) *PerpetualSaveTask {
	return &PerpetualSaveTask{Base: task.NewBase(dueMs), bb: bb, saver: saver}
}

func (t *PerpetualSaveTask) Execute(nowMs int64) (task.Result, error) {
	if err := t.saver.saveNow(t.bb); err != nil {
		t.saver.logger.Warn("saving state, retrying", "error", err, "retry_ms", PerpetualRetryMs)
		return task.Continue(t, nowMs+PerpetualRetryMs), nil
	}
	t.saver.logger.Debug("state saved")
	return task.Continue(t, nowMs+PerpetualIntervalMs), nil
}
