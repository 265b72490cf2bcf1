package lifecycle

import (
	"context"

	"github.com/srcfl/srcful-gateway-sub001/internal/blackboard"
	"github.com/srcfl/srcful-gateway-sub001/internal/device"
	"github.com/srcfl/srcful-gateway-sub001/internal/settings"
	"github.com/srcfl/srcful-gateway-sub001/internal/task"
)

// StaggerMs spaces out the connection tasks scheduled together so that
// devices on the same bus are not opened at the same instant.
const StaggerMs = 500

// SettingsListener schedules connection tasks when the backend changes the
// device connections.
type SettingsListener struct {
	bb      *blackboard.Blackboard
	factory *device.Factory
	remove  func()
}

// NewSettingsListener starts listening on bb's device settings. Call Close
// to stop.
func NewSettingsListener(bb *blackboard.Blackboard, factory *device.Factory) *SettingsListener {
	l := &SettingsListener{bb: bb, factory: factory}
	l.remove = bb.Settings().Devices.AddListener(l.onChange)
	return l
}

// Close stops listening.
func (l *SettingsListener) Close() {
	l.remove()
}

func (l *SettingsListener) onChange(source settings.ChangeSource) {
	if source != settings.SourceBackend {
		return
	}

	conns := l.bb.Settings().Devices.Connections()
	tasks := connectionTasks(l.bb, l.factory, conns, l.bb.NowMs())
	l.bb.Logger().Info("device connections changed by backend",
		"connections", len(conns),
		"scheduled", len(tasks),
	)
	for _, t := range tasks {
		l.bb.AddTask(t)
	}
}

// Bootstrap merges the given connections and the persisted ones into
// settings and returns one connection task per configured connection,
// staggered from now.
func Bootstrap(ctx context.Context, bb *blackboard.Blackboard, factory *device.Factory, configured []device.Config) []task.Task {
	log := bb.Logger()
	devs := bb.Settings().Devices

	for _, cfg := range configured {
		devs.AddConnection(cfg, settings.SourceLocal)
	}

	if store := bb.Connections(); store != nil {
		stored, err := store.Connections(ctx)
		if err != nil {
			log.Warn("loading stored connections", "error", err)
		}
		for _, cfg := range stored {
			if !devs.ContainsSerial(cfg.SerialNumber()) {
				devs.AddConnection(cfg, settings.SourceLocal)
			}
		}
	}

	tasks := connectionTasks(bb, factory, devs.Connections(), bb.NowMs())
	log.Info("bootstrap connections scheduled", "count", len(tasks))
	return tasks
}

// connectionTasks builds a task for every connection whose device is not
// registered and open. The first task is due StaggerMs after nowMs.
func connectionTasks(bb *blackboard.Blackboard, factory *device.Factory, conns []device.Config, nowMs int64) []task.Task {
	var tasks []task.Task
	for _, cfg := range conns {
		if d := bb.Devices().FindBySerial(cfg.SerialNumber()); d != nil && d.IsOpen() {
			continue
		}

		dev, err := factory.NewFromConfig(cfg)
		if err != nil {
			bb.Logger().Error("building device from connection", "config", cfg.String(), "error", err)
			continue
		}

		due := nowMs + int64(len(tasks)+1)*StaggerMs
		tasks = append(tasks, NewConnectionTask(due, bb, dev))
	}
	return tasks
}
