package harvest

import (
	"errors"
	"maps"

	"github.com/srcfl/srcful-gateway-sub001/internal/blackboard"
	"github.com/srcfl/srcful-gateway-sub001/internal/device"
	"github.com/srcfl/srcful-gateway-sub001/internal/lifecycle"
	"github.com/srcfl/srcful-gateway-sub001/internal/task"
)

// Harvest timing in milliseconds.
const (
	// FlushIntervalMs is the longest a sample waits in the barn.
	FlushIntervalMs = 10_000

	// ReconnectDelayMs delays the connection task started after a device
	// was lost.
	ReconnectDelayMs = 30_000

	// ReadRetryMs is the delay after a read error that is not a connection
	// loss.
	ReadRetryMs = 5_000

	// transportDelayMs is added to the due time of transport tasks.
	transportDelayMs = 100

	// statsWindowMs is the throughput logging window.
	statsWindowMs = 60_000

	// verboseEvery makes every n-th read a verbose one.
	verboseEvery = 10
)

// TransportFactory builds the task that delivers batch to endpoint.
type TransportFactory func(dueMs int64, bb *blackboard.Blackboard, endpoint string, batch map[int64]device.Sample, headers map[string]string) task.Task

// Metrics receives harvest measurements.
type Metrics interface {
	SampleHarvested(sn string)
	HarvestFailed(sn string, connectionLost bool)
	BatchFlushed(sn string, points, packets int)
}

type noopMetrics struct{}

func (noopMetrics) SampleHarvested(string)        {}
func (noopMetrics) HarvestFailed(string, bool)    {}
func (noopMetrics) BatchFlushed(string, int, int) {}

// Config holds the collaborators shared by all harvest tasks.
type Config struct {
	// Transports builds transport tasks. Required.
	Transports TransportFactory

	// Devices rebuilds handles for reconnection. Required.
	Devices *device.Factory

	Metrics Metrics
}

func (c Config) withDefaults() Config {
	if c.Metrics == nil {
		c.Metrics = noopMetrics{}
	}
	return c
}

// Task polls one open device.
//
// The barn maps the harvest time in milliseconds to the sample read then. It
// is handed over whole and replaced on every flush.
type Task struct {
	task.Base
	bb  *blackboard.Blackboard
	dev device.Device
	cfg Config

	barn        map[int64]device.Sample
	reads       int
	backoffMs   int64
	lastFlushMs int64
	forceFlush  bool

	statsStartMs int64
	packets      int
	points       int
}

// New creates a harvest task for dev, due at dueMs.
func New(dueMs int64, bb *blackboard.Blackboard, dev device.Device, cfg Config) *Task {
	now := bb.NowMs()
	return &Task{
		Base:         task.NewBase(dueMs),
		bb:           bb,
		dev:          dev,
		cfg:          cfg.withDefaults(),
		barn:         make(map[int64]device.Sample),
		backoffMs:    device.MinBackoffMs,
		lastFlushMs:  now,
		statsStartMs: now,
	}
}

// Device returns the harvested device.
func (t *Task) Device() device.Device {
	return t.dev
}

// BarnSize returns the number of samples waiting for transport.
func (t *Task) BarnSize() int {
	return len(t.barn)
}

// RequestFlush makes the next execution flush the barn regardless of age.
func (t *Task) RequestFlush() {
	t.forceFlush = true
}

// Execute runs one harvest cycle.
func (t *Task) Execute(nowMs int64) (task.Result, error) {
	if !t.dev.IsOpen() {
		return t.closed(nowMs), nil
	}

	log := t.bb.Logger()
	sn := t.dev.SerialNumber()

	verbose := len(t.barn) == 0 || t.reads%verboseEvery == 0
	t.reads++

	start := t.bb.NowMs()
	sample, err := t.dev.ReadHarvestData(verbose)
	readMs := t.bb.NowMs() - start

	var (
		next      int64
		reconnect task.Task
	)
	switch {
	case err == nil:
		t.barn[t.bb.NowMs()] = sample
		t.backoffMs = t.dev.BackoffMs(readMs, t.backoffMs)
		next = nowMs + t.backoffMs
		t.cfg.Metrics.SampleHarvested(sn)

	case errors.Is(err, device.ErrConnection):
		log.Error("device connection lost", "sn", sn, "error", err)
		t.cfg.Metrics.HarvestFailed(sn, true)
		t.dev.Disconnect()
		reconnect = t.reconnectTask(t.bb.NowMs() + ReconnectDelayMs)
		t.forceFlush = true

	default:
		log.Error("harvesting from device", "sn", sn, "error", err)
		t.cfg.Metrics.HarvestFailed(sn, false)
		next = t.bb.NowMs() + ReadRetryMs
	}

	// A device closed mid-read ends the task, so the barn goes out now.
	ending := reconnect != nil || t.dev.IsDisconnected()
	elapsed := t.bb.NowMs() - nowMs
	transports := t.flush(nowMs+elapsed*2, t.forceFlush || ending)

	if ending {
		return task.Spawn(transports...).With(reconnect), nil
	}
	return task.Continue(t, next).With(transports...), nil
}

// closed flushes what is left and, unless the user disconnected the
// device, starts reconnecting with a fresh handle.
func (t *Task) closed(nowMs int64) task.Result {
	log := t.bb.Logger()
	log.Info("device closed, final transport", "sn", t.dev.SerialNumber(), "barn", len(t.barn))

	transports := t.flush(nowMs, true)
	if t.dev.IsDisconnected() {
		return task.Spawn(transports...)
	}

	t.dev.Disconnect()
	return task.Spawn(transports...).With(t.reconnectTask(nowMs + ReconnectDelayMs))
}

// reconnectTask returns a connection task for a handle rebuilt from the
// device config, or nil when the config can no longer be built.
func (t *Task) reconnectTask(dueMs int64) task.Task {
	fresh, err := t.cfg.Devices.NewFromConfig(t.dev.Config())
	if err != nil {
		t.bb.Logger().Error("rebuilding device handle", "sn", t.dev.SerialNumber(), "error", err)
		return nil
	}
	return lifecycle.NewConnectionTask(dueMs, t.bb, fresh)
}

// flush hands the barn to one transport per endpoint when it is due.
func (t *Task) flush(baseMs int64, force bool) []task.Task {
	now := t.bb.NowMs()
	if len(t.barn) == 0 || !(force || now-t.lastFlushMs >= FlushIntervalMs) {
		return nil
	}

	endpoints := t.bb.Settings().Harvest.Endpoints()
	headers := device.HarvestHeaders(t.dev)
	sn := t.dev.SerialNumber()

	transports := make([]task.Task, 0, len(endpoints))
	for _, ep := range endpoints {
		tr := t.cfg.Transports(baseMs+transportDelayMs, t.bb, ep, maps.Clone(t.barn), maps.Clone(headers))
		if tr == nil {
			continue
		}
		transports = append(transports, tr)
		t.packets++
		t.points += len(t.barn)
	}
	t.cfg.Metrics.BatchFlushed(sn, len(t.barn), len(transports))

	t.bb.Logger().Debug("barn flushed", "sn", sn, "samples", len(t.barn), "endpoints", len(endpoints))

	if now-t.statsStartMs >= statsWindowMs {
		t.bb.Logger().Info("harvest throughput",
			"sn", sn,
			"data_points", t.points,
			"packets", t.packets,
			"window_ms", now-t.statsStartMs,
		)
		t.packets, t.points = 0, 0
		t.statsStartMs = now
	}

	t.barn = make(map[int64]device.Sample)
	t.lastFlushMs = now
	t.forceFlush = false
	return transports
}
