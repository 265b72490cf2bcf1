package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/srcfl/srcful-gateway-sub001/internal/blackboard"
	"github.com/srcfl/srcful-gateway-sub001/internal/device"
	"github.com/srcfl/srcful-gateway-sub001/internal/settings"
	"github.com/srcfl/srcful-gateway-sub001/internal/task"
)

// Retry delays in milliseconds.
const (
	// FoundRetryMs is the delay before connecting to a rediscovered device.
	FoundRetryMs = 5_000

	// RescanMs is the delay before searching again for a missing device.
	RescanMs = 5 * 60_000

	// PanicRetryMs is the delay after an unexpected failure.
	PanicRetryMs = 10_000
)

// storeTimeout bounds connection store lookups made from a task.
const storeTimeout = 5 * time.Second

// ConnectionTask connects one device and registers it on the blackboard.
//
// It reschedules itself until the device is open, the device disappears
// for good or its configuration is removed.
type ConnectionTask struct {
	task.Base
	bb  *blackboard.Blackboard
	dev device.Device

	// old is the handle that failed before FindDevice located dev.
	old device.Device
}

// NewConnectionTask creates a task that connects dev at dueMs.
func NewConnectionTask(dueMs int64, bb *blackboard.Blackboard, dev device.Device) *ConnectionTask {
	return &ConnectionTask{Base: task.NewBase(dueMs), bb: bb, dev: dev}
}

// Device returns the handle the task currently tries to connect.
func (t *ConnectionTask) Device() device.Device {
	return t.dev
}

// Execute runs one connection attempt.
func (t *ConnectionTask) Execute(nowMs int64) (res task.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			t.bb.Logger().Error("connection attempt failed unexpectedly",
				"sn", t.dev.SerialNumber(),
				"panic", r,
			)
			res, err = task.Continue(t, nowMs+PanicRetryMs), nil
		}
	}()
	return t.attempt(nowMs), nil
}

func (t *ConnectionTask) attempt(nowMs int64) task.Result {
	log := t.bb.Logger()
	sn := t.dev.SerialNumber()

	if existing := t.bb.Devices().FindBySerial(sn); existing != nil && existing.IsOpen() {
		log.Debug("device already open, skipping", "sn", sn)
		return task.Done()
	}

	if !t.wanted(sn) {
		log.Info("device is no longer configured, skipping", "sn", sn)
		return task.Done()
	}

	err := t.dev.Connect()
	if err == nil {
		return t.connected()
	}
	log.Warn("device connect failed", "sn", sn, "config", t.dev.Config().String(), "error", err)

	if t.old != nil {
		t.forget(sn)
		t.bb.AddError(fmt.Sprintf("Failed to reconnect to %s (%s), removing it from settings", t.dev.Name(), sn))
		return task.Done()
	}

	found, ok := t.dev.FindDevice()
	if ok && found != nil {
		t.old = t.dev
		t.dev = found
		log.Info("device found at a new address", "sn", sn, "config", found.Config().String())
		t.bb.AddInfo(fmt.Sprintf("Found a device at %s, retrying in 5 seconds...", found.Name()))
		return task.Continue(t, nowMs+FoundRetryMs)
	}

	t.bb.AddError(fmt.Sprintf("Failed to find %s (%s), rescanning again in 5 minutes...", t.dev.Name(), sn))
	return task.Continue(t, nowMs+RescanMs)
}

func (t *ConnectionTask) connected() task.Result {
	log := t.bb.Logger()
	sn := t.dev.SerialNumber()

	if existing := t.bb.Devices().FindBySerial(sn); existing != nil && existing != t.dev && existing.IsOpen() {
		const msg = "Device is already in the blackboard, no action needed"
		log.Info(msg, "sn", sn)
		t.bb.AddWarning(msg)
		// The registered handle owns the device.
		t.dev.Disconnect()
		return task.Done()
	}

	if t.old != nil {
		t.bb.Settings().Devices.RemoveConnection(t.old.Config(), settings.SourceLocal)
	}

	t.bb.Devices().Add(t.dev)
	log.Info("device opened", "sn", sn, "config", t.dev.Config().String())
	t.bb.AddInfo(fmt.Sprintf("Device opened: %s (%s)", t.dev.Name(), sn))
	return task.Done()
}

// forget drops every trace of sn: the old config in settings, the persisted
// connection and a closed handle left in the registry. An open handle is
// kept, it belongs to whoever registered it.
func (t *ConnectionTask) forget(sn string) {
	t.bb.Settings().Devices.RemoveConnection(t.old.Config(), settings.SourceLocal)

	if store := t.bb.Connections(); store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := store.RemoveConnection(ctx, sn); err != nil {
			t.bb.Logger().Warn("removing stored connection", "sn", sn, "error", err)
		}
	}

	if d := t.bb.Devices().FindBySerial(sn); d != nil && !d.IsOpen() {
		t.bb.Devices().Remove(d)
	}
}

// wanted reports whether sn is still present in settings or in the
// persisted connection store.
func (t *ConnectionTask) wanted(sn string) bool {
	if t.bb.Settings().Devices.ContainsSerial(sn) {
		return true
	}

	store := t.bb.Connections()
	if store == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	conns, err := store.Connections(ctx)
	if err != nil {
		t.bb.Logger().Warn("reading stored connections", "error", err)
		return false
	}
	for _, c := range conns {
		if c.SerialNumber() == sn {
			return true
		}
	}
	return false
}
