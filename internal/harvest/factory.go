package harvest

import (
	"context"
	"fmt"
	"time"

	"github.com/srcfl/srcful-gateway-sub001/internal/blackboard"
	"github.com/srcfl/srcful-gateway-sub001/internal/device"
	"github.com/srcfl/srcful-gateway-sub001/internal/settings"
)

// StartDelayMs delays the first harvest after a device is registered.
const StartDelayMs = 1_000

const storeTimeout = 5 * time.Second

// Factory starts a harvest task for every device added to the blackboard
// and forgets devices that are removed.
type Factory struct {
	bb  *blackboard.Blackboard
	cfg Config
}

// NewFactory creates a Factory and registers it as a registry observer.
func NewFactory(bb *blackboard.Blackboard, cfg Config) *Factory {
	f := &Factory{bb: bb, cfg: cfg.withDefaults()}
	bb.Devices().AddObserver(f)
	return f
}

// Close unregisters the factory.
func (f *Factory) Close() {
	f.bb.Devices().RemoveObserver(f)
}

// OnDeviceAdded persists the connection, records it in settings and
// schedules the first harvest.
func (f *Factory) OnDeviceAdded(d device.Device) {
	log := f.bb.Logger()
	cfg := d.Config()

	if store := f.bb.Connections(); store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		if err := store.SaveConnection(ctx, cfg); err != nil {
			log.Warn("saving connection", "sn", d.SerialNumber(), "error", err)
		} else {
			log.Debug("connection saved", "sn", d.SerialNumber())
		}
		cancel()
	}

	f.bb.AddTask(New(f.bb.NowMs()+StartDelayMs, f.bb, d, f.cfg))
	f.bb.Settings().Devices.AddConnection(cfg, settings.SourceLocal)

	msg := fmt.Sprintf("Added device %s : %s", d.Name(), d.SerialNumber())
	log.Info(msg)
	f.bb.AddInfo(msg)
}

// OnDeviceRemoved disconnects the device and drops its connection from the
// store and settings.
func (f *Factory) OnDeviceRemoved(d device.Device) {
	log := f.bb.Logger()
	sn := d.SerialNumber()

	if d.IsDisconnected() {
		log.Debug("device already disconnected", "sn", sn)
	} else {
		d.Disconnect()
	}

	if store := f.bb.Connections(); store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		if err := store.RemoveConnection(ctx, sn); err != nil {
			log.Warn("removing stored connection", "sn", sn, "error", err)
		}
		cancel()
	}

	f.bb.Settings().Devices.RemoveSerial(sn, settings.SourceLocal)

	msg := fmt.Sprintf("Removed device %s : %s", d.Name(), sn)
	log.Info(msg)
	f.bb.AddInfo(msg)
}
