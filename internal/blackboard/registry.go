package blackboard

import (
	"fmt"
	"slices"
	"sync"

	"github.com/srcfl/srcful-gateway-sub001/internal/device"
)

// Observer is notified when the set of live devices changes.
//
// Notifications are delivered on the goroutine that changed the registry,
// after the registry lock is released, so observers may read the registry.
type Observer interface {
	OnDeviceAdded(d device.Device)
	OnDeviceRemoved(d device.Device)
}

// Registry is the observable set of live devices, keyed by serial number.
// At most one device per serial number is present at any time.
type Registry struct {
	mu        sync.Mutex
	devices   []device.Device
	observers []Observer

	// onChange is called after every mutation (state save trigger).
	onChange func()
	logger   Logger
}

func newRegistry(onChange func(), logger Logger) *Registry {
	return &Registry{onChange: onChange, logger: logger}
}

type registryEvent struct {
	d     device.Device
	added bool
}

// AddObserver registers o. Adding the same observer twice is a no-op.
func (r *Registry) AddObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.observers, o) {
		return
	}
	r.observers = append(r.observers, o)
}

// RemoveObserver unregisters o.
func (r *Registry) RemoveObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = slices.DeleteFunc(r.observers, func(x Observer) bool { return x == o })
}

// Add registers an open device.
//
// Adding a device that is not open is a programming error and panics with an
// error wrapping ErrDeviceNotOpen. Adding the same handle again is a no-op.
// Adding a different handle with a present serial number replaces the old
// handle: observers see the removal first, then the addition.
func (r *Registry) Add(d device.Device) {
	if !d.IsOpen() {
		panic(fmt.Errorf("%w: %s", ErrDeviceNotOpen, d.SerialNumber()))
	}

	r.mu.Lock()
	existing := r.find(d.SerialNumber())
	if existing == d {
		r.mu.Unlock()
		return
	}

	var events []registryEvent
	if existing != nil {
		r.delete(existing)
		events = append(events, registryEvent{d: existing, added: false})
	}
	r.devices = append(r.devices, d)
	events = append(events, registryEvent{d: d, added: true})
	observers := slices.Clone(r.observers)
	r.mu.Unlock()

	if existing != nil {
		r.logger.Info("device replaced", "sn", d.SerialNumber())
	} else {
		r.logger.Info("device added", "sn", d.SerialNumber(), "name", d.Name())
	}
	r.publish(observers, events)
}

// Remove unregisters d if present.
func (r *Registry) Remove(d device.Device) {
	r.mu.Lock()
	if !slices.Contains(r.devices, d) {
		r.mu.Unlock()
		return
	}
	r.delete(d)
	observers := slices.Clone(r.observers)
	r.mu.Unlock()

	r.logger.Info("device removed", "sn", d.SerialNumber())
	r.publish(observers, []registryEvent{{d: d, added: false}})
}

// FindBySerial returns the device with serial number sn, or nil.
func (r *Registry) FindBySerial(sn string) device.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(sn)
}

// Contains reports whether a device with d's serial number is registered.
func (r *Registry) Contains(d device.Device) bool {
	return r.FindBySerial(d.SerialNumber()) != nil
}

// List returns the registered devices in insertion order.
func (r *Registry) List() []device.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.devices)
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// OpenCount returns the number of registered devices that are open.
func (r *Registry) OpenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, d := range r.devices {
		if d.IsOpen() {
			n++
		}
	}
	return n
}

func (r *Registry) find(sn string) device.Device {
	for _, d := range r.devices {
		if d.SerialNumber() == sn {
			return d
		}
	}
	return nil
}

func (r *Registry) delete(d device.Device) {
	r.devices = slices.DeleteFunc(r.devices, func(x device.Device) bool { return x == d })
}

func (r *Registry) publish(observers []Observer, events []registryEvent) {
	for _, ev := range events {
		for _, o := range observers {
			if ev.added {
				o.OnDeviceAdded(ev.d)
			} else {
				o.OnDeviceRemoved(ev.d)
			}
		}
	}
	if r.onChange != nil {
		r.onChange()
	}
}
