package blackboard

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/srcfl/srcful-gateway-sub001/internal/clock"
	"github.com/srcfl/srcful-gateway-sub001/internal/device"
	"github.com/srcfl/srcful-gateway-sub001/internal/device/devicetest"
)

// recordingObserver records registry notifications in order.
type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) OnDeviceAdded(d device.Device) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "add:"+d.SerialNumber())
}

func (o *recordingObserver) OnDeviceRemoved(d device.Device) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "remove:"+d.SerialNumber())
}

func (o *recordingObserver) list() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

func newTestBlackboard() *Blackboard {
	return New(Options{Clock: clock.NewManual(1_000_000)})
}

// ===== Add / Remove =====

func TestRegistry_AddSameSerialKeepsOne(t *testing.T) {
	bb := newTestBlackboard()
	obs := &recordingObserver{}
	bb.Devices().AddObserver(obs)

	first := devicetest.NewOpen("X")
	second := devicetest.NewOpen("X")

	bb.Devices().Add(first)
	bb.Devices().Add(first) // same handle: no-op
	if n := bb.Devices().Len(); n != 1 {
		t.Fatalf("Len() = %d after re-adding same handle, want 1", n)
	}

	bb.Devices().Add(second)
	if n := bb.Devices().Len(); n != 1 {
		t.Fatalf("Len() = %d after replacing, want 1", n)
	}
	if got := bb.Devices().FindBySerial("X"); got != device.Device(second) {
		t.Error("FindBySerial() did not return the replacement handle")
	}

	want := []string{"add:X", "remove:X", "add:X"}
	got := obs.list()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestRegistry_AddManySerials(t *testing.T) {
	bb := newTestBlackboard()

	for i := 0; i < 5; i++ {
		for _, sn := range []string{"A", "B", "C"} {
			bb.Devices().Add(devicetest.NewOpen(sn))
			seen := map[string]int{}
			for _, d := range bb.Devices().List() {
				seen[d.SerialNumber()]++
			}
			for s, n := range seen {
				if n != 1 {
					t.Fatalf("serial %s present %d times", s, n)
				}
			}
		}
	}

	if n := bb.Devices().Len(); n != 3 {
		t.Errorf("Len() = %d, want 3", n)
	}
}

func TestRegistry_AddClosedDevicePanics(t *testing.T) {
	bb := newTestBlackboard()
	closed := devicetest.New("X")

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Add() of closed device did not panic")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrDeviceNotOpen) {
			t.Errorf("panic value = %v, want ErrDeviceNotOpen", r)
		}
		if bb.Devices().Len() != 0 {
			t.Error("closed device was registered")
		}
	}()

	bb.Devices().Add(closed)
}

func TestRegistry_Remove(t *testing.T) {
	bb := newTestBlackboard()
	obs := &recordingObserver{}
	bb.Devices().AddObserver(obs)

	d := devicetest.NewOpen("X")
	other := devicetest.NewOpen("X")
	bb.Devices().Add(d)

	bb.Devices().Remove(other) // not registered: no-op
	bb.Devices().Remove(d)
	bb.Devices().Remove(d) // already gone

	if bb.Devices().FindBySerial("X") != nil {
		t.Error("FindBySerial() found removed device")
	}
	if want := "[add:X remove:X]"; fmt.Sprint(obs.list()) != want {
		t.Errorf("events = %v, want %s", obs.list(), want)
	}
}

func TestRegistry_OpenCount(t *testing.T) {
	bb := newTestBlackboard()
	a := devicetest.NewOpen("A")
	b := devicetest.NewOpen("B")
	bb.Devices().Add(a)
	bb.Devices().Add(b)

	if got := bb.Devices().OpenCount(); got != 2 {
		t.Errorf("OpenCount() = %d, want 2", got)
	}
	b.SetOpen(false)
	if got := bb.Devices().OpenCount(); got != 1 {
		t.Errorf("OpenCount() after close = %d, want 1", got)
	}
	if got := bb.Devices().Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestRegistry_Observers(t *testing.T) {
	bb := newTestBlackboard()
	obs := &recordingObserver{}

	bb.Devices().AddObserver(obs)
	bb.Devices().AddObserver(obs) // duplicate ignored
	bb.Devices().Add(devicetest.NewOpen("A"))

	bb.Devices().RemoveObserver(obs)
	bb.Devices().Add(devicetest.NewOpen("B"))

	if want := "[add:A]"; fmt.Sprint(obs.list()) != want {
		t.Errorf("events = %v, want %s", obs.list(), want)
	}
	if !bb.Devices().Contains(devicetest.New("B")) {
		t.Error("Contains() = false for registered serial")
	}
}

func TestRegistry_ConcurrentAdd(t *testing.T) {
	bb := newTestBlackboard()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bb.Devices().Add(devicetest.NewOpen(fmt.Sprintf("SN%d", i%5)))
		}(i)
	}
	wg.Wait()

	if n := bb.Devices().Len(); n != 5 {
		t.Errorf("Len() = %d, want 5", n)
	}
}
