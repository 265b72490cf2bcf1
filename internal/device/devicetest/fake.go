// Package devicetest provides a scriptable in-memory device for tests.
package devicetest

import (
	"sync"

	"github.com/srcfl/srcful-gateway-sub001/internal/device"
)

// Connection is the discriminator Fake handles are registered under.
const Connection = "FAKE"

// Fake is a device.Device whose behaviour is set through its exported
// function fields. Zero-valued hooks succeed: Connect opens the handle,
// FindDevice finds nothing and ReadHarvestData returns a small sample.
type Fake struct {
	// ConnectFunc overrides Connect. A nil error opens the handle.
	ConnectFunc func() error

	// FindFunc overrides FindDevice.
	FindFunc func() (device.Device, bool)

	// ReadFunc overrides ReadHarvestData.
	ReadFunc func(verbose bool) (device.Sample, error)

	mu           sync.Mutex
	cfg          device.Config
	open         bool
	disconnected bool

	connects    int
	disconnects int
	finds       int
	reads       int
	verbose     int
}

// New returns an unconnected fake with the given serial number.
func New(sn string) *Fake {
	return &Fake{cfg: device.Config{
		device.KeyConnection: Connection,
		device.KeySerial:     sn,
		"name":               "Fake " + sn,
	}}
}

// NewOpen returns a connected fake.
func NewOpen(sn string) *Fake {
	f := New(sn)
	f.open = true
	return f
}

// FromConfig is a device.Constructor for Fake handles.
func FromConfig(cfg device.Config) (device.Device, error) {
	f := New(cfg.SerialNumber())
	f.cfg = cfg.Clone()
	return f, nil
}

// WithHost sets the host key and returns f.
func (f *Fake) WithHost(host string) *Fake {
	f.mu.Lock()
	f.cfg[device.KeyHost] = host
	f.mu.Unlock()
	return f
}

func (f *Fake) SerialNumber() string { return f.Config().SerialNumber() }

func (f *Fake) Name() string {
	if n, ok := f.Config()["name"].(string); ok {
		return n
	}
	return "Fake"
}

func (f *Fake) HarvestDataType() string { return "fake" }

func (f *Fake) Connect() error {
	f.mu.Lock()
	f.connects++
	fn := f.ConnectFunc
	disconnected := f.disconnected
	f.mu.Unlock()

	if disconnected {
		return device.ErrDisconnected
	}

	var err error
	if fn != nil {
		err = fn()
	}

	f.mu.Lock()
	f.open = err == nil
	f.mu.Unlock()
	return err
}

func (f *Fake) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.open = false
	f.disconnected = true
}

func (f *Fake) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *Fake) IsDisconnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnected
}

// SetOpen forces the open state without touching counters.
func (f *Fake) SetOpen(open bool) {
	f.mu.Lock()
	f.open = open
	f.mu.Unlock()
}

func (f *Fake) ReadHarvestData(verbose bool) (device.Sample, error) {
	f.mu.Lock()
	f.reads++
	if verbose {
		f.verbose++
	}
	n := f.reads
	fn := f.ReadFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(verbose)
	}
	return device.Sample{"read": n, "verbose": verbose}, nil
}

func (f *Fake) BackoffMs(lastReadMs, prevBackoffMs int64) int64 {
	return device.BackoffMs(lastReadMs, prevBackoffMs)
}

func (f *Fake) Config() device.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg.Clone()
}

func (f *Fake) FindDevice() (device.Device, bool) {
	f.mu.Lock()
	f.finds++
	fn := f.FindFunc
	f.mu.Unlock()

	if fn == nil {
		return nil, false
	}
	return fn()
}

// Connects returns how many times Connect was called.
func (f *Fake) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// Disconnects returns how many times Disconnect was called.
func (f *Fake) Disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

// Finds returns how many times FindDevice was called.
func (f *Fake) Finds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finds
}

// Reads returns how many samples were read and how many of them verbose.
func (f *Fake) Reads() (total, verbose int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads, f.verbose
}
