// Package simulated provides a software inverter for demos and end-to-end
// tests. It speaks no protocol: samples are computed from the serial number
// and the read counter, so two handles with the same config produce the same
// sequence.
//
// Config keys besides connection, sn, ip and port:
//
//	model         display name (default "SimInverter")
//	fail_connect  number of Connect calls that fail; -1 fails forever
//	relocate_to   host FindDevice reports the device at
//	drop_after    reads after which the connection is lost; 0 never
package simulated

import (
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/srcfl/srcful-gateway-sub001/internal/device"
)

// Connection is the discriminator simulated devices are registered under.
const Connection = "SIM"

// DataType is the harvest data type of simulated samples.
const DataType = "sim_inverter"

// Config keys.
const (
	KeyModel       = "model"
	KeyFailConnect = "fail_connect"
	KeyRelocateTo  = "relocate_to"
	KeyDropAfter   = "drop_after"
)

const defaultModel = "SimInverter"

// ErrConnectRefused is returned by Connect while fail_connect is in effect.
var ErrConnectRefused = fmt.Errorf("%w: simulated connect failure", device.ErrConnection)

// Register adds the simulated connection type to f.
func Register(f *device.Factory) {
	f.Register(Connection, New)
}

// Inverter is a simulated device.Device.
type Inverter struct {
	cfg  device.Config
	base int64

	mu           sync.Mutex
	open         bool
	disconnected bool
	failsLeft    int
	reads        int64
	energyWh     int64
}

// New is a device.Constructor for simulated inverters.
func New(cfg device.Config) (device.Device, error) {
	if cfg.SerialNumber() == "" {
		return nil, fmt.Errorf("%w: %q is required", device.ErrInvalidConfig, device.KeySerial)
	}

	h := fnv.New32a()
	h.Write([]byte(cfg.SerialNumber())) //nolint:errcheck // hash writes never fail

	cfg = cfg.Clone()
	cfg[device.KeyConnection] = Connection

	return &Inverter{
		cfg:       cfg,
		base:      1000 + int64(h.Sum32()%4000),
		failsLeft: intKey(cfg, KeyFailConnect),
	}, nil
}

func (s *Inverter) SerialNumber() string    { return s.cfg.SerialNumber() }
func (s *Inverter) HarvestDataType() string { return DataType }

func (s *Inverter) Name() string {
	if m, ok := s.cfg[KeyModel].(string); ok && m != "" {
		return m
	}
	return defaultModel
}

func (s *Inverter) Config() device.Config {
	return s.cfg.Clone()
}

func (s *Inverter) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disconnected {
		return device.ErrDisconnected
	}
	if s.failsLeft != 0 {
		if s.failsLeft > 0 {
			s.failsLeft--
		}
		s.open = false
		return ErrConnectRefused
	}
	s.open = true
	return nil
}

func (s *Inverter) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.disconnected = true
}

func (s *Inverter) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Inverter) IsDisconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}

// ReadHarvestData returns the next sample. Power moves through a fixed
// ten-step cycle around the per-serial base; energy accumulates.
func (s *Inverter) ReadHarvestData(verbose bool) (device.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil, device.ErrNotOpen
	}
	if drop := int64(intKey(s.cfg, KeyDropAfter)); drop > 0 && s.reads >= drop {
		s.open = false
		return nil, fmt.Errorf("%w: simulated link drop after %d reads", device.ErrConnection, drop)
	}

	s.reads++
	power := s.base + (s.reads%10)*25
	s.energyWh += power / 360

	sample := device.Sample{
		"power_w":   power,
		"energy_wh": s.energyWh,
		"status":    "running",
	}
	if verbose {
		sample["voltage_v"] = 230 + s.reads%3
		sample["current_ma"] = power * 1000 / 230
		sample["frequency_mhz"] = 50_000 - s.reads%5
		sample["temperature_c"] = 35 + s.reads%8
	}
	return sample, nil
}

func (s *Inverter) BackoffMs(lastReadMs, prevBackoffMs int64) int64 {
	return device.BackoffMs(lastReadMs, prevBackoffMs)
}

// FindDevice reports the device at relocate_to, if set. The returned handle
// connects on the first attempt.
func (s *Inverter) FindDevice() (device.Device, bool) {
	host, _ := s.cfg[KeyRelocateTo].(string)
	if host == "" {
		return nil, false
	}

	cfg := s.cfg.Clone()
	cfg[device.KeyHost] = host
	delete(cfg, KeyRelocateTo)
	delete(cfg, KeyFailConnect)

	d, err := New(cfg)
	if err != nil {
		return nil, false
	}
	return d, true
}

// intKey reads an integer config value; JSON numbers arrive as float64.
func intKey(cfg device.Config, key string) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
