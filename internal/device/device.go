package device

import "strings"

// Sample is one raw telemetry reading as returned by a device.
// Keys and value types are protocol specific.
type Sample map[string]any

// Identity describes which physical device a handle talks to.
type Identity interface {
	// SerialNumber is the stable identity used by the registry.
	SerialNumber() string

	// Name is the human readable device or model name.
	Name() string

	// HarvestDataType names the payload format of ReadHarvestData samples.
	HarvestDataType() string
}

// Connectable is a device connection with a one-way lifecycle:
// closed → open → disconnected. A disconnected handle never reopens.
type Connectable interface {
	// Connect opens the connection. Implementations must bound the call with
	// their own I/O timeouts.
	Connect() error

	// Disconnect releases the connection permanently.
	Disconnect()

	// IsOpen reports whether the connection is currently usable.
	IsOpen() bool

	// IsDisconnected reports whether Disconnect has been called.
	IsDisconnected() bool
}

// Harvestable devices produce telemetry samples.
type Harvestable interface {
	// ReadHarvestData reads one sample. verbose asks for the full register
	// set rather than the compact one. Connection loss is reported with an
	// error wrapping ErrConnection.
	ReadHarvestData(verbose bool) (Sample, error)

	// BackoffMs returns the next poll delay given the duration of the last
	// read and the previous delay. Most devices return BackoffMs(...).
	BackoffMs(lastReadMs, prevBackoffMs int64) int64
}

// Configurable exposes the pure-data configuration of a handle.
type Configurable interface {
	Config() Config
}

// NetworkDiscoverable devices can be located again after an address change.
type NetworkDiscoverable interface {
	// FindDevice searches the network for the same device (same serial
	// number) and returns a new unconnected handle for it.
	FindDevice() (Device, bool)
}

// Device is the full capability set the gateway core drives.
type Device interface {
	Identity
	Connectable
	Harvestable
	Configurable
	NetworkDiscoverable
}

// HarvestHeaders returns the transport headers describing d.
func HarvestHeaders(d Device) map[string]string {
	return map[string]string{
		"dtype": d.HarvestDataType(),
		"sn":    d.SerialNumber(),
		"model": strings.ToLower(d.Name()),
	}
}
