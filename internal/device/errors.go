package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrConnection) {
//	    // handle lost connection
//	}
var (
	// ErrConnection is returned (wrapped) by device I/O when the connection
	// to the device is lost. It is the only read error that triggers a
	// reconnect.
	ErrConnection = errors.New("device: connection lost")

	// ErrNotOpen is returned when I/O is attempted on a closed handle.
	ErrNotOpen = errors.New("device: not open")

	// ErrDisconnected is returned when connecting a handle that was
	// permanently disconnected.
	ErrDisconnected = errors.New("device: handle disconnected")

	// ErrUnknownConnection is returned by the Factory for an unregistered
	// connection discriminator.
	ErrUnknownConnection = errors.New("device: unknown connection type")

	// ErrInvalidConfig is returned when a config is missing required keys.
	ErrInvalidConfig = errors.New("device: invalid config")
)
