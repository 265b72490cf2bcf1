// Package device defines the contract between the gateway core and the
// protocol-specific device implementations (inverters, batteries, meters).
//
// The core never decodes wire protocols itself. It drives devices through a
// set of small capability interfaces:
//
//   - Identity: serial number, display name, harvest data type
//   - Connectable: connect, permanent disconnect, open state
//   - Harvestable: read one telemetry sample, adaptive poll backoff
//   - Configurable: the pure-data Config a handle was built from
//   - NetworkDiscoverable: locate the same device at a new address
//
// Device is the union of all five. Handles are built from a Config by a
// Factory keyed on the config's "connection" discriminator, so a fresh,
// unconnected handle for a failed device is simply:
//
//	fresh, err := factory.NewFromConfig(old.Config())
//
// # Error Handling
//
// ReadHarvestData distinguishes connection loss (ErrConnection) from transient
// read failures. Only errors matching ErrConnection trigger the reconnect path:
//
//	if errors.Is(err, device.ErrConnection) {
//	    // disconnect and hand back to a connection task
//	}
package device
