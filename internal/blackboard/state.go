package blackboard

import "github.com/srcfl/srcful-gateway-sub001/internal/device"

// State is a point-in-time snapshot of the blackboard, persisted by the
// state save task and served by the status API.
type State struct {
	Version   string       `json:"version"`
	UptimeMs  int64        `json:"uptime_ms"`
	Timestamp int64        `json:"timestamp"`
	Messages  []Message    `json:"messages"`
	Devices   DevicesState `json:"devices"`
}

// DevicesState lists live devices and the saved connection configs.
type DevicesState struct {
	Configured []DeviceState   `json:"configured"`
	Saved      []device.Config `json:"saved"`
}

// DeviceState describes one live device.
type DeviceState struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	IsOpen     bool          `json:"is_open"`
	Connection device.Config `json:"connection"`
}

// State builds a snapshot.
func (bb *Blackboard) State() State {
	live := bb.devices.List()
	configured := make([]DeviceState, 0, len(live))
	for _, d := range live {
		configured = append(configured, DeviceState{
			ID:         d.SerialNumber(),
			Name:       d.Name(),
			IsOpen:     d.IsOpen(),
			Connection: d.Config(),
		})
	}

	return State{
		Version:   bb.version,
		UptimeMs:  bb.UptimeMs(),
		Timestamp: bb.NowMs(),
		Messages:  bb.Messages(),
		Devices: DevicesState{
			Configured: configured,
			Saved:      bb.settings.Devices.Connections(),
		},
	}
}
