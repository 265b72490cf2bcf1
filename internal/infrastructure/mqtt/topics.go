package mqtt

import "fmt"

// TopicRoot is the first level of every gateway topic.
const TopicRoot = "gateway"

// Topics builds MQTT topics for one gateway. Using these helpers keeps topic
// naming consistent between publishers and subscribers.
//
//	topics := mqtt.Topics{Site: "gw-001"}
//	topics.Harvest("inverter", "INV-1")
//	// Returns: "gateway/gw-001/harvest/inverter/INV-1"
type Topics struct {
	Site string
}

// Status returns the retained online/offline topic (also the LWT topic).
//
// Example: gateway/gw-001/status
func (t Topics) Status() string {
	return fmt.Sprintf("%s/%s/status", TopicRoot, t.Site)
}

// Harvest returns the topic harvest batches for one device are published on.
//
// Example: gateway/gw-001/harvest/inverter/INV-1
func (t Topics) Harvest(dtype, sn string) string {
	return fmt.Sprintf("%s/%s/harvest/%s/%s", TopicRoot, t.Site, dtype, sn)
}

// AllHarvest matches every harvest topic of the gateway.
//
// Example: gateway/gw-001/harvest/#
func (t Topics) AllHarvest() string {
	return fmt.Sprintf("%s/%s/harvest/#", TopicRoot, t.Site)
}

// SettingsSet returns the topic the backend pushes settings documents to.
//
// Example: gateway/gw-001/settings/set
func (t Topics) SettingsSet() string {
	return fmt.Sprintf("%s/%s/settings/set", TopicRoot, t.Site)
}

// State returns the retained topic for gateway state snapshots.
//
// Example: gateway/gw-001/state
func (t Topics) State() string {
	return fmt.Sprintf("%s/%s/state", TopicRoot, t.Site)
}
