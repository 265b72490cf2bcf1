// Package settings holds the runtime-mutable gateway settings: harvest
// endpoints, device connections and backend API settings.
//
// Every section is observable. A listener added to a section hears changes to
// that section; a listener added to the root Settings hears all of them.
// Each change carries a ChangeSource so that, for example, backend-pushed
// connection lists can trigger reconnects while local edits do not.
package settings

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/srcfl/srcful-gateway-sub001/internal/device"
)

// Default backend API settings.
const (
	DefaultGQLEndpoint = "https://api.srcful.dev"
	DefaultWSEndpoint  = "wss://api.srcful.dev"
	DefaultGQLTimeout  = 5
)

// Settings is the root of all settings sections. Safe for concurrent use.
type Settings struct {
	observable

	Harvest *Harvest
	Devices *Devices
	API     *API
}

// New returns settings with default API values and no endpoints or
// connections.
func New() *Settings {
	s := &Settings{}
	s.Harvest = &Harvest{observable: observable{parent: &s.observable}}
	s.Devices = &Devices{observable: observable{parent: &s.observable}}
	s.API = &API{
		observable:  observable{parent: &s.observable},
		gqlEndpoint: DefaultGQLEndpoint,
		wsEndpoint:  DefaultWSEndpoint,
		gqlTimeout:  DefaultGQLTimeout,
	}
	return s
}

// document is the JSON layout used for persistence and the backend.
type document struct {
	Settings struct {
		Harvest *harvestDoc `json:"harvest,omitempty"`
		Devices *devicesDoc `json:"devices,omitempty"`
		API     *apiDoc     `json:"api,omitempty"`
	} `json:"settings"`
}

type harvestDoc struct {
	Endpoints []string `json:"endpoints"`
}

type devicesDoc struct {
	Connections []device.Config `json:"connections"`
}

type apiDoc struct {
	GQLEndpoint *string `json:"gql_endpoint,omitempty"`
	GQLTimeout  *int    `json:"gql_timeout,omitempty"`
	WSEndpoint  *string `json:"ws_endpoint,omitempty"`
}

// MarshalJSON encodes all sections.
func (s *Settings) MarshalJSON() ([]byte, error) {
	var doc document
	doc.Settings.Harvest = &harvestDoc{Endpoints: s.Harvest.Endpoints()}
	doc.Settings.Devices = &devicesDoc{Connections: s.Devices.Connections()}

	gql, ws, timeout := s.API.GQLEndpoint(), s.API.WSEndpoint(), s.API.GQLTimeout()
	doc.Settings.API = &apiDoc{GQLEndpoint: &gql, GQLTimeout: &timeout, WSEndpoint: &ws}
	return json.Marshal(doc)
}

// UpdateFromJSON applies the sections present in data. Sections that are
// absent are left untouched; each updated section notifies its listeners
// with source.
func (s *Settings) UpdateFromJSON(data []byte, source ChangeSource) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing settings: %w", err)
	}

	if h := doc.Settings.Harvest; h != nil {
		s.Harvest.set(h.Endpoints, source)
	}
	if d := doc.Settings.Devices; d != nil {
		s.Devices.set(d.Connections, source)
	}
	if a := doc.Settings.API; a != nil {
		s.API.update(a, source)
	}
	return nil
}

// Harvest holds the transport endpoints harvested data is sent to.
type Harvest struct {
	observable

	mu        sync.RWMutex
	endpoints []string
}

// Endpoints returns a copy of the configured endpoints.
func (h *Harvest) Endpoints() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.endpoints)
}

// AddEndpoint appends endpoint if it is not already present.
func (h *Harvest) AddEndpoint(endpoint string, source ChangeSource) {
	h.mu.Lock()
	if slices.Contains(h.endpoints, endpoint) {
		h.mu.Unlock()
		return
	}
	h.endpoints = append(h.endpoints, endpoint)
	h.mu.Unlock()

	h.notify(source)
}

// RemoveEndpoint removes endpoint if present.
func (h *Harvest) RemoveEndpoint(endpoint string, source ChangeSource) {
	h.mu.Lock()
	i := slices.Index(h.endpoints, endpoint)
	if i < 0 {
		h.mu.Unlock()
		return
	}
	h.endpoints = slices.Delete(h.endpoints, i, i+1)
	h.mu.Unlock()

	h.notify(source)
}

// ClearEndpoints removes all endpoints.
func (h *Harvest) ClearEndpoints(source ChangeSource) {
	h.mu.Lock()
	if len(h.endpoints) == 0 {
		h.mu.Unlock()
		return
	}
	h.endpoints = nil
	h.mu.Unlock()

	h.notify(source)
}

func (h *Harvest) set(endpoints []string, source ChangeSource) {
	h.mu.Lock()
	h.endpoints = slices.Clone(endpoints)
	h.mu.Unlock()

	h.notify(source)
}

// Devices holds the device connections the gateway keeps alive.
type Devices struct {
	observable

	mu          sync.RWMutex
	connections []device.Config
}

// Connections returns copies of the configured connections.
func (d *Devices) Connections() []device.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]device.Config, len(d.connections))
	for i, c := range d.connections {
		out[i] = c.Clone()
	}
	return out
}

// ContainsSerial reports whether a connection with serial number sn exists.
func (d *Devices) ContainsSerial(sn string) bool {
	if sn == "" {
		return false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.connections {
		if c.SerialNumber() == sn {
			return true
		}
	}
	return false
}

// AddConnection stores cfg, replacing any connection with the same serial
// number or the same host.
func (d *Devices) AddConnection(cfg device.Config, source ChangeSource) {
	d.mu.Lock()
	kept := d.connections[:0:0]
	for _, c := range d.connections {
		sameSerial := cfg.SerialNumber() != "" && c.SerialNumber() == cfg.SerialNumber()
		if sameSerial || cfg.SameHost(c) {
			continue
		}
		kept = append(kept, c)
	}
	d.connections = append(kept, cfg.Clone())
	d.mu.Unlock()

	d.notify(source)
}

// RemoveConnection removes every connection equivalent to cfg. It returns
// false, without notifying, when nothing matched.
func (d *Devices) RemoveConnection(cfg device.Config, source ChangeSource) bool {
	return d.removeWhere(func(c device.Config) bool { return c.Equal(cfg) }, source)
}

// RemoveSerial removes every connection with serial number sn.
func (d *Devices) RemoveSerial(sn string, source ChangeSource) bool {
	if sn == "" {
		return false
	}
	return d.removeWhere(func(c device.Config) bool { return c.SerialNumber() == sn }, source)
}

func (d *Devices) removeWhere(match func(device.Config) bool, source ChangeSource) bool {
	d.mu.Lock()
	before := len(d.connections)
	d.connections = slices.DeleteFunc(d.connections, match)
	removed := len(d.connections) != before
	d.mu.Unlock()

	if removed {
		d.notify(source)
	}
	return removed
}

func (d *Devices) set(connections []device.Config, source ChangeSource) {
	d.mu.Lock()
	d.connections = make([]device.Config, 0, len(connections))
	for _, c := range connections {
		d.connections = append(d.connections, c.Clone())
	}
	d.mu.Unlock()

	d.notify(source)
}

// API holds the backend endpoints.
type API struct {
	observable

	mu          sync.RWMutex
	gqlEndpoint string
	wsEndpoint  string
	gqlTimeout  int
}

func (a *API) GQLEndpoint() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.gqlEndpoint
}

func (a *API) WSEndpoint() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.wsEndpoint
}

// GQLTimeout is the backend request timeout in seconds.
func (a *API) GQLTimeout() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.gqlTimeout
}

func (a *API) SetGQLEndpoint(v string, source ChangeSource) {
	a.mu.Lock()
	a.gqlEndpoint = v
	a.mu.Unlock()
	a.notify(source)
}

func (a *API) SetWSEndpoint(v string, source ChangeSource) {
	a.mu.Lock()
	a.wsEndpoint = v
	a.mu.Unlock()
	a.notify(source)
}

func (a *API) SetGQLTimeout(v int, source ChangeSource) {
	a.mu.Lock()
	a.gqlTimeout = v
	a.mu.Unlock()
	a.notify(source)
}

func (a *API) update(doc *apiDoc, source ChangeSource) {
	a.mu.Lock()
	changed := false
	if doc.GQLEndpoint != nil {
		a.gqlEndpoint = *doc.GQLEndpoint
		changed = true
	}
	if doc.GQLTimeout != nil {
		a.gqlTimeout = *doc.GQLTimeout
		changed = true
	}
	if doc.WSEndpoint != nil {
		a.wsEndpoint = *doc.WSEndpoint
		changed = true
	}
	a.mu.Unlock()

	if changed {
		a.notify(source)
	}
}
