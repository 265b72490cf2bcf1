package device

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Constructor builds an unconnected handle from a config.
type Constructor func(cfg Config) (Device, error)

// Factory builds device handles keyed on the config's connection
// discriminator. All methods are safe for concurrent use.
type Factory struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewFactory returns an empty Factory.
func NewFactory() *Factory {
	return &Factory{ctors: make(map[string]Constructor)}
}

// Register associates a connection type with a constructor, replacing any
// previous registration.
func (f *Factory) Register(connection string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[strings.ToUpper(connection)] = ctor
}

// NewFromConfig builds a fresh, unconnected handle.
func (f *Factory) NewFromConfig(cfg Config) (Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	ctor, ok := f.ctors[cfg.Connection()]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConnection, cfg.Connection())
	}

	d, err := ctor(cfg.Clone())
	if err != nil {
		return nil, fmt.Errorf("creating %s device: %w", cfg.Connection(), err)
	}
	return d, nil
}

// Connections returns the registered connection types, sorted.
func (f *Factory) Connections() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]string, 0, len(f.ctors))
	for k := range f.ctors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
