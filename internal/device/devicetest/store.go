package devicetest

import (
	"context"
	"sync"

	"github.com/srcfl/srcful-gateway-sub001/internal/device"
)

// MemStore is an in-memory connection store keyed by serial number.
type MemStore struct {
	// Err, when set, is returned by every method.
	Err error

	mu    sync.Mutex
	conns []device.Config
}

// NewMemStore returns a store holding cfgs.
func NewMemStore(cfgs ...device.Config) *MemStore {
	s := &MemStore{}
	for _, c := range cfgs {
		s.conns = append(s.conns, c.Clone())
	}
	return s
}

func (s *MemStore) SaveConnection(_ context.Context, cfg device.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.removeLocked(cfg.SerialNumber())
	s.conns = append(s.conns, cfg.Clone())
	return nil
}

func (s *MemStore) RemoveConnection(_ context.Context, sn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.removeLocked(sn)
	return nil
}

func (s *MemStore) Connections(context.Context) ([]device.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]device.Config, len(s.conns))
	for i, c := range s.conns {
		out[i] = c.Clone()
	}
	return out, nil
}

func (s *MemStore) removeLocked(sn string) {
	kept := s.conns[:0]
	for _, c := range s.conns {
		if c.SerialNumber() != sn {
			kept = append(kept, c)
		}
	}
	s.conns = kept
}
