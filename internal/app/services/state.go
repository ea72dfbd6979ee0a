// Package services provides application services shared by the executor:
// edge-state snapshots and checkpoint persistence.
package services

import (
	"sync"

	"github.com/flowsim/flowsim/internal/core/flowsheet"
)

// StateService keeps named deep-copy snapshots of edge-value sets. The
// executor snapshots before every step so that a failed step can be rolled
// back without leaking partial updates into the next step.
type StateService struct {
	mu        sync.Mutex
	snapshots map[string]map[string]flowsheet.Stream
}

// NewStateService creates an empty state service.
func NewStateService() *StateService {
	return &StateService{snapshots: make(map[string]map[string]flowsheet.Stream)}
}

// SaveSnapshot stores an independent copy of the edge values under a key,
// replacing any previous snapshot with that key.
func (s *StateService) SaveSnapshot(key string, values map[string]flowsheet.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[key] = flowsheet.CloneValues(values)
}

// LoadSnapshot returns a copy of the snapshot stored under the key.
func (s *StateService) LoadSnapshot(key string) (map[string]flowsheet.Stream, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[key]
	if !ok {
		return nil, false
	}
	return flowsheet.CloneValues(snap), true
}

// Discard drops the snapshot stored under the key.
func (s *StateService) Discard(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, key)
}
