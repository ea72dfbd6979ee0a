// Package memory provides a thread-safe in-memory checkpoint saver, the
// default for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/flowsim/flowsim/internal/core/checkpoint"
	"github.com/flowsim/flowsim/pkg/serialization"
)

// Saver implements checkpoint.Saver on an in-memory map. Checkpoints are held
// serialized so the stored form exercises the same pipeline a persistent
// saver would use.
type Saver struct {
	mu          sync.RWMutex
	entries     map[string][]byte
	maxEntries  int
	insertOrder []string
	serializer  *serialization.Serializer
}

// Config holds saver settings.
type Config struct {
	// MaxEntries bounds retained checkpoints; oldest are evicted first.
	// 0 means unbounded.
	MaxEntries int
	Serializer *serialization.Serializer
}

// NewSaver creates an in-memory saver.
func NewSaver(config Config) *Saver {
	if config.Serializer == nil {
		config.Serializer = serialization.DefaultSerializer()
	}
	return &Saver{
		entries:    make(map[string][]byte),
		maxEntries: config.MaxEntries,
		serializer: config.Serializer,
	}
}

// DefaultSaver returns an unbounded in-memory saver with the default
// serializer.
func DefaultSaver() *Saver {
	return NewSaver(Config{})
}

// Save stores a checkpoint.
func (s *Saver) Save(_ context.Context, cp *checkpoint.Checkpoint) error {
	if cp == nil {
		return checkpoint.ErrInvalidCheckpointID
	}
	if err := cp.Validate(); err != nil {
		return fmt.Errorf("checkpoint validation failed: %w", err)
	}
	data, err := s.serializer.Serialize(cp)
	if err != nil {
		return fmt.Errorf("%w: %v", checkpoint.ErrSaveFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[cp.ID]; !exists {
		s.insertOrder = append(s.insertOrder, cp.ID)
	}
	s.entries[cp.ID] = data
	for s.maxEntries > 0 && len(s.entries) > s.maxEntries {
		oldest := s.insertOrder[0]
		s.insertOrder = s.insertOrder[1:]
		delete(s.entries, oldest)
	}
	return nil
}

// Load retrieves a checkpoint by ID.
func (s *Saver) Load(_ context.Context, id string) (*checkpoint.Checkpoint, error) {
	s.mu.RLock()
	data, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, checkpoint.ErrCheckpointNotFound
	}
	var cp checkpoint.Checkpoint
	if err := s.serializer.Deserialize(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: %v", checkpoint.ErrLoadFailed, err)
	}
	return &cp, nil
}

// List returns matching checkpoints, newest first.
func (s *Saver) List(_ context.Context, filter checkpoint.Filter) ([]*checkpoint.Checkpoint, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*checkpoint.Checkpoint
	for _, data := range s.entries {
		var cp checkpoint.Checkpoint
		if err := s.serializer.Deserialize(data, &cp); err != nil {
			return nil, fmt.Errorf("%w: %v", checkpoint.ErrLoadFailed, err)
		}
		if filter.Matches(&cp) {
			matches = append(matches, &cp)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].Timestamp.Equal(matches[j].Timestamp) {
			return matches[i].Timestamp.After(matches[j].Timestamp)
		}
		return matches[i].Step > matches[j].Step
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matches) {
			return nil, nil
		}
		matches = matches[filter.Offset:]
	}
	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}
	return matches, nil
}

// Delete removes a checkpoint by ID.
func (s *Saver) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return checkpoint.ErrCheckpointNotFound
	}
	delete(s.entries, id)
	for i, sid := range s.insertOrder {
		if sid == id {
			s.insertOrder = append(s.insertOrder[:i], s.insertOrder[i+1:]...)
			break
		}
	}
	return nil
}
