package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowsim/flowsim/internal/core/checkpoint"
	"github.com/flowsim/flowsim/internal/core/flowsheet"
)

// CheckpointVersion tags persisted checkpoints with the payload layout.
const CheckpointVersion = "1"

// CheckpointService turns live edge values into persisted checkpoints and
// back, delegating storage to a checkpoint.Saver.
type CheckpointService struct {
	saver checkpoint.Saver
}

// NewCheckpointService creates a checkpoint service backed by the saver.
func NewCheckpointService(saver checkpoint.Saver) *CheckpointService {
	return &CheckpointService{saver: saver}
}

// Create persists the edge values of a completed step and returns the new
// checkpoint ID.
func (s *CheckpointService) Create(ctx context.Context, flowsheetID, runID string, step int, simTime float64, values map[string]flowsheet.Stream) (string, error) {
	edgeValues := make(map[string][]float64, len(values))
	for id, stream := range values {
		edgeValues[id] = stream.Clone()
	}
	cp := &checkpoint.Checkpoint{
		ID:          uuid.New().String(),
		FlowsheetID: flowsheetID,
		RunID:       runID,
		Step:        step,
		SimTime:     simTime,
		EdgeValues:  edgeValues,
		Timestamp:   time.Now(),
		Version:     CheckpointVersion,
	}
	if err := s.saver.Save(ctx, cp); err != nil {
		return "", fmt.Errorf("save checkpoint: %w", err)
	}
	return cp.ID, nil
}

// Load retrieves a checkpoint and converts its payload back to edge streams.
func (s *CheckpointService) Load(ctx context.Context, id string) (*checkpoint.Checkpoint, map[string]flowsheet.Stream, error) {
	cp, err := s.saver.Load(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load checkpoint: %w", err)
	}
	values := make(map[string]flowsheet.Stream, len(cp.EdgeValues))
	for id, vec := range cp.EdgeValues {
		values[id] = flowsheet.Stream(vec).Clone()
	}
	return cp, values, nil
}

// Latest returns the most recent checkpoint for a run, or
// checkpoint.ErrCheckpointNotFound when none exists.
func (s *CheckpointService) Latest(ctx context.Context, runID string) (*checkpoint.Checkpoint, error) {
	cps, err := s.saver.List(ctx, checkpoint.Filter{RunID: runID, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	if len(cps) == 0 {
		return nil, checkpoint.ErrCheckpointNotFound
	}
	return cps[0], nil
}
