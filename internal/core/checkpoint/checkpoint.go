// Package checkpoint provides the core checkpoint domain entities and
// interfaces with zero external dependencies. A checkpoint is a snapshot of
// every edge value after a completed simulation step; restoring one gives a
// warm start at that step.
package checkpoint

import (
	"time"
)

// Checkpoint represents the saved edge-value state of a run after one step.
type Checkpoint struct {
	ID          string               `json:"id"`
	FlowsheetID string               `json:"flowsheet_id"`
	RunID       string               `json:"run_id"`
	Step        int                  `json:"step"`
	SimTime     float64              `json:"sim_time"`
	EdgeValues  map[string][]float64 `json:"edge_values"`
	Timestamp   time.Time            `json:"timestamp"`
	Version     string               `json:"version"`
}

// Validate ensures checkpoint integrity.
func (c *Checkpoint) Validate() error {
	if c.ID == "" {
		return ErrInvalidCheckpointID
	}
	if c.FlowsheetID == "" {
		return ErrInvalidFlowsheetID
	}
	if c.RunID == "" {
		return ErrInvalidRunID
	}
	if c.EdgeValues == nil {
		return ErrNilEdgeValues
	}
	return nil
}
