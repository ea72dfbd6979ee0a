// Package checkpoint provides checkpoint persistence interfaces
package checkpoint

import (
	"context"
	"time"
)

// Saver persists checkpoints. The core domain depends on this interface;
// concrete savers live under internal/adapters/repository.
type Saver interface {
	// Save persists a checkpoint
	Save(ctx context.Context, cp *Checkpoint) error

	// Load retrieves a checkpoint by ID
	Load(ctx context.Context, id string) (*Checkpoint, error)

	// List returns checkpoints matching the filter, newest first
	List(ctx context.Context, filter Filter) ([]*Checkpoint, error)

	// Delete removes a checkpoint by ID
	Delete(ctx context.Context, id string) error
}

// Filter narrows checkpoint queries.
type Filter struct {
	FlowsheetID string     `json:"flowsheet_id,omitempty"`
	RunID       string     `json:"run_id,omitempty"`
	Limit       int        `json:"limit,omitempty"`
	Offset      int        `json:"offset,omitempty"`
	Since       *time.Time `json:"since,omitempty"`
	Before      *time.Time `json:"before,omitempty"`
}

// Validate ensures filter parameters are valid.
func (f *Filter) Validate() error {
	if f.Limit < 0 {
		return ErrInvalidLimit
	}
	if f.Offset < 0 {
		return ErrInvalidOffset
	}
	if f.Since != nil && f.Before != nil && f.Since.After(*f.Before) {
		return ErrInvalidTimeRange
	}
	return nil
}

// Matches reports whether a checkpoint satisfies the filter's field
// constraints (Limit/Offset are applied by the saver).
func (f *Filter) Matches(cp *Checkpoint) bool {
	if f.FlowsheetID != "" && cp.FlowsheetID != f.FlowsheetID {
		return false
	}
	if f.RunID != "" && cp.RunID != f.RunID {
		return false
	}
	if f.Since != nil && cp.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Before != nil && !cp.Timestamp.Before(*f.Before) {
		return false
	}
	return true
}
