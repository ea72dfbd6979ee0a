package checkpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validCheckpoint() *Checkpoint {
	return &Checkpoint{
		ID:          "cp-1",
		FlowsheetID: "plant",
		RunID:       "run-1",
		Step:        3,
		SimTime:     0.03125,
		EdgeValues:  map[string][]float64{"e1": {1, 2}},
		Timestamp:   time.Now(),
		Version:     "1",
	}
}

func TestCheckpoint_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Checkpoint)
		wantErr error
	}{
		{name: "valid", mutate: func(*Checkpoint) {}},
		{name: "missing id", mutate: func(c *Checkpoint) { c.ID = "" }, wantErr: ErrInvalidCheckpointID},
		{name: "missing flowsheet id", mutate: func(c *Checkpoint) { c.FlowsheetID = "" }, wantErr: ErrInvalidFlowsheetID},
		{name: "missing run id", mutate: func(c *Checkpoint) { c.RunID = "" }, wantErr: ErrInvalidRunID},
		{name: "nil edge values", mutate: func(c *Checkpoint) { c.EdgeValues = nil }, wantErr: ErrNilEdgeValues},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := validCheckpoint()
			tt.mutate(cp)
			err := cp.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFilter_Validate(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name    string
		filter  Filter
		wantErr error
	}{
		{name: "empty filter", filter: Filter{}},
		{name: "valid range", filter: Filter{Since: &earlier, Before: &now}},
		{name: "negative limit", filter: Filter{Limit: -1}, wantErr: ErrInvalidLimit},
		{name: "negative offset", filter: Filter{Offset: -1}, wantErr: ErrInvalidOffset},
		{name: "inverted range", filter: Filter{Since: &now, Before: &earlier}, wantErr: ErrInvalidTimeRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFilter_Matches(t *testing.T) {
	cp := validCheckpoint()
	now := cp.Timestamp

	assert.True(t, (&Filter{}).Matches(cp))
	assert.True(t, (&Filter{FlowsheetID: "plant", RunID: "run-1"}).Matches(cp))
	assert.False(t, (&Filter{FlowsheetID: "other"}).Matches(cp))
	assert.False(t, (&Filter{RunID: "other"}).Matches(cp))

	earlier := now.Add(-time.Minute)
	later := now.Add(time.Minute)
	assert.True(t, (&Filter{Since: &earlier, Before: &later}).Matches(cp))
	assert.False(t, (&Filter{Since: &later}).Matches(cp))
	assert.False(t, (&Filter{Before: &earlier}).Matches(cp))
	// Before is exclusive.
	assert.False(t, (&Filter{Before: &now}).Matches(cp))
}
