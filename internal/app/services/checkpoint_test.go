package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowsim/flowsim/internal/adapters/repository/memory"
	"github.com/flowsim/flowsim/internal/core/checkpoint"
	"github.com/flowsim/flowsim/internal/core/flowsheet"
)

func TestCheckpointService_CreateLoad(t *testing.T) {
	svc := NewCheckpointService(memory.DefaultSaver())
	values := map[string]flowsheet.Stream{"e1": {1, 2}, "e2": {3, 4}}

	id, err := svc.Create(context.Background(), "plant", "run-1", 5, 0.05, values)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	cp, restored, err := svc.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "plant", cp.FlowsheetID)
	assert.Equal(t, "run-1", cp.RunID)
	assert.Equal(t, 5, cp.Step)
	assert.InDelta(t, 0.05, cp.SimTime, 1e-12)
	assert.Equal(t, CheckpointVersion, cp.Version)
	assert.Equal(t, values, restored)

	// The restored streams are copies, not views into the checkpoint.
	restored["e1"][0] = 99
	assert.Equal(t, []float64{1, 2}, cp.EdgeValues["e1"])
}

func TestCheckpointService_Latest(t *testing.T) {
	svc := NewCheckpointService(memory.DefaultSaver())

	_, err := svc.Latest(context.Background(), "run-1")
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)

	for step := 1; step <= 3; step++ {
		_, err := svc.Create(context.Background(), "plant", "run-1", step, float64(step), map[string]flowsheet.Stream{"e1": {float64(step)}})
		require.NoError(t, err)
	}
	_, err = svc.Create(context.Background(), "plant", "run-2", 9, 9, map[string]flowsheet.Stream{"e1": {9}})
	require.NoError(t, err)

	latest, err := svc.Latest(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Step)
	assert.Equal(t, "run-1", latest.RunID)
}
