package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowsim/flowsim/internal/adapters/repository/memory"
	"github.com/flowsim/flowsim/internal/app/dto"
	"github.com/flowsim/flowsim/internal/app/services"
	"github.com/flowsim/flowsim/internal/core/flowsheet"
	"github.com/flowsim/flowsim/internal/core/plan"
)

// contractionLoop builds halver <-> relay where the loop map is
// x -> 0.5*x + [1, 1], with fixed point [2, 2].
func contractionLoop(t *testing.T, loopGain float64) (*flowsheet.Flowsheet, *plan.Plan) {
	t.Helper()
	fs, err := flowsheet.New("loop", "", 2)
	require.NoError(t, err)
	require.NoError(t, fs.AddNode(&flowsheet.Node{
		ID: "halver", Type: KindGain,
		Params:  flowsheet.Params{"gain": loopGain, "offset": []float64{1, 1}},
		Inputs:  []flowsheet.Port{{Name: "in"}},
		Outputs: []flowsheet.Port{{Name: "out"}},
	}))
	require.NoError(t, fs.AddNode(&flowsheet.Node{
		ID: "relay", Type: KindGain,
		Params:  flowsheet.Params{"gain": 1.0},
		Inputs:  []flowsheet.Port{{Name: "in"}},
		Outputs: []flowsheet.Port{{Name: "out"}},
	}))
	require.NoError(t, fs.AddEdge(&flowsheet.Edge{ID: "e_forward", Source: "halver", SourcePort: "out", Target: "relay", TargetPort: "in"}))
	require.NoError(t, fs.AddEdge(&flowsheet.Edge{ID: "e_back", Source: "relay", SourcePort: "out", Target: "halver", TargetPort: "in"}))

	p, err := plan.Build(fs, plan.Options{})
	require.NoError(t, err)
	require.Equal(t, 1, p.LoopCount())
	return fs, p
}

// sourceChain builds source -> reactor -> probe with a width-2 convention
// (flow at index 0, one concentration).
func sourceChain(t *testing.T) (*flowsheet.Flowsheet, *plan.Plan) {
	t.Helper()
	fs, err := flowsheet.New("chain", "", 2)
	require.NoError(t, err)
	require.NoError(t, fs.AddNode(&flowsheet.Node{
		ID: "feed", Type: KindSource,
		Params:  flowsheet.Params{"output": []float64{1, 10}},
		Outputs: []flowsheet.Port{{Name: "out"}},
	}))
	require.NoError(t, fs.AddNode(&flowsheet.Node{
		ID: "reactor", Type: KindCSTR,
		Params:  flowsheet.Params{"flow_index": 0.0, "volume": 1.0},
		Inputs:  []flowsheet.Port{{Name: "in"}},
		Outputs: []flowsheet.Port{{Name: "out"}},
	}))
	require.NoError(t, fs.AddNode(&flowsheet.Node{
		ID: "probe", Type: KindSink,
		Inputs:  []flowsheet.Port{{Name: "in"}},
		Outputs: []flowsheet.Port{{Name: "out"}},
	}))
	require.NoError(t, fs.AddEdge(&flowsheet.Edge{ID: "e_feed", Source: "feed", SourcePort: "out", Target: "reactor", TargetPort: "in"}))
	require.NoError(t, fs.AddEdge(&flowsheet.Edge{ID: "e_out", Source: "reactor", SourcePort: "out", Target: "probe", TargetPort: "in"}))

	p, err := plan.Build(fs, plan.Options{})
	require.NoError(t, err)
	require.Equal(t, 0, p.LoopCount())
	return fs, p
}

func TestNewStepExecutor(t *testing.T) {
	fs, p := sourceChain(t)

	t.Run("nil flowsheet", func(t *testing.T) {
		_, err := NewStepExecutor(nil, p, DefaultRegistry(), ExecutorConfig{})
		assert.ErrorIs(t, err, dto.ErrMissingFlowsheet)
	})

	t.Run("nil plan", func(t *testing.T) {
		_, err := NewStepExecutor(fs, nil, DefaultRegistry(), ExecutorConfig{})
		assert.ErrorIs(t, err, dto.ErrMissingPlan)
	})

	t.Run("unknown component type", func(t *testing.T) {
		_, err := NewStepExecutor(fs, p, NewRegistry(), ExecutorConfig{})
		assert.ErrorIs(t, err, ErrUnknownComponentType)
	})

	t.Run("starts idle", func(t *testing.T) {
		exec, err := NewStepExecutor(fs, p, DefaultRegistry(), ExecutorConfig{})
		require.NoError(t, err)
		assert.Equal(t, dto.StatusIdle, exec.Status())
		assert.Equal(t, 0, exec.StepCount())
		assert.NotEmpty(t, exec.RunID())
	})
}

func TestStepExecutor_LinearChain(t *testing.T) {
	fs, p := sourceChain(t)
	exec, err := NewStepExecutor(fs, p, DefaultRegistry(), ExecutorConfig{})
	require.NoError(t, err)

	res, err := exec.AdvanceStep(context.Background(), 0.5)
	require.NoError(t, err)
	assert.Equal(t, dto.StatusConverged, res.Status)
	assert.Len(t, res.Stages, 3)
	assert.Equal(t, 1, exec.StepCount())
	assert.InDelta(t, 0.5, exec.SimTime(), 1e-12)

	feed, ok := exec.EdgeValue("e_feed")
	require.True(t, ok)
	assert.Equal(t, flowsheet.Stream{1, 10}, feed)

	out, ok := exec.EdgeValue("e_out")
	require.True(t, ok)
	assert.InDelta(t, 5, out[1], 1e-12) // one euler step toward the feed

	// Temporal state carries across steps: the tank keeps integrating.
	_, err = exec.AdvanceStep(context.Background(), 0.5)
	require.NoError(t, err)
	out, ok = exec.EdgeValue("e_out")
	require.True(t, ok)
	assert.InDelta(t, 7.5, out[1], 1e-12)

	probe, ok := exec.Component("probe")
	require.True(t, ok)
	assert.InDelta(t, 7.5, probe.(*sink).Last()[1], 1e-12)
}

func TestStepExecutor_LoopConverges(t *testing.T) {
	fs, p := contractionLoop(t, 0.5)
	exec, err := NewStepExecutor(fs, p, DefaultRegistry(), ExecutorConfig{})
	require.NoError(t, err)

	res, err := exec.AdvanceStep(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, dto.StatusConverged, res.Status)
	require.Len(t, res.Stages, 1)
	assert.True(t, res.Stages[0].Converged)
	assert.Less(t, res.Stages[0].Residual, p.Options.Tolerance)
	assert.Greater(t, res.Stages[0].Iterations, 1)
	assert.Less(t, res.Stages[0].Iterations, p.Options.MaxIterations)

	back, ok := exec.EdgeValue("e_back")
	require.True(t, ok)
	assert.InDelta(t, 2, back[0], 1e-5)
	assert.InDelta(t, 2, back[1], 1e-5)
}

func TestStepExecutor_WarmStart(t *testing.T) {
	fs, p := contractionLoop(t, 0.5)
	exec, err := NewStepExecutor(fs, p, DefaultRegistry(), ExecutorConfig{})
	require.NoError(t, err)

	first, err := exec.AdvanceStep(context.Background(), 1)
	require.NoError(t, err)

	// The converged values seed the next step, which settles immediately.
	second, err := exec.AdvanceStep(context.Background(), 1)
	require.NoError(t, err)
	assert.Greater(t, first.Stages[0].Iterations, second.Stages[0].Iterations)
	assert.Equal(t, 1, second.Stages[0].Iterations)
}

func TestStepExecutor_TearGuess(t *testing.T) {
	fs, p := contractionLoop(t, 0.5)
	exec, err := NewStepExecutor(fs, p, DefaultRegistry(), ExecutorConfig{})
	require.NoError(t, err)

	// Seeding the tear with the exact fixed point converges on iteration one.
	exec.SetTearGuess("e_back", flowsheet.Stream{2, 2})
	res, err := exec.AdvanceStep(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stages[0].Iterations)
}

func TestStepExecutor_NonConvergence(t *testing.T) {
	t.Run("fail policy surfaces the error", func(t *testing.T) {
		fs, p := contractionLoop(t, 1.0) // x -> x + [1,1] never settles
		exec, err := NewStepExecutor(fs, p, DefaultRegistry(), ExecutorConfig{})
		require.NoError(t, err)

		res, err := exec.AdvanceStep(context.Background(), 1)
		require.Error(t, err)
		assert.True(t, dto.IsNonConvergence(err))

		var nce *dto.NonConvergenceError
		require.True(t, errors.As(err, &nce))
		assert.Equal(t, p.Options.MaxIterations, nce.Iterations)
		assert.GreaterOrEqual(t, nce.Residual, p.Options.Tolerance)

		// The step still completed: values kept, caller decides what to do.
		assert.Equal(t, dto.StatusIterationCapReached, res.Status)
		assert.Equal(t, 1, exec.StepCount())
		_, ok := exec.EdgeValue("e_back")
		assert.True(t, ok)
	})

	t.Run("accept policy logs and continues", func(t *testing.T) {
		fs, p := contractionLoop(t, 1.0)
		exec, err := NewStepExecutor(fs, p, DefaultRegistry(), ExecutorConfig{
			NonConvergence: dto.NonConvergenceAccept,
		})
		require.NoError(t, err)

		res, err := exec.AdvanceStep(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, dto.StatusIterationCapReached, res.Status)
		assert.False(t, res.Stages[0].Converged)
		assert.Equal(t, 1, exec.StepCount())
	})
}

// flaky succeeds on its first call and fails afterwards, for rollback tests.
type flaky struct {
	calls int
}

func (c *flaky) Step(_ context.Context, _ float64, _ map[string]flowsheet.Stream) (map[string]flowsheet.Stream, error) {
	c.calls++
	if c.calls > 1 {
		return nil, errors.New("sensor dropout")
	}
	return map[string]flowsheet.Stream{"out": {float64(c.calls), 0}}, nil
}

func TestStepExecutor_RollbackOnComputationError(t *testing.T) {
	fs, err := flowsheet.New("rollback", "", 2)
	require.NoError(t, err)
	require.NoError(t, fs.AddNode(&flowsheet.Node{
		ID: "unstable", Type: "flaky",
		Outputs: []flowsheet.Port{{Name: "out"}},
	}))
	require.NoError(t, fs.AddNode(&flowsheet.Node{
		ID: "probe", Type: KindSink,
		Inputs:  []flowsheet.Port{{Name: "in"}},
		Outputs: []flowsheet.Port{{Name: "out"}},
	}))
	require.NoError(t, fs.AddEdge(&flowsheet.Edge{ID: "e1", Source: "unstable", SourcePort: "out", Target: "probe", TargetPort: "in"}))

	registry := DefaultRegistry()
	require.NoError(t, registry.Register("flaky", func(_ string, _ int, _ flowsheet.Params) (Component, error) {
		return &flaky{}, nil
	}))

	p, err := plan.Build(fs, plan.Options{})
	require.NoError(t, err)
	exec, err := NewStepExecutor(fs, p, registry, ExecutorConfig{})
	require.NoError(t, err)

	// First step succeeds and establishes edge values.
	_, err = exec.AdvanceStep(context.Background(), 1)
	require.NoError(t, err)
	before := exec.EdgeValues()
	require.Equal(t, flowsheet.Stream{1, 0}, before["e1"])

	// Second step fails mid-sweep; its partial updates must not survive.
	res, err := exec.AdvanceStep(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, dto.IsComputation(err))

	var ce *dto.ComputationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "unstable", ce.NodeID)

	assert.Equal(t, dto.StatusFailed, res.Status)
	assert.Equal(t, dto.StatusFailed, exec.Status())
	assert.Equal(t, 1, exec.StepCount())
	assert.Equal(t, before, exec.EdgeValues())
}

func TestStepExecutor_InvalidTimestep(t *testing.T) {
	fs, p := sourceChain(t)
	exec, err := NewStepExecutor(fs, p, DefaultRegistry(), ExecutorConfig{})
	require.NoError(t, err)

	_, err = exec.AdvanceStep(context.Background(), 0)
	assert.ErrorIs(t, err, dto.ErrInvalidTimestep)
	_, err = exec.AdvanceStep(context.Background(), -1)
	assert.ErrorIs(t, err, dto.ErrInvalidTimestep)
}

func TestStepExecutor_ContextCancellation(t *testing.T) {
	fs, p := contractionLoop(t, 0.5)
	exec, err := NewStepExecutor(fs, p, DefaultRegistry(), ExecutorConfig{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = exec.AdvanceStep(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, dto.StatusFailed, exec.Status())
	assert.Equal(t, 0, exec.StepCount())
}

func TestStepExecutor_CheckpointsAndRestore(t *testing.T) {
	fs, p := contractionLoop(t, 0.5)
	exec, err := NewStepExecutor(fs, p, DefaultRegistry(), ExecutorConfig{CheckpointEvery: 2})
	require.NoError(t, err)

	saver := memory.DefaultSaver()
	svc := services.NewCheckpointService(saver)
	exec.SetCheckpointService(svc)

	for i := 0; i < 4; i++ {
		_, err := exec.AdvanceStep(context.Background(), 0.25)
		require.NoError(t, err)
	}

	latest, err := svc.Latest(context.Background(), exec.RunID())
	require.NoError(t, err)
	assert.Equal(t, 4, latest.Step)
	assert.InDelta(t, 1.0, latest.SimTime, 1e-12)

	// Resume a fresh executor from the persisted state.
	cp, values, err := svc.Load(context.Background(), latest.ID)
	require.NoError(t, err)

	resumed, err := NewStepExecutor(fs, p, DefaultRegistry(), ExecutorConfig{})
	require.NoError(t, err)
	require.NoError(t, resumed.RestoreValues(values, cp.Step, cp.SimTime))
	assert.Equal(t, 4, resumed.StepCount())

	res, err := resumed.AdvanceStep(context.Background(), 0.25)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stages[0].Iterations) // warm start from the checkpoint
}
