package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowsim/flowsim/internal/app/dto"
	"github.com/flowsim/flowsim/internal/app/services"
	"github.com/flowsim/flowsim/internal/core/flowsheet"
	"github.com/flowsim/flowsim/internal/core/plan"
	"github.com/flowsim/flowsim/internal/ctxlog"
	imetrics "github.com/flowsim/flowsim/internal/infrastructure/metrics"
)

// ExecutorConfig tunes step execution. Loop tolerances and iteration caps
// come from the plan; this config covers everything around them.
type ExecutorConfig struct {
	ConvergenceMode ConvergenceMode
	NonConvergence  dto.NonConvergencePolicy
	// CheckpointEvery persists edge values every N completed steps when a
	// CheckpointService is attached. 0 disables periodic checkpoints.
	CheckpointEvery int
}

// StepExecutor drives one flowsheet through simulation steps according to a
// prebuilt execution plan. Linear stages run once per step in plan order;
// loop stages iterate to convergence on their tear edges. Edge values are
// exclusively owned by the executor for the duration of a step; a failed
// step is rolled back so partial updates never leak into the next one.
type StepExecutor struct {
	mu sync.Mutex

	fs         *flowsheet.Flowsheet
	plan       *plan.Plan
	runID      string
	components map[string]Component

	policy         ConvergencePolicy
	nonConvergence dto.NonConvergencePolicy

	checkpointEvery int
	checkpoints     *services.CheckpointService
	state           *services.StateService

	edgeValues map[string]flowsheet.Stream
	guesses    map[string]flowsheet.Stream

	step    int
	simTime float64
	status  dto.ExecutionStatus
}

// NewStepExecutor instantiates every node's component through the registry
// and prepares an executor in the Idle state.
func NewStepExecutor(fs *flowsheet.Flowsheet, p *plan.Plan, registry *Registry, cfg ExecutorConfig) (*StepExecutor, error) {
	if fs == nil {
		return nil, dto.ErrMissingFlowsheet
	}
	if p == nil {
		return nil, dto.ErrMissingPlan
	}
	if cfg.ConvergenceMode == "" {
		cfg.ConvergenceMode = ConvergenceAbsolute
	}
	if cfg.NonConvergence == "" {
		cfg.NonConvergence = dto.NonConvergenceFail
	}

	components := make(map[string]Component, fs.NodeCount())
	for _, id := range fs.NodeIDs() {
		n, _ := fs.Node(id)
		comp, err := registry.New(n.Type, n.ID, fs.StreamWidth, n.Params)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
		components[id] = comp
	}

	return &StepExecutor{
		fs:              fs,
		plan:            p,
		runID:           uuid.New().String(),
		components:      components,
		policy:          ConvergencePolicy{Mode: cfg.ConvergenceMode},
		nonConvergence:  cfg.NonConvergence,
		checkpointEvery: cfg.CheckpointEvery,
		state:           services.NewStateService(),
		edgeValues:      make(map[string]flowsheet.Stream),
		guesses:         make(map[string]flowsheet.Stream),
		status:          dto.StatusIdle,
	}, nil
}

// SetCheckpointService attaches periodic checkpoint persistence.
func (e *StepExecutor) SetCheckpointService(svc *services.CheckpointService) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkpoints = svc
}

// SetTearGuess overrides the zero-vector initial guess for one tear edge.
// It only affects the first iteration of the first step; afterwards the
// previous converged value seeds each loop (warm start).
func (e *StepExecutor) SetTearGuess(edgeID string, guess flowsheet.Stream) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.guesses[edgeID] = guess.Clone()
}

// RunID identifies this executor's run in checkpoints.
func (e *StepExecutor) RunID() string { return e.runID }

// Status returns the state-machine status after the most recent step.
func (e *StepExecutor) Status() dto.ExecutionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// StepCount returns the number of completed steps.
func (e *StepExecutor) StepCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step
}

// SimTime returns the accumulated simulation time.
func (e *StepExecutor) SimTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.simTime
}

// EdgeValue returns a copy of the current stream on an edge.
func (e *StepExecutor) EdgeValue(edgeID string) (flowsheet.Stream, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.edgeValues[edgeID]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// EdgeValues returns a copy of the full edge-value set.
func (e *StepExecutor) EdgeValues() map[string]flowsheet.Stream {
	e.mu.Lock()
	defer e.mu.Unlock()
	return flowsheet.CloneValues(e.edgeValues)
}

// RestoreValues replaces the edge-value set, e.g. when resuming a run from a
// checkpoint. The executor must be idle.
func (e *StepExecutor) RestoreValues(values map[string]flowsheet.Stream, step int, simTime float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == dto.StatusRunningStage {
		return dto.ErrExecutorBusy
	}
	e.edgeValues = flowsheet.CloneValues(values)
	e.step = step
	e.simTime = simTime
	return nil
}

// Component returns the live component instance for a node, for callers that
// need to read recorded state (e.g. a sink's last stream).
func (e *StepExecutor) Component(nodeID string) (Component, bool) {
	c, ok := e.components[nodeID]
	return c, ok
}

// AdvanceStep runs all stages once, in plan order, for one simulation step of
// size dt. On success the updated edge values become the warm start for the
// next step. A ComputationError aborts and rolls the step back; a
// NonConvergenceError keeps the unconverged values and is surfaced or logged
// according to the configured policy.
func (e *StepExecutor) AdvanceStep(ctx context.Context, dt float64) (*dto.StepResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if dt <= 0 {
		return nil, dto.ErrInvalidTimestep
	}
	if e.status == dto.StatusRunningStage {
		return nil, dto.ErrExecutorBusy
	}

	log := ctxlog.FromContext(ctx)
	result := &dto.StepResult{
		Step:      e.step,
		SimTime:   e.simTime,
		StartTime: time.Now(),
	}

	e.state.SaveSnapshot(e.runID, e.edgeValues)
	e.status = dto.StatusRunningStage
	imetrics.IncSteps()

	var stepErr error
	var capped *dto.NonConvergenceError

	for si, stage := range e.plan.Stages {
		if err := ctx.Err(); err != nil {
			stepErr = err
			break
		}
		switch stage.Kind {
		case plan.StageLinear:
			if err := e.sweep(ctx, dt, stage.Order); err != nil {
				stepErr = err
			} else {
				result.Stages = append(result.Stages, dto.StageResult{
					Stage: si, Kind: string(stage.Kind), Nodes: stage.Nodes, Iterations: 1, Converged: true,
				})
			}
		case plan.StageLoop:
			iters, residual, err := e.runLoop(ctx, dt, stage)
			sr := dto.StageResult{
				Stage: si, Kind: string(stage.Kind), Nodes: stage.Nodes,
				Iterations: iters, Residual: residual, Converged: err == nil,
			}
			if err != nil {
				var nce *dto.NonConvergenceError
				if errors.As(err, &nce) {
					nce.Stage = si
					capped = nce
					result.Stages = append(result.Stages, sr)
					imetrics.IncNonConvergences()
					log.Warn("loop stage did not converge",
						"stage", si, "nodes", stage.Nodes,
						"iterations", iters, "residual", residual)
					continue // remaining stages still run on the unconverged values
				}
				stepErr = err
			} else {
				result.Stages = append(result.Stages, sr)
			}
		}
		if stepErr != nil {
			break
		}
	}

	result.Duration = time.Since(result.StartTime)

	if stepErr != nil {
		// Fatal for this step: discard all intermediate edge updates.
		if snap, ok := e.state.LoadSnapshot(e.runID); ok {
			e.edgeValues = snap
		}
		e.state.Discard(e.runID)
		e.status = dto.StatusFailed
		result.Status = dto.StatusFailed
		result.Error = stepErr.Error()
		imetrics.IncRollbacks()
		return result, stepErr
	}

	e.state.Discard(e.runID)
	e.step++
	e.simTime += dt
	result.SimTime = e.simTime

	if e.checkpoints != nil && e.checkpointEvery > 0 && e.step%e.checkpointEvery == 0 {
		if _, err := e.checkpoints.Create(ctx, e.fs.ID, e.runID, e.step, e.simTime, e.edgeValues); err != nil {
			log.Warn("checkpoint failed", "step", e.step, "error", err)
		} else {
			imetrics.IncCheckpoints()
		}
	}

	if capped != nil {
		e.status = dto.StatusIterationCapReached
		result.Status = dto.StatusIterationCapReached
		if e.nonConvergence == dto.NonConvergenceFail {
			result.Error = capped.Error()
			return result, capped
		}
		return result, nil
	}

	e.status = dto.StatusConverged
	result.Status = dto.StatusConverged
	return result, nil
}

// sweep evaluates the nodes once in the given order, propagating outputs to
// edges immediately so downstream nodes in the same sweep see fresh values.
func (e *StepExecutor) sweep(ctx context.Context, dt float64, order []string) error {
	for _, nodeID := range order {
		inputs := e.collectInputs(nodeID)
		outputs, err := e.components[nodeID].Step(ctx, dt, inputs)
		imetrics.IncNodeEvaluations(1)
		if err != nil {
			return dto.NewComputationError(nodeID, err)
		}
		e.writeOutputs(nodeID, outputs)
	}
	return nil
}

// runLoop iterates a cyclic stage until the tear-edge residual drops below
// the plan tolerance or the iteration cap is hit. Tear edges carry the
// previous iteration's (relaxed) value into each sweep; every other edge
// inside the stage is fresh within the same iteration.
func (e *StepExecutor) runLoop(ctx context.Context, dt float64, stage plan.Stage) (int, float64, error) {
	opts := e.plan.Options

	// First step: seed tears with the configured guess or a zero stream.
	// Later steps find the previous step's converged values already present
	// (warm start).
	for _, tearID := range stage.TearEdges {
		if _, ok := e.edgeValues[tearID]; ok {
			continue
		}
		if guess, ok := e.guesses[tearID]; ok {
			e.edgeValues[tearID] = guess.Clone()
		} else {
			e.edgeValues[tearID] = flowsheet.ZeroStream(e.fs.StreamWidth)
		}
	}

	residual := 0.0
	for iter := 1; iter <= opts.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return iter - 1, residual, err
		}

		old := make(map[string]flowsheet.Stream, len(stage.TearEdges))
		for _, tearID := range stage.TearEdges {
			old[tearID] = e.edgeValues[tearID].Clone()
		}

		if err := e.sweep(ctx, dt, stage.Order); err != nil {
			return iter, residual, err
		}
		imetrics.IncLoopIterations(1)

		residual = 0.0
		for _, tearID := range stage.TearEdges {
			current, ok := e.edgeValues[tearID]
			if !ok {
				current = old[tearID]
			}
			if r := e.policy.Residual(old[tearID], current); r > residual {
				residual = r
			}
			// Under-relaxation damps oscillating recycles.
			if opts.Relaxation != 1.0 {
				relaxed := flowsheet.ZeroStream(len(current))
				for i := range relaxed {
					relaxed[i] = (1-opts.Relaxation)*old[tearID][i] + opts.Relaxation*current[i]
				}
				e.edgeValues[tearID] = relaxed
			}
		}

		if residual < opts.Tolerance {
			return iter, residual, nil
		}
	}

	return opts.MaxIterations, residual, &dto.NonConvergenceError{
		Nodes:      stage.Nodes,
		Residual:   residual,
		Tolerance:  opts.Tolerance,
		Iterations: opts.MaxIterations,
	}
}

// collectInputs gathers the streams currently present on a node's input
// edges, keyed by target port name. Ports whose edge carries no value yet are
// simply absent; components decide how to treat missing inputs.
func (e *StepExecutor) collectInputs(nodeID string) map[string]flowsheet.Stream {
	inputs := make(map[string]flowsheet.Stream)
	for _, edge := range e.fs.InEdges(nodeID) {
		if val, ok := e.edgeValues[edge.ID]; ok {
			inputs[edge.TargetPort] = val
		}
	}
	return inputs
}

// writeOutputs propagates a node's outputs onto its outgoing edges. A source
// port feeding several edges fans out with independent copies.
func (e *StepExecutor) writeOutputs(nodeID string, outputs map[string]flowsheet.Stream) {
	for _, edge := range e.fs.OutEdges(nodeID) {
		if val, ok := outputs[edge.SourcePort]; ok {
			e.edgeValues[edge.ID] = val.Clone()
		}
	}
}
