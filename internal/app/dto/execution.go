package dto

import (
	"time"
)

// ExecutionStatus is the executor's state-machine status. Within a step it
// moves Idle -> RunningStage -> (Converged | IterationCapReached | Failed)
// and returns to Idle when the next step begins.
type ExecutionStatus string

const (
	StatusIdle                ExecutionStatus = "idle"
	StatusRunningStage        ExecutionStatus = "running_stage"
	StatusConverged           ExecutionStatus = "converged"
	StatusIterationCapReached ExecutionStatus = "iteration_cap_reached"
	StatusFailed              ExecutionStatus = "failed"
)

// NonConvergencePolicy decides what AdvanceStep does when a loop stage hits
// its iteration cap.
type NonConvergencePolicy string

const (
	// NonConvergenceFail surfaces the NonConvergenceError to the caller.
	NonConvergenceFail NonConvergencePolicy = "fail"
	// NonConvergenceAccept logs the residual and continues with the
	// unconverged values.
	NonConvergenceAccept NonConvergencePolicy = "accept"
)

// StageResult records one stage's outcome within a step.
type StageResult struct {
	Stage      int      `json:"stage"`
	Kind       string   `json:"kind"`
	Nodes      []string `json:"nodes"`
	Iterations int      `json:"iterations"` // 1 for linear stages
	Residual   float64  `json:"residual"`   // last tear residual, 0 for linear stages
	Converged  bool     `json:"converged"`
}

// StepResult records the outcome of one full simulation step.
type StepResult struct {
	Step      int             `json:"step"`
	SimTime   float64         `json:"sim_time"`
	Status    ExecutionStatus `json:"status"`
	Stages    []StageResult   `json:"stages"`
	StartTime time.Time       `json:"start_time"`
	Duration  time.Duration   `json:"duration"`
	Error     string          `json:"error,omitempty"`
}

// MaxResidual returns the largest stage residual of the step.
func (r *StepResult) MaxResidual() float64 {
	max := 0.0
	for _, st := range r.Stages {
		if st.Residual > max {
			max = st.Residual
		}
	}
	return max
}
