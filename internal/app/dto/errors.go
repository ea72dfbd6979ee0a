// Package dto defines the execution data transfer objects and the error
// taxonomy shared between the executor and its callers.
package dto

import (
	"errors"
	"fmt"
)

// Execution errors
var (
	ErrMissingFlowsheet = errors.New("flowsheet is required")
	ErrMissingPlan      = errors.New("execution plan is required")
	ErrInvalidTimestep  = errors.New("timestep must be positive")
	ErrExecutorBusy     = errors.New("executor is already running a step")
	ErrRunFinished      = errors.New("run already finished")
)

// ComputationError reports a component step failure. It is fatal for the
// current step: the executor rolls the step's edge values back and surfaces
// the offending node.
type ComputationError struct {
	NodeID string
	Err    error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("node %s: computation failed: %v", e.NodeID, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

// NewComputationError wraps a component error with its node ID.
func NewComputationError(nodeID string, err error) *ComputationError {
	return &ComputationError{NodeID: nodeID, Err: err}
}

// NonConvergenceError reports that a loop stage hit its iteration cap before
// the tear-edge residual dropped below tolerance. The edge values are left at
// their last (unconverged) state so the caller can decide whether to abort or
// continue; silently accepting would corrupt downstream results.
type NonConvergenceError struct {
	Stage      int
	Nodes      []string
	Residual   float64
	Tolerance  float64
	Iterations int
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("loop stage %d (%v) did not converge after %d iterations: residual %.6g > tolerance %.6g",
		e.Stage, e.Nodes, e.Iterations, e.Residual, e.Tolerance)
}

// IsNonConvergence reports whether err is (or wraps) a NonConvergenceError.
func IsNonConvergence(err error) bool {
	var nce *NonConvergenceError
	return errors.As(err, &nce)
}

// IsComputation reports whether err is (or wraps) a ComputationError.
func IsComputation(err error) bool {
	var ce *ComputationError
	return errors.As(err, &ce)
}
