// Package plan defines domain-specific errors
package plan

import "errors"

var (
	ErrNilFlowsheet = errors.New("flowsheet cannot be nil")

	// ErrCyclicCondensation indicates a defect in the cycle analyzer: the
	// condensation of SCCs must always be acyclic.
	ErrCyclicCondensation = errors.New("condensation graph unexpectedly cyclic")

	// ErrUnbrokenCycle indicates the tear selection left a cycle inside an
	// SCC, so no internal topological order exists.
	ErrUnbrokenCycle = errors.New("tear selection left an unbroken cycle")

	ErrInvalidTolerance  = errors.New("convergence tolerance must be positive")
	ErrInvalidIterations = errors.New("max iterations must be positive")
	ErrInvalidRelaxation = errors.New("relaxation factor must be in (0, 1]")
)
