// Package flowsheet defines domain-specific errors
package flowsheet

import "errors"

// Domain errors - defined once, used everywhere
var (
	// Flowsheet errors
	ErrInvalidFlowsheetID = errors.New("invalid flowsheet ID")
	ErrInvalidStreamWidth = errors.New("stream width must be positive")

	// Node errors
	ErrNilNode           = errors.New("node cannot be nil")
	ErrInvalidNodeID     = errors.New("invalid node ID")
	ErrInvalidNodeType   = errors.New("invalid component-type tag")
	ErrDuplicateNode     = errors.New("duplicate node ID")
	ErrNodeNotFound      = errors.New("node not found")
	ErrDuplicatePort     = errors.New("duplicate port name")
	ErrInvalidPortName   = errors.New("invalid port name")

	// Edge errors
	ErrNilEdge         = errors.New("edge cannot be nil")
	ErrInvalidEdgeID   = errors.New("invalid edge ID")
	ErrDuplicateEdge   = errors.New("duplicate edge ID")
	ErrUnknownNode     = errors.New("edge references unknown node")
	ErrUnknownPort     = errors.New("edge references unknown port")
	ErrFanInViolation  = errors.New("target port already has an incoming edge")
)
