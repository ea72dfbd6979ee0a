// Package flowsheet provides edge definitions
package flowsheet

// Edge is a directed connection from a source node's output port to a target
// node's input port. Edges are immutable once the plan is built; only the
// stream payload they carry changes per iteration and step.
type Edge struct {
	ID         string `json:"id"`
	Source     string `json:"source"`      // source node ID
	SourcePort string `json:"source_port"` // output port on the source node
	Target     string `json:"target"`      // target node ID
	TargetPort string `json:"target_port"` // input port on the target node
}

// Validate ensures edge integrity. Self-loops are legal: a recycle stream may
// feed a node's own input.
func (e *Edge) Validate() error {
	if e.ID == "" {
		return ErrInvalidEdgeID
	}
	if e.Source == "" || e.Target == "" {
		return ErrUnknownNode
	}
	if e.SourcePort == "" || e.TargetPort == "" {
		return ErrInvalidPortName
	}
	return nil
}

// IsSelfLoop reports whether source and target are the same node.
func (e *Edge) IsSelfLoop() bool {
	return e.Source == e.Target
}
