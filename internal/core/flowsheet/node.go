// Package flowsheet provides node definitions
package flowsheet

// Port is a named connection point on a node. Position orders ports for
// display purposes only; execution semantics depend solely on the name.
type Port struct {
	Name     string `json:"name"`
	Position int    `json:"position,omitempty"`
}

// Params maps a parameter name to its resolved value. Values are either
// float64 scalars or []float64 vectors; parameter references have already
// been resolved by the time a node is constructed.
type Params map[string]any

// Scalar returns the named scalar parameter, or def when absent.
func (p Params) Scalar(name string, def float64) float64 {
	v, ok := p[name]
	if !ok {
		return def
	}
	f, ok := v.(float64)
	if !ok {
		return def
	}
	return f
}

// Vector returns the named vector parameter. The second return is false when
// the parameter is absent or not a vector.
func (p Params) Vector(name string) ([]float64, bool) {
	v, ok := p[name]
	if !ok {
		return nil, false
	}
	vec, ok := v.([]float64)
	return vec, ok
}

// Node is one component instance in the flowsheet. Nodes are created at
// configuration load and immutable afterwards; the live values of a run are
// attached to edges, never to nodes.
type Node struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // component-type tag, resolved via the registry
	Label   string `json:"label,omitempty"`
	Params  Params `json:"params,omitempty"`
	Inputs  []Port `json:"inputs,omitempty"`
	Outputs []Port `json:"outputs,omitempty"`
}

// Validate ensures node integrity.
func (n *Node) Validate() error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if n.Type == "" {
		return ErrInvalidNodeType
	}
	if err := validatePorts(n.Inputs); err != nil {
		return err
	}
	return validatePorts(n.Outputs)
}

func validatePorts(ports []Port) error {
	seen := make(map[string]bool, len(ports))
	for _, p := range ports {
		if p.Name == "" {
			return ErrInvalidPortName
		}
		if seen[p.Name] {
			return ErrDuplicatePort
		}
		seen[p.Name] = true
	}
	return nil
}

// HasInput reports whether the node declares an input port with that name.
func (n *Node) HasInput(name string) bool {
	return hasPort(n.Inputs, name)
}

// HasOutput reports whether the node declares an output port with that name.
func (n *Node) HasOutput(name string) bool {
	return hasPort(n.Outputs, name)
}

func hasPort(ports []Port, name string) bool {
	for _, p := range ports {
		if p.Name == name {
			return true
		}
	}
	return false
}
