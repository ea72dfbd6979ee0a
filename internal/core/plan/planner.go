// Package plan turns a flowsheet into an execution plan: Tarjan SCC
// decomposition, condensation ordering, tear-edge selection for cyclic
// components, and a fixed internal order per stage. The plan is built once
// per configuration and treated as read-only during simulation; it must be
// rebuilt if nodes or edges change.
package plan

import (
	"fmt"

	"github.com/flowsim/flowsim/internal/core/flowsheet"
)

// StageKind discriminates the two stage shapes.
type StageKind string

const (
	// StageLinear runs each node exactly once per simulation step.
	StageLinear StageKind = "linear"
	// StageLoop iterates its internal order until tear-edge values converge
	// or the iteration cap is reached.
	StageLoop StageKind = "loop"
)

// Stage is one entry of the execution plan. Linear stages hold a single node;
// loop stages hold a whole cyclic SCC with its tear edges and fixed internal
// order.
type Stage struct {
	Kind      StageKind `json:"kind"`
	Component int       `json:"component"` // condensation component index
	Nodes     []string  `json:"nodes"`     // SCC members, ascending
	Order     []string  `json:"order"`     // execution order within the stage
	TearEdges []string  `json:"tear_edges,omitempty"`
}

// Options holds the loop-stage convergence settings baked into a plan.
type Options struct {
	Tolerance     float64 `json:"tolerance"`
	MaxIterations int     `json:"max_iterations"`
	// Relaxation is the successive-substitution under-relaxation factor:
	// next = (1-w)*old + w*new. 1 is pure substitution.
	Relaxation float64 `json:"relaxation"`
}

// DefaultOptions are used for any field left at its zero value.
var DefaultOptions = Options{
	Tolerance:     1e-6,
	MaxIterations: 100,
	Relaxation:    1.0,
}

// Validate checks option ranges after filling defaults.
func (o *Options) Validate() error {
	if o.Tolerance == 0 {
		o.Tolerance = DefaultOptions.Tolerance
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = DefaultOptions.MaxIterations
	}
	if o.Relaxation == 0 {
		o.Relaxation = DefaultOptions.Relaxation
	}
	if o.Tolerance < 0 {
		return ErrInvalidTolerance
	}
	if o.MaxIterations < 0 {
		return ErrInvalidIterations
	}
	if o.Relaxation < 0 || o.Relaxation > 1 {
		return ErrInvalidRelaxation
	}
	return nil
}

// Plan is the ordered sequence of stages for one flowsheet. Stages appear in
// condensation dependency order: every producer stage precedes all stages
// consuming its output.
type Plan struct {
	FlowsheetID   string         `json:"flowsheet_id"`
	Stages        []Stage        `json:"stages"`
	NodeComponent map[string]int `json:"node_component"`
	Options       Options        `json:"options"`
}

// TearEdges returns the tear-edge IDs of every loop stage, in plan order.
func (p *Plan) TearEdges() []string {
	var ids []string
	for _, st := range p.Stages {
		ids = append(ids, st.TearEdges...)
	}
	return ids
}

// LoopCount returns the number of loop stages.
func (p *Plan) LoopCount() int {
	n := 0
	for _, st := range p.Stages {
		if st.Kind == StageLoop {
			n++
		}
	}
	return n
}

// Build analyzes the flowsheet and produces its execution plan. Building is
// deterministic: the same flowsheet always yields an identical plan.
func Build(fs *flowsheet.Flowsheet, opts Options) (*Plan, error) {
	if fs == nil {
		return nil, ErrNilFlowsheet
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	comps := stronglyConnected(fs)
	adj, nodeComp := condense(fs, comps)
	order, err := condensationOrder(adj, comps)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		FlowsheetID:   fs.ID,
		Stages:        make([]Stage, 0, len(order)),
		NodeComponent: nodeComp,
		Options:       opts,
	}

	for _, ci := range order {
		members := comps[ci]
		if len(members) == 1 && !fs.HasSelfLoop(members[0]) {
			p.Stages = append(p.Stages, Stage{
				Kind:      StageLinear,
				Component: ci,
				Nodes:     members,
				Order:     members,
			})
			continue
		}

		tears := selectTears(fs, members)
		internal, err := orderWithoutTears(fs, members, tears)
		if err != nil {
			return nil, fmt.Errorf("component %d (%v): %w", ci, members, err)
		}
		p.Stages = append(p.Stages, Stage{
			Kind:      StageLoop,
			Component: ci,
			Nodes:     members,
			Order:     internal,
			TearEdges: tears,
		})
	}
	return p, nil
}
