// Package config defines the declarative flowsheet description consumed by
// the runtime: node and edge descriptors, simulation settings, a named
// parameter table, and the edges to observe. Documents load from JSON or
// YAML; building turns a validated document plus a parameter resolver into a
// flowsheet graph.
package config

import (
	"fmt"

	"github.com/flowsim/flowsim/internal/core/flowsheet"
	"github.com/flowsim/flowsim/pkg/validation"
)

// Info identifies the flowsheet.
type Info struct {
	ID          string `json:"id" yaml:"id" validate:"required,ident"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	StreamWidth int    `json:"stream_width,omitempty" yaml:"stream_width,omitempty" validate:"gte=0"`
}

// Simulation holds the driver and convergence settings. Zero values are
// replaced with defaults in Validate.
type Simulation struct {
	Timestep        float64 `json:"timestep" yaml:"timestep" validate:"gt=0"`
	EndTime         float64 `json:"end_time" yaml:"end_time" validate:"gte=0"`
	Tolerance       float64 `json:"tolerance,omitempty" yaml:"tolerance,omitempty" validate:"gte=0"`
	MaxIterations   int     `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty" validate:"gte=0"`
	Relaxation      float64 `json:"relaxation,omitempty" yaml:"relaxation,omitempty" validate:"gte=0,lte=1"`
	CheckpointEvery int     `json:"checkpoint_every,omitempty" yaml:"checkpoint_every,omitempty" validate:"gte=0"`
	// ConvergenceMode is "absolute" (default) or "relative".
	ConvergenceMode string `json:"convergence_mode,omitempty" yaml:"convergence_mode,omitempty" validate:"omitempty,oneof=absolute relative"`
	// OnNonConvergence is "fail" (default) or "accept".
	OnNonConvergence string `json:"on_non_convergence,omitempty" yaml:"on_non_convergence,omitempty" validate:"omitempty,oneof=fail accept"`
}

// NodeDescriptor declares one component instance. Parameter values are
// numbers, vectors of numbers, or string references into the document's
// parameter table.
type NodeDescriptor struct {
	ID         string         `json:"id" yaml:"id" validate:"required,ident"`
	Type       string         `json:"type" yaml:"type" validate:"required,ident"`
	Label      string         `json:"label,omitempty" yaml:"label,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Inputs     []string       `json:"inputs,omitempty" yaml:"inputs,omitempty" validate:"dive,ident"`
	Outputs    []string       `json:"outputs,omitempty" yaml:"outputs,omitempty" validate:"dive,ident"`
}

// EdgeDescriptor declares one port-to-port connection.
type EdgeDescriptor struct {
	ID         string `json:"id" yaml:"id" validate:"required,ident"`
	SourceNode string `json:"source_node" yaml:"source_node" validate:"required,ident"`
	SourcePort string `json:"source_port" yaml:"source_port" validate:"required,ident"`
	TargetNode string `json:"target_node" yaml:"target_node" validate:"required,ident"`
	TargetPort string `json:"target_port" yaml:"target_port" validate:"required,ident"`
}

// Document is a complete declarative flowsheet description.
type Document struct {
	Flowsheet  Info             `json:"flowsheet" yaml:"flowsheet"`
	Simulation Simulation       `json:"simulation" yaml:"simulation"`
	Parameters map[string]any   `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Nodes      []NodeDescriptor `json:"nodes" yaml:"nodes" validate:"required,min=1,dive"`
	Edges      []EdgeDescriptor `json:"edges,omitempty" yaml:"edges,omitempty" validate:"dive"`
	// Observe lists the edge IDs recorded into the results table, one column
	// group per edge.
	Observe []string `json:"observe,omitempty" yaml:"observe,omitempty" validate:"dive,ident"`
}

// Validate applies defaults and checks the document structure. Referential
// integrity between edges and nodes is the flowsheet's job at build time.
func (d *Document) Validate() error {
	if d.Simulation.Timestep == 0 {
		d.Simulation.Timestep = 1.0 / 96 // 15-minute steps in day units
	}
	if d.Simulation.Tolerance == 0 {
		d.Simulation.Tolerance = 1e-6
	}
	if d.Simulation.MaxIterations == 0 {
		d.Simulation.MaxIterations = 100
	}
	if d.Simulation.Relaxation == 0 {
		d.Simulation.Relaxation = 1.0
	}
	if d.Simulation.ConvergenceMode == "" {
		d.Simulation.ConvergenceMode = "absolute"
	}
	if d.Simulation.OnNonConvergence == "" {
		d.Simulation.OnNonConvergence = "fail"
	}
	if err := validation.Struct(d); err != nil {
		return fmt.Errorf("invalid document: %w", err)
	}
	return nil
}

// BuildFlowsheet validates the document, resolves every node's parameters
// through the resolver, and constructs the flowsheet graph. All malformed
// references fail here, before any simulation step executes.
func BuildFlowsheet(doc *Document, resolver Resolver) (*flowsheet.Flowsheet, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if resolver == nil {
		resolver = TableResolver(nil)
	}

	fs, err := flowsheet.New(doc.Flowsheet.ID, doc.Flowsheet.Name, doc.Flowsheet.StreamWidth)
	if err != nil {
		return nil, err
	}

	for _, nd := range doc.Nodes {
		params, err := ResolveParams(nd.Parameters, resolver)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", nd.ID, err)
		}
		node := &flowsheet.Node{
			ID:      nd.ID,
			Type:    nd.Type,
			Label:   nd.Label,
			Params:  params,
			Inputs:  makePorts(nd.Inputs),
			Outputs: makePorts(nd.Outputs),
		}
		if err := fs.AddNode(node); err != nil {
			return nil, err
		}
	}

	for _, ed := range doc.Edges {
		edge := &flowsheet.Edge{
			ID:         ed.ID,
			Source:     ed.SourceNode,
			SourcePort: ed.SourcePort,
			Target:     ed.TargetNode,
			TargetPort: ed.TargetPort,
		}
		if err := fs.AddEdge(edge); err != nil {
			return nil, err
		}
	}

	for _, edgeID := range doc.Observe {
		if _, ok := fs.Edge(edgeID); !ok {
			return nil, fmt.Errorf("observe %q: %w", edgeID, ErrUnknownObservedEdge)
		}
	}
	return fs, nil
}

func makePorts(names []string) []flowsheet.Port {
	ports := make([]flowsheet.Port, len(names))
	for i, name := range names {
		ports[i] = flowsheet.Port{Name: name, Position: i}
	}
	return ports
}
