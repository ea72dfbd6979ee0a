// Package flowsheet provides the core flowsheet graph entities: component
// nodes, directed port-to-port edges, and the adjacency queries the cycle
// analyzer and planner are built on. It has zero external dependencies.
package flowsheet

import (
	"fmt"
	"sort"
)

// DefaultStreamWidth is the stream vector width used when a flowsheet does
// not specify one. 21 matches the widest common convention for activated
// sludge process state (13 concentrations, TSS, flow, temperature, 5 aux).
const DefaultStreamWidth = 21

// Flowsheet is the directed graph of process components and their
// connections. It may be cyclic: recycle streams are the normal case, not an
// error. Build-time validation guarantees referential integrity and the
// fan-in-of-one invariant for input ports; cycle handling is the planner's
// job, not the graph's.
type Flowsheet struct {
	ID          string
	Name        string
	StreamWidth int

	nodes    map[string]*Node
	edges    []*Edge
	edgeByID map[string]*Edge
	inEdges  map[string][]*Edge
	outEdges map[string][]*Edge
	// target node -> input port -> occupied, enforces fan-in of 1
	inPortTaken map[string]map[string]bool
}

// New creates an empty flowsheet with the given stream width. A width of 0
// selects DefaultStreamWidth.
func New(id, name string, streamWidth int) (*Flowsheet, error) {
	if id == "" {
		return nil, ErrInvalidFlowsheetID
	}
	if streamWidth == 0 {
		streamWidth = DefaultStreamWidth
	}
	if streamWidth < 0 {
		return nil, ErrInvalidStreamWidth
	}
	return &Flowsheet{
		ID:          id,
		Name:        name,
		StreamWidth: streamWidth,
		nodes:       make(map[string]*Node),
		edgeByID:    make(map[string]*Edge),
		inEdges:     make(map[string][]*Edge),
		outEdges:    make(map[string][]*Edge),
		inPortTaken: make(map[string]map[string]bool),
	}, nil
}

// AddNode adds a component instance to the flowsheet.
func (f *Flowsheet) AddNode(n *Node) error {
	if n == nil {
		return ErrNilNode
	}
	if err := n.Validate(); err != nil {
		return fmt.Errorf("node %q: %w", n.ID, err)
	}
	if _, exists := f.nodes[n.ID]; exists {
		return fmt.Errorf("node %q: %w", n.ID, ErrDuplicateNode)
	}
	f.nodes[n.ID] = n
	return nil
}

// AddEdge adds a directed port-to-port connection. Both endpoints must
// already exist and declare the referenced ports, and the target port must
// not already be fed by another edge.
func (f *Flowsheet) AddEdge(e *Edge) error {
	if e == nil {
		return ErrNilEdge
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("edge %q: %w", e.ID, err)
	}
	if _, exists := f.edgeByID[e.ID]; exists {
		return fmt.Errorf("edge %q: %w", e.ID, ErrDuplicateEdge)
	}
	src, ok := f.nodes[e.Source]
	if !ok {
		return fmt.Errorf("edge %q: source %q: %w", e.ID, e.Source, ErrUnknownNode)
	}
	dst, ok := f.nodes[e.Target]
	if !ok {
		return fmt.Errorf("edge %q: target %q: %w", e.ID, e.Target, ErrUnknownNode)
	}
	if !src.HasOutput(e.SourcePort) {
		return fmt.Errorf("edge %q: output port %q on node %q: %w", e.ID, e.SourcePort, e.Source, ErrUnknownPort)
	}
	if !dst.HasInput(e.TargetPort) {
		return fmt.Errorf("edge %q: input port %q on node %q: %w", e.ID, e.TargetPort, e.Target, ErrUnknownPort)
	}
	taken := f.inPortTaken[e.Target]
	if taken == nil {
		taken = make(map[string]bool)
		f.inPortTaken[e.Target] = taken
	}
	if taken[e.TargetPort] {
		return fmt.Errorf("edge %q: input port %q on node %q: %w", e.ID, e.TargetPort, e.Target, ErrFanInViolation)
	}
	taken[e.TargetPort] = true

	f.edges = append(f.edges, e)
	f.edgeByID[e.ID] = e
	f.inEdges[e.Target] = append(f.inEdges[e.Target], e)
	f.outEdges[e.Source] = append(f.outEdges[e.Source], e)
	return nil
}

// Node returns the node with the given ID.
func (f *Flowsheet) Node(id string) (*Node, bool) {
	n, ok := f.nodes[id]
	return n, ok
}

// Edge returns the edge with the given ID.
func (f *Flowsheet) Edge(id string) (*Edge, bool) {
	e, ok := f.edgeByID[id]
	return e, ok
}

// NodeCount returns the number of nodes.
func (f *Flowsheet) NodeCount() int { return len(f.nodes) }

// NodeIDs returns all node IDs in ascending order. Every traversal in the
// planner iterates this slice so plans are reproducible.
func (f *Flowsheet) NodeIDs() []string {
	ids := make([]string, 0, len(f.nodes))
	for id := range f.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Edges returns all edges in insertion order.
func (f *Flowsheet) Edges() []*Edge {
	return f.edges
}

// InEdges returns the edges feeding the given node, in insertion order.
func (f *Flowsheet) InEdges(id string) []*Edge {
	return f.inEdges[id]
}

// OutEdges returns the edges leaving the given node, in insertion order.
func (f *Flowsheet) OutEdges(id string) []*Edge {
	return f.outEdges[id]
}

// Successors returns the distinct downstream neighbor IDs of a node in
// ascending order.
func (f *Flowsheet) Successors(id string) []string {
	return neighborIDs(f.outEdges[id], func(e *Edge) string { return e.Target })
}

// Predecessors returns the distinct upstream neighbor IDs of a node in
// ascending order.
func (f *Flowsheet) Predecessors(id string) []string {
	return neighborIDs(f.inEdges[id], func(e *Edge) string { return e.Source })
}

// HasSelfLoop reports whether any edge connects the node to itself.
func (f *Flowsheet) HasSelfLoop(id string) bool {
	for _, e := range f.outEdges[id] {
		if e.Target == id {
			return true
		}
	}
	return false
}

// EdgesBetween returns the edges from node u to node v, in insertion order.
// Parallel edges between the same pair are legal as long as they land on
// distinct input ports.
func (f *Flowsheet) EdgesBetween(u, v string) []*Edge {
	var out []*Edge
	for _, e := range f.outEdges[u] {
		if e.Target == v {
			out = append(out, e)
		}
	}
	return out
}

func neighborIDs(edges []*Edge, pick func(*Edge) string) []string {
	seen := make(map[string]bool, len(edges))
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		id := pick(e)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
