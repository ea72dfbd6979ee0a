package plan

import (
	"sort"

	"github.com/flowsim/flowsim/internal/core/flowsheet"
)

// selectTears chooses the tear edges for one cyclic SCC: a set of edges whose
// removal leaves the component's subgraph acyclic. The heuristic is a
// depth-first traversal of the component in ascending node-ID order that
// tears every back edge (an edge into a node currently on the DFS path).
// Minimality is best-effort only; correctness requires just acyclicity plus
// determinism, and DFS over a fixed visit order gives both. All parallel
// edges between a torn node pair are torn together, since leaving one of
// them would keep the cycle alive.
func selectTears(fs *flowsheet.Flowsheet, members []string) []string {
	inComp := make(map[string]bool, len(members))
	for _, id := range members {
		inComp[id] = true
	}

	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(members))
	tornPairs := make(map[[2]string]bool)

	var visit func(u string)
	visit = func(u string) {
		color[u] = gray
		for _, v := range fs.Successors(u) {
			if !inComp[v] {
				continue
			}
			if tornPairs[[2]string{u, v}] {
				continue
			}
			switch color[v] {
			case white:
				visit(v)
			case gray:
				tornPairs[[2]string{u, v}] = true
			}
		}
		color[u] = black
	}

	for _, id := range members {
		if color[id] == white {
			visit(id)
		}
	}

	var tearIDs []string
	for pair := range tornPairs {
		for _, e := range fs.EdgesBetween(pair[0], pair[1]) {
			tearIDs = append(tearIDs, e.ID)
		}
	}
	sort.Strings(tearIDs)
	return tearIDs
}

// orderWithoutTears computes the fixed internal execution order of a cyclic
// SCC: a topological sort of the component's subgraph with tear edges
// removed, via Kahn's algorithm with ascending-node-ID tie-break. Returns
// ErrUnbrokenCycle if the tears did not render the subgraph acyclic.
func orderWithoutTears(fs *flowsheet.Flowsheet, members []string, tears []string) ([]string, error) {
	inComp := make(map[string]bool, len(members))
	for _, id := range members {
		inComp[id] = true
	}
	torn := make(map[string]bool, len(tears))
	for _, id := range tears {
		torn[id] = true
	}

	succs := make(map[string]map[string]bool, len(members))
	indeg := make(map[string]int, len(members))
	for _, id := range members {
		succs[id] = make(map[string]bool)
		indeg[id] = 0
	}
	for _, e := range fs.Edges() {
		if torn[e.ID] || !inComp[e.Source] || !inComp[e.Target] || e.Source == e.Target {
			continue
		}
		if !succs[e.Source][e.Target] {
			succs[e.Source][e.Target] = true
			indeg[e.Target]++
		}
	}

	var ready []string
	for _, id := range members {
		if indeg[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(members))
	for len(ready) > 0 {
		sort.Strings(ready)
		u := ready[0]
		ready = ready[1:]
		order = append(order, u)
		for v := range succs[u] {
			indeg[v]--
			if indeg[v] == 0 {
				ready = append(ready, v)
			}
		}
	}
	if len(order) != len(members) {
		return nil, ErrUnbrokenCycle
	}
	return order, nil
}
