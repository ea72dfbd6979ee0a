package plan

import (
	"sort"

	"github.com/flowsim/flowsim/internal/core/flowsheet"
)

// tarjanState holds per-node state during Tarjan's DFS.
type tarjanState struct {
	index   int
	lowlink int
	onStack bool
}

// stronglyConnected finds all SCCs of the flowsheet using Tarjan's algorithm
// in O(V+E) time. Roots are visited in ascending node-ID order and successors
// are iterated sorted, so the decomposition is emitted identically on every
// run. Node IDs within each component are returned sorted.
func stronglyConnected(fs *flowsheet.Flowsheet) [][]string {
	state := make(map[string]*tarjanState, fs.NodeCount())
	var stack []string
	indexCounter := 0
	var comps [][]string

	var strongconnect func(u string)
	strongconnect = func(u string) {
		state[u] = &tarjanState{index: indexCounter, lowlink: indexCounter, onStack: true}
		indexCounter++
		stack = append(stack, u)

		for _, v := range fs.Successors(u) {
			if _, visited := state[v]; !visited {
				strongconnect(v)
				if state[v].lowlink < state[u].lowlink {
					state[u].lowlink = state[v].lowlink
				}
			} else if state[v].onStack {
				if state[v].index < state[u].lowlink {
					state[u].lowlink = state[v].index
				}
			}
		}

		// u is a root: pop the stack down to u to form one SCC.
		if state[u].lowlink == state[u].index {
			var members []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				state[w].onStack = false
				members = append(members, w)
				if w == u {
					break
				}
			}
			sort.Strings(members)
			comps = append(comps, members)
		}
	}

	for _, id := range fs.NodeIDs() {
		if _, visited := state[id]; !visited {
			strongconnect(id)
		}
	}
	return comps
}

// condense collapses each SCC to a single node and returns the condensation
// adjacency (component index -> successor component indexes, sorted) plus the
// node-to-component mapping.
func condense(fs *flowsheet.Flowsheet, comps [][]string) ([][]int, map[string]int) {
	nodeComp := make(map[string]int, fs.NodeCount())
	for ci, members := range comps {
		for _, id := range members {
			nodeComp[id] = ci
		}
	}

	adjSets := make([]map[int]bool, len(comps))
	for i := range adjSets {
		adjSets[i] = make(map[int]bool)
	}
	for _, e := range fs.Edges() {
		cu, cv := nodeComp[e.Source], nodeComp[e.Target]
		if cu != cv {
			adjSets[cu][cv] = true
		}
	}

	adj := make([][]int, len(comps))
	for i, set := range adjSets {
		for v := range set {
			adj[i] = append(adj[i], v)
		}
		sort.Ints(adj[i])
	}
	return adj, nodeComp
}

// condensationOrder topologically sorts the condensation with Kahn's
// algorithm. Components become ready when all producers have been emitted;
// among ready components the one whose smallest node ID sorts first is
// emitted next, which pins the stage sequence for reproducible plans. The
// condensation of an SCC decomposition is acyclic by construction; an
// incomplete order therefore signals an analyzer defect.
func condensationOrder(adj [][]int, comps [][]string) ([]int, error) {
	indeg := make([]int, len(adj))
	for _, succs := range adj {
		for _, v := range succs {
			indeg[v]++
		}
	}

	var ready []int
	for ci, d := range indeg {
		if d == 0 {
			ready = append(ready, ci)
		}
	}

	less := func(a, b int) bool { return comps[a][0] < comps[b][0] }

	order := make([]int, 0, len(adj))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		u := ready[0]
		ready = ready[1:]
		order = append(order, u)
		for _, v := range adj[u] {
			indeg[v]--
			if indeg[v] == 0 {
				ready = append(ready, v)
			}
		}
	}
	if len(order) != len(adj) {
		return nil, ErrCyclicCondensation
	}
	return order, nil
}
