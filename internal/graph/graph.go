// Package graph turns an SosModel's model list and dependencies into an
// executable ordering: cycle detection over the non-lagged edges, a
// deterministic topological sort, and a grouping into waves of models
// that can run concurrently within one timestep.
package graph

import (
	"fmt"
	"sort"

	"github.com/smif-sim/smif/internal/domain"
)

// DependencyGraph is the directed graph of "must run before" edges
// derived from an SosModel: an edge source -> sink exists for every
// non-lagged Dependency (source's current-timestep output feeds sink's
// input). Lagged (PREVIOUS) dependencies never constrain ordering within
// a timestep, since they read an already-settled prior value, so they are
// excluded from this graph entirely.
type DependencyGraph struct {
	nodes   []string
	forward map[string][]string // source -> sinks that depend on it
	reverse map[string][]string // sink -> sources it depends on
}

// Build constructs the DependencyGraph for sos, including every model
// even if it is isolated (no dependencies in or out).
func Build(sos domain.SosModel) *DependencyGraph {
	g := &DependencyGraph{
		forward: make(map[string][]string),
		reverse: make(map[string][]string),
	}
	for _, m := range sos.Models {
		g.nodes = append(g.nodes, m.Name)
		if _, ok := g.forward[m.Name]; !ok {
			g.forward[m.Name] = nil
		}
		if _, ok := g.reverse[m.Name]; !ok {
			g.reverse[m.Name] = nil
		}
	}
	for _, d := range sos.Dependencies {
		if d.IsLagged() {
			continue
		}
		g.forward[d.SourceModel] = append(g.forward[d.SourceModel], d.SinkModel)
		g.reverse[d.SinkModel] = append(g.reverse[d.SinkModel], d.SourceModel)
	}
	sort.Strings(g.nodes)
	return g
}

// Validate runs Tarjan's strongly-connected-components algorithm over the
// non-lagged edges and reports a CircularDependencyError naming every
// model in the first non-trivial SCC found, in deterministic (sorted)
// order.
func (g *DependencyGraph) Validate() error {
	t := &tarjan{
		graph:   g,
		index:   make(map[string]int),
		lowlink: make(map[string]int),
		onStack: make(map[string]bool),
	}
	for _, n := range g.nodes {
		if _, seen := t.index[n]; !seen {
			t.strongConnect(n)
		}
	}
	for _, scc := range t.sccs {
		if len(scc) > 1 {
			sort.Strings(scc)
			return domain.NewDomainError(domain.ErrCodeCircularDependency,
				fmt.Sprintf("circular dependency among models: %v", scc), nil)
		}
		// A single-node SCC with a self-edge is also a cycle.
		n := scc[0]
		for _, s := range g.forward[n] {
			if s == n {
				return domain.NewDomainError(domain.ErrCodeCircularDependency,
					fmt.Sprintf("model %q depends on its own current-timestep output", n), nil)
			}
		}
	}
	return nil
}

// tarjan holds the working state of one run of Tarjan's SCC algorithm.
type tarjan struct {
	graph   *DependencyGraph
	index   map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack   []string
	counter int
	sccs    [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	// Iterate successors in sorted order so that, among graphs with
	// multiple valid SCC decompositions, the discovery order — and hence
	// which node each SCC's representative report names first — is
	// reproducible between runs.
	succs := append([]string(nil), t.graph.forward[v]...)
	sort.Strings(succs)
	for _, w := range succs {
		if _, seen := t.index[w]; !seen {
			t.strongConnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var scc []string
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		t.sccs = append(t.sccs, scc)
	}
}

// TopologicalSort returns the models in an order where every model
// appears after every other model its inputs (non-lagged) depend on.
// Among models that are simultaneously ready, it breaks ties by model
// name, so the same SosModel always sorts to the same order.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	inDegree := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		inDegree[n] = len(g.reverse[n])
	}
	ready := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		if inDegree[n] == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		var newlyReady []string
		for _, s := range g.forward[n] {
			inDegree[s]--
			if inDegree[s] == 0 {
				newlyReady = append(newlyReady, s)
			}
		}
		sort.Strings(newlyReady)
		ready = mergeSorted(ready, newlyReady)
	}
	return order, nil
}

// Waves groups models into the minimal number of sequential stages such
// that, within a stage, no model depends on another model in the same
// stage: stage i holds every model whose non-lagged dependencies are all
// satisfied by stages < i. The scheduler runs every model in a stage
// concurrently and waits for the stage to finish before starting the
// next.
func (g *DependencyGraph) Waves() ([][]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	remaining := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		remaining[n] = len(g.reverse[n])
	}
	var waves [][]string
	done := make(map[string]bool, len(g.nodes))
	for len(done) < len(g.nodes) {
		var wave []string
		for _, n := range g.nodes {
			if done[n] {
				continue
			}
			ready := true
			for _, dep := range g.reverse[n] {
				if !done[dep] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, n)
			}
		}
		if len(wave) == 0 {
			// Validate already rejects cycles, so this should not happen.
			return nil, domain.NewDomainError(domain.ErrCodeCircularDependency, "no progress building execution waves", nil)
		}
		sort.Strings(wave)
		for _, n := range wave {
			done[n] = true
		}
		waves = append(waves, wave)
	}
	return waves, nil
}

// mergeSorted merges two already-sorted string slices into one sorted
// slice, used to fold newly-ready nodes into the pending queue while
// keeping TopologicalSort's tie-break deterministic.
func mergeSorted(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
