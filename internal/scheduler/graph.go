package scheduler

import "github.com/cjy5507/csmh/internal/mission"

// graph holds derived views of the validated dependency relation: the
// dependents map for failure propagation and the transitive
// ancestor/descendant relation used by strict-mode admission.
type graph struct {
	deps       map[string][]string // task -> direct dependencies
	dependents map[string][]string // task -> direct dependents
	related    map[string]map[string]bool
}

func newGraph(m *mission.Mission) *graph {
	g := &graph{
		deps:       make(map[string][]string, len(m.Tasks)),
		dependents: make(map[string][]string, len(m.Tasks)),
		related:    make(map[string]map[string]bool, len(m.Tasks)),
	}
	for _, t := range m.Tasks {
		g.deps[t.ID] = append([]string(nil), t.DependsOn...)
		for _, dep := range t.DependsOn {
			g.dependents[dep] = append(g.dependents[dep], t.ID)
		}
	}

	// Transitive closure in both directions. Mission graphs are small (tens
	// of tasks), so the quadratic walk is fine.
	for _, t := range m.Tasks {
		g.related[t.ID] = make(map[string]bool)
	}
	for _, t := range m.Tasks {
		for _, anc := range g.closure(t.ID, g.deps) {
			g.related[t.ID][anc] = true
			g.related[anc][t.ID] = true
		}
	}
	return g
}

// closure walks edges transitively from id, excluding id itself.
func (g *graph) closure(id string, edges map[string][]string) []string {
	seen := map[string]bool{id: true}
	var out []string
	stack := append([]string(nil), edges[id]...)
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[next] {
			continue
		}
		seen[next] = true
		out = append(out, next)
		stack = append(stack, edges[next]...)
	}
	return out
}

// Related reports whether a and b share an ancestor/descendant relation.
func (g *graph) Related(a, b string) bool {
	return g.related[a][b]
}
