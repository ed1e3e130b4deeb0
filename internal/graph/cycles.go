package graph

import "github.com/factgraph/factgraph/internal/model"

// FindDependencyCycle looks for a cycle among active DEPENDS_ON edges. It
// returns the node ids forming the first cycle found, or nil. A task cannot
// depend on itself transitively; a detected cycle is flagged, never
// silently accepted.
func FindDependencyCycle(a *Arena) []string {
	a.mu.RLock()
	adj := make(map[string][]string)
	for _, e := range a.edges {
		if e.Superseded || e.Type != model.EdgeDependsOn {
			continue
		}
		adj[e.SourceID] = append(adj[e.SourceID], e.TargetID)
	}
	a.mu.RUnlock()

	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // done
	)
	color := make(map[string]int)
	parent := make(map[string]string)

	var cycle []string
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, next := range adj[id] {
			switch color[next] {
			case white:
				parent[next] = id
				if visit(next) {
					return true
				}
			case gray:
				// Walk back from id to next to reconstruct the cycle.
				cycle = []string{next}
				for cur := id; cur != next; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				reverse(cycle)
				return true
			}
		}
		color[id] = black
		return false
	}

	for id := range adj {
		if color[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
