// Package scheduler supplies the pure, storage-agnostic graph helpers used
// by the Store's dependency-creation transaction. It holds no
// state of its own: the claim and cascade mechanics live on the Store,
// since the spec places ClaimOldest on the Store's public contract.
package scheduler

import "sort"

// CheckCircular reports whether adding newEdges on top of existingEdges
// would create a cycle reachable from start. Both edge maps are adjacency
// lists: edges[jobID] lists the ids jobID depends on.
//
// Grounded on the teacher's DFS/topological-sort cycle detector
// (internal/scheduler/graph.go), adapted from a discovery.Unit graph to a
// plain job-id edge list built from a single query inside the caller's
// transaction.
func CheckCircular(existingEdges, newEdges map[string][]string, start string) bool {
	merged := make(map[string][]string, len(existingEdges)+len(newEdges))
	for id, deps := range existingEdges {
		merged[id] = append(merged[id], deps...)
	}
	for id, deps := range newEdges {
		merged[id] = append(merged[id], deps...)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)

	var dfs func(node string) bool
	dfs = func(node string) bool {
		color[node] = gray
		deps := merged[node]
		sorted := make([]string, len(deps))
		copy(sorted, deps)
		sort.Strings(sorted)

		for _, dep := range sorted {
			switch color[dep] {
			case gray:
				return true
			case white:
				if dfs(dep) {
					return true
				}
			}
		}
		color[node] = black
		return false
	}

	return dfs(start)
}
