// Package graph implements the dependency graph and staleness
// propagation (§4.4): nodes and typed edges derived from event refs,
// bounded BFS dependency/dependent queries, and staleness marking with
// MECHANICAL/DECISION resolution.
package graph

import (
	"github.com/governedloop/core/pkg/eventlog"
)

// EdgeRel is re-exported from eventlog so callers of this package
// don't need to import eventlog just to name a relation.
type EdgeRel = eventlog.EdgeRel

// Edge is one directed, typed relation in the graph.
type Edge struct {
	From string
	To   string
	Rel  EdgeRel
}

// Graph is an in-memory adjacency representation rebuilt from the
// event log's refs (the Postgres-backed graph_nodes/graph_edges tables
// mirror the same shape for persistence; this type is what BFS runs
// over once loaded).
type Graph struct {
	nodes map[string]string // node_id -> kind
	out   map[string][]Edge // from -> edges
	in    map[string][]Edge // to -> edges
}

// New constructs an empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]string),
		out:   make(map[string][]Edge),
		in:    make(map[string][]Edge),
	}
}

// EnsureNode registers node_id with kind if not already present.
func (g *Graph) EnsureNode(id, kind string) {
	if _, ok := g.nodes[id]; !ok {
		g.nodes[id] = kind
	}
}

// AddEdge adds (from, to, rel) if an identical edge is not already
// present, per §4.4: "add an edge ... if absent".
func (g *Graph) AddEdge(from, to string, rel EdgeRel) {
	for _, e := range g.out[from] {
		if e.To == to && e.Rel == rel {
			return
		}
	}
	e := Edge{From: from, To: to, Rel: rel}
	g.out[from] = append(g.out[from], e)
	g.in[to] = append(g.in[to], e)
}

// ApplyEvent ensures a node for the event's stream and for each
// referenced id, then adds the edge (stream_id, ref.id, ref.rel) if
// absent — exactly the derivation rule in §4.4.
func (g *Graph) ApplyEvent(e eventlog.Event) {
	g.EnsureNode(e.StreamID, e.StreamKind)
	for _, ref := range e.Refs {
		g.EnsureNode(ref.ID, string(ref.Kind))
		g.AddEdge(e.StreamID, ref.ID, ref.Rel)
	}
}

// PathStep is one hop returned by the BFS queries.
type PathStep struct {
	Src      string
	Dst      string
	EdgeType EdgeRel
	Depth    int
}

// GetDependencies does a BFS over outgoing depends_on (and equivalent)
// edges from node, bounded by maxDepth.
func (g *Graph) GetDependencies(node string, maxDepth int) []PathStep {
	return g.bfs(node, maxDepth, g.out, func(e Edge) string { return e.To })
}

// GetDependents is the inverse BFS, over incoming edges.
func (g *Graph) GetDependents(node string, maxDepth int) []PathStep {
	return g.bfs(node, maxDepth, g.in, func(e Edge) string { return e.From })
}

func (g *Graph) bfs(start string, maxDepth int, adjacency map[string][]Edge, next func(Edge) string) []PathStep {
	type frontierEntry struct {
		node  string
		depth int
	}
	visited := map[string]bool{start: true}
	queue := []frontierEntry{{node: start, depth: 0}}
	var result []PathStep

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, e := range adjacency[cur.node] {
			other := next(e)
			result = append(result, PathStep{Src: e.From, Dst: e.To, EdgeType: e.Rel, Depth: cur.depth + 1})
			if !visited[other] {
				visited[other] = true
				queue = append(queue, frontierEntry{node: other, depth: cur.depth + 1})
			}
		}
	}
	return result
}
