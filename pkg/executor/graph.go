// Package executor implements the pipeline executor (C5): graph build,
// topological scheduling, the unary execute path, and the streaming
// session with sequence ordering and backpressure.
package executor

import (
	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/manifest"
)

// graph is the executor's private view of a validated manifest: a
// topological node order plus the incoming/outgoing adjacency the unary
// and streaming paths walk. The manifest and graph are owned exclusively
// by the executor; nodes never hold back-edges to upstream nodes
// — routing is done here, by reading the connection table.
type graph struct {
	order    []string
	incoming map[string][]string // node id -> upstream node ids, in connection-declaration order
	outgoing map[string][]string // node id -> downstream node ids, in connection-declaration order
	sources  []string
	sinks    []string
}

// buildGraph computes a topological order (ties broken by declaration
// order) from an already-validated manifest. Validate must be called
// first; buildGraph assumes the graph is acyclic.
func buildGraph(m *manifest.Manifest) (*graph, error) {
	incoming := make(map[string][]string, len(m.Nodes))
	outgoing := make(map[string][]string, len(m.Nodes))
	inDegree := make(map[string]int, len(m.Nodes))
	declOrder := make(map[string]int, len(m.Nodes))

	for i, n := range m.Nodes {
		declOrder[n.ID] = i
		inDegree[n.ID] = 0
	}
	for _, c := range m.Connections {
		incoming[c.To] = append(incoming[c.To], c.From)
		outgoing[c.From] = append(outgoing[c.From], c.To)
		inDegree[c.To]++
	}

	// Kahn's algorithm, with the ready set kept in declaration order so
	// ties resolve deterministically.
	ready := make([]string, 0, len(m.Nodes))
	for _, n := range m.Nodes {
		if inDegree[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}

	order := make([]string, 0, len(m.Nodes))
	remaining := inDegree
	for len(ready) > 0 {
		// pick the lowest declaration-order id among the ready set
		bestIdx := 0
		for i := 1; i < len(ready); i++ {
			if declOrder[ready[i]] < declOrder[ready[bestIdx]] {
				bestIdx = i
			}
		}
		id := ready[bestIdx]
		ready = append(ready[:bestIdx], ready[bestIdx+1:]...)
		order = append(order, id)

		for _, next := range outgoing[id] {
			remaining[next]--
			if remaining[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(order) != len(m.Nodes) {
		return nil, corepipeerr.New(corepipeerr.KindInternal, "graph build found a cycle after manifest validation reported none")
	}

	g := &graph{order: order, incoming: incoming, outgoing: outgoing}
	for _, n := range m.Nodes {
		if len(incoming[n.ID]) == 0 {
			g.sources = append(g.sources, n.ID)
		}
		if len(outgoing[n.ID]) == 0 {
			g.sinks = append(g.sinks, n.ID)
		}
	}
	return g, nil
}

func (g *graph) isSource(id string) bool {
	return len(g.incoming[id]) == 0
}

func (g *graph) isSink(id string) bool {
	return len(g.outgoing[id]) == 0
}
