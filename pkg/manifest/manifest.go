// Package manifest models the declarative, versioned pipeline description:
// nodes, connections, and the graph-level invariants required before an
// executor ever touches it.
package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/streamtype"
)

// ParseJSON decodes a manifest from its wire JSON shape. It does
// not call Validate; callers invoke that separately so parse errors and
// structural-invariant errors are distinguishable.
func ParseJSON(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, corepipeerr.Wrap(corepipeerr.KindValidation, err, "failed to parse manifest JSON")
	}
	return &m, nil
}

// NodeCapabilities is the capability shape a factory declares for a node
// type.
type NodeCapabilities struct {
	AcceptsStreaming bool
	IsSource         bool
	IsSink           bool
	RequiresModel    bool
}

// Node is one manifest node descriptor.
type Node struct {
	ID           string                  `json:"id"`
	NodeType     string                  `json:"node_type"`
	Params       string                  `json:"params"`
	IsStreaming  bool                    `json:"is_streaming"`
	Capabilities NodeCapabilities        `json:"capabilities,omitempty"`
	Host         string                  `json:"host,omitempty"`
	RuntimeHint  string                  `json:"runtime_hint,omitempty"`
	InputTypes   []streamtype.DataTypeHint `json:"input_types,omitempty"`
	OutputTypes  []streamtype.DataTypeHint `json:"output_types,omitempty"`
}

// Connection is a directed edge between two node ids.
type Connection struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Manifest is the declarative pipeline description.
type Manifest struct {
	Version     string            `json:"version"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Nodes       []Node            `json:"nodes"`
	Connections []Connection      `json:"connections"`
}

// NodeByID returns the node with the given id, or false if absent.
func (m *Manifest) NodeByID(id string) (Node, bool) {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Validate checks the structural invariants: unique node ids, every
// connection references existing nodes, the graph is acyclic, and every
// connection's declared types are compatible. It does not compute a
// topological order — that is the executor's job.
func (m *Manifest) Validate() error {
	if len(m.Nodes) == 0 {
		return corepipeerr.New(corepipeerr.KindValidation, "pipeline must contain at least one node")
	}

	seen := make(map[string]bool, len(m.Nodes))
	for _, n := range m.Nodes {
		if n.ID == "" {
			return corepipeerr.New(corepipeerr.KindValidation, "node id must not be empty")
		}
		if seen[n.ID] {
			return corepipeerr.New(corepipeerr.KindValidation, fmt.Sprintf("duplicate node id %q", n.ID))
		}
		seen[n.ID] = true
	}

	byID := make(map[string]Node, len(m.Nodes))
	for _, n := range m.Nodes {
		byID[n.ID] = n
	}

	adjacency := make(map[string][]string, len(m.Nodes))
	for _, c := range m.Connections {
		from, ok := byID[c.From]
		if !ok {
			return corepipeerr.New(corepipeerr.KindValidation, fmt.Sprintf("connection references unknown source node %q", c.From))
		}
		to, ok := byID[c.To]
		if !ok {
			return corepipeerr.New(corepipeerr.KindValidation, fmt.Sprintf("connection references unknown target node %q", c.To))
		}
		if err := streamtype.ValidateManifestConnection(from.ID, to.ID, from.OutputTypes, to.InputTypes); err != nil {
			return err
		}
		adjacency[c.From] = append(adjacency[c.From], c.To)
	}

	if cycle := findCycle(m.Nodes, adjacency); cycle != nil {
		return corepipeerr.New(corepipeerr.KindValidation, fmt.Sprintf("pipeline graph contains a cycle: %v", cycle)).
			WithContext("cycle_participants", fmt.Sprintf("%v", cycle))
	}

	return nil
}

// findCycle runs a DFS with a recursion-stack marker and returns the
// participating node ids of the first cycle found, or nil if the graph is
// acyclic.
func findCycle(nodes []Node, adjacency map[string][]string) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, next := range adjacency[id] {
			switch color[next] {
			case gray:
				// found the back-edge; extract the cycle from the stack
				for i, s := range stack {
					if s == next {
						cycle = append([]string{}, stack[i:]...)
						cycle = append(cycle, next)
						return true
					}
				}
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, n := range nodes {
		if color[n.ID] == white {
			if visit(n.ID) {
				return cycle
			}
		}
	}
	return nil
}
