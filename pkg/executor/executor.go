package executor

import (
	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/manifest"
	"github.com/helixml/corepipe/pkg/noderegistry"
	"github.com/helixml/corepipe/pkg/streamtype"
	"github.com/rs/zerolog/log"
)

// Executor runs manifests against a node registry. It holds no
// per-pipeline state itself — that lives in the instantiated node set a
// single Execute/Session call builds and tears down.
type Executor struct {
	registry *noderegistry.Registry
}

// New builds an Executor against the given node registry. Pass
// noderegistry.Default to use the process-wide table.
func New(registry *noderegistry.Registry) *Executor {
	return &Executor{registry: registry}
}

// instantiated is one built-and-initialized node plus its manifest
// descriptor and graph-declared type sets.
type instantiated struct {
	desc manifest.Node
	node noderegistry.Node
}

func (e *Executor) instantiateAll(m *manifest.Manifest) (map[string]*instantiated, error) {
	built := make(map[string]*instantiated, len(m.Nodes))
	for _, desc := range m.Nodes {
		node, _, err := e.registry.Build(desc.NodeType, desc.Params)
		if err != nil {
			return built, err
		}
		if err := node.Initialize(desc.Params); err != nil {
			return built, corepipeerr.Wrap(corepipeerr.KindNodeExecution, err, "node initialize failed").WithNode(desc.ID)
		}
		built[desc.ID] = &instantiated{desc: desc, node: node}
	}
	return built, nil
}

func cleanupAll(built map[string]*instantiated) {
	for id, inst := range built {
		if err := inst.node.Cleanup(); err != nil {
			log.Warn().Err(err).Str("node_id", id).Msg("node cleanup returned an error")
		}
	}
}

// gatherInputs merges the caller-supplied input for nodeID (if any) with
// buffers recorded from upstream nodes over the connection table. A node
// with exactly one incoming source receives its buffer unnamed (port "");
// a node with more than one incoming source receives a named_buffers map
// keyed by the upstream node's id, since the manifest connection schema
// carries no port name of its own.
func gatherInputs(g *graph, nodeID string, callerInput *streamtype.RuntimeData, lastOutputs map[string]*streamtype.RuntimeData) map[string]*streamtype.RuntimeData {
	upstream := g.incoming[nodeID]
	gathered := make(map[string]*streamtype.RuntimeData)

	switch len(upstream) {
	case 0:
		// pure source: nothing to gather from the graph
	case 1:
		if out, ok := lastOutputs[upstream[0]]; ok {
			gathered[""] = out
		}
	default:
		for _, from := range upstream {
			if out, ok := lastOutputs[from]; ok {
				gathered[from] = out
			}
		}
	}

	if callerInput != nil {
		if len(gathered) == 0 {
			gathered[""] = callerInput
		} else {
			gathered[""] = callerInput
		}
	}
	return gathered
}

// singleOutput collapses a node's (possibly multi-port) output map into
// the one buffer recorded as that node's "last output" for routing and for
// the unary result map: one buffer per node regardless of how many ports
// it produced internally.
func singleOutput(outputs map[string]*streamtype.RuntimeData) *streamtype.RuntimeData {
	if out, ok := outputs[""]; ok {
		return out
	}
	for _, out := range outputs {
		return out
	}
	return nil
}
