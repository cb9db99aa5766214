package executor

import (
	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/manifest"
	"github.com/helixml/corepipe/pkg/streamtype"
)

// Execute runs a manifest once: validate,
// build the graph, instantiate every node, run them in topological order, and return the
// full node-id -> last-output map. The node set is built fresh and torn
// down before returning, so no state survives across separate Execute
// calls; UnarySession is the entry point for callers that need node state
// to persist across calls (the get_or_load / model-registry style of
// state locality, scoped to one session id rather than the whole process).
func (e *Executor) Execute(m *manifest.Manifest, inputs map[string]*streamtype.RuntimeData) (map[string]*streamtype.RuntimeData, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	g, err := buildGraph(m)
	if err != nil {
		return nil, err
	}

	built, err := e.instantiateAll(m)
	defer cleanupAll(built)
	if err != nil {
		return nil, err
	}

	return runGraph(g, built, m, inputs)
}

// runGraph walks g in topological order against an already-instantiated
// node set, gathering inputs, validating types, and calling Process. Both
// the ephemeral Execute path and UnarySession's persistent path share
// this: the only difference between them is how long built lives.
func runGraph(g *graph, built map[string]*instantiated, m *manifest.Manifest, inputs map[string]*streamtype.RuntimeData) (map[string]*streamtype.RuntimeData, error) {
	linear := len(m.Connections) == 0 && len(m.Nodes) > 1

	lastOutputs := make(map[string]*streamtype.RuntimeData, len(m.Nodes))
	for i, nodeID := range g.order {
		inst := built[nodeID]

		callerInput := inputs[nodeID]
		gathered := gatherInputs(g, nodeID, callerInput, lastOutputs)

		if len(gathered) == 0 && linear && i > 0 {
			// Linear strategy: chain with no declared connections — forward
			// the previous topological node's output so a sequence of
			// otherwise-disconnected nodes still composes.
			prevID := g.order[i-1]
			if prev, ok := lastOutputs[prevID]; ok {
				gathered[""] = prev
			}
		}

		if len(gathered) == 0 {
			// no input at all for this node; run it with an empty map so
			// source-like nodes (e.g. generators) can still execute.
			gathered = map[string]*streamtype.RuntimeData{}
		} else if len(gathered) > 1 {
			if err := streamtype.ValidateNamedChunk(nodeID, upstreamPortNames(g, nodeID), inst.desc.InputTypes, gathered); err != nil {
				return nil, err
			}
		} else if buf, ok := gathered[""]; ok {
			if err := streamtype.ValidateChunk(nodeID, inst.desc.InputTypes, buf.DataType()); err != nil {
				return nil, err
			}
		}

		outputs, err := inst.node.Process(gathered)
		if err != nil {
			return nil, corepipeerr.Wrap(corepipeerr.KindNodeExecution, err, "node process failed").WithNode(nodeID)
		}
		lastOutputs[nodeID] = singleOutput(outputs)
	}

	return lastOutputs, nil
}

func upstreamPortNames(g *graph, nodeID string) []string {
	return g.incoming[nodeID]
}
