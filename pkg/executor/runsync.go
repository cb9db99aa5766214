package executor

import (
	"github.com/helixml/corepipe/pkg/manifest"
	"github.com/helixml/corepipe/pkg/streamtype"
)

// GraphInfo summarizes a manifest's resolved execution plan, reported back
// to WASI callers alongside outputs.
type GraphInfo struct {
	NodeCount      int      `json:"node_count"`
	ExecutionOrder []string `json:"execution_order"`
	Sources        []string `json:"sources,omitempty"`
	Sinks          []string `json:"sinks,omitempty"`
}

// RunSync is the restricted-profile entry point: the
// native Execute path here is already a single-threaded, synchronous call
// chain (no goroutines are spawned in the unary path, unlike the streaming
// Session), so a cooperative block-on driver for environments without a
// task scheduler collapses to calling Execute directly. This keeps one
// code path for both profiles rather than duplicating the topological walk.
func (e *Executor) RunSync(m *manifest.Manifest, inputs map[string]*streamtype.RuntimeData) (map[string]*streamtype.RuntimeData, *GraphInfo, error) {
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}
	g, err := buildGraph(m)
	if err != nil {
		return nil, nil, err
	}

	outputs, err := e.Execute(m, inputs)
	info := &GraphInfo{
		NodeCount:      len(m.Nodes),
		ExecutionOrder: append([]string{}, g.order...),
		Sources:        append([]string{}, g.sources...),
		Sinks:          append([]string{}, g.sinks...),
	}
	if err != nil {
		return nil, info, err
	}
	return outputs, info, nil
}
