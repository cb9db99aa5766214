package executor

import (
	"testing"

	"github.com/helixml/corepipe/pkg/manifest"
	"github.com/helixml/corepipe/pkg/nodes/calculator"
	"github.com/helixml/corepipe/pkg/noderegistry"
	"github.com/helixml/corepipe/pkg/streamtype"
	"github.com/stretchr/testify/require"
)

// TestRunSyncCalculatorScenario runs a single
// CalculatorNode evaluating {"operation":"add","operands":[10,20]}.
func TestRunSyncCalculatorScenario(t *testing.T) {
	reg := noderegistry.NewRegistry()
	reg.Register(calculator.NodeType, calculator.New, manifest.NodeCapabilities{})

	m := &manifest.Manifest{
		Version: "1",
		Nodes: []manifest.Node{
			{ID: "calc", NodeType: calculator.NodeType},
		},
	}
	input, err := streamtype.NewJSON(`{"operation":"add","operands":[10,20]}`, "", nil)
	require.NoError(t, err)

	e := New(reg)
	outputs, info, err := e.RunSync(m, map[string]*streamtype.RuntimeData{"calc": input})
	require.NoError(t, err)
	require.Equal(t, []string{"calc"}, info.ExecutionOrder)

	value, err := outputs["calc"].JSONValue()
	require.NoError(t, err)
	obj := value.(map[string]any)
	require.Equal(t, float64(30), obj["result"])
}

// TestRunSyncLinearChainForwardsOutput exercises the no-declared-connections
// linear strategy: two pass-through-style nodes chained implicitly by
// declaration order.
func TestRunSyncLinearChainForwardsOutput(t *testing.T) {
	reg := newTestRegistry()
	m := &manifest.Manifest{
		Version: "1",
		Nodes: []manifest.Node{
			{ID: "a", NodeType: "PassThrough"},
			{ID: "b", NodeType: "PassThrough"},
		},
	}
	buf, err := streamtype.NewText([]byte("hi"), "utf-8", "en", nil)
	require.NoError(t, err)

	e := New(reg)
	outputs, info, err := e.RunSync(m, map[string]*streamtype.RuntimeData{"a": buf})
	require.NoError(t, err)
	require.Equal(t, 2, info.NodeCount)

	got, err := outputs["b"].TextBytes()
	require.NoError(t, err)
	require.Equal(t, "hi", string(got))
}
