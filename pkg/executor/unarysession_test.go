package executor

import (
	"testing"

	"github.com/helixml/corepipe/pkg/manifest"
	"github.com/helixml/corepipe/pkg/noderegistry"
	"github.com/helixml/corepipe/pkg/streamtype"
	"github.com/stretchr/testify/require"
)

// counterNode accumulates a running total across Process calls, used to
// prove whether a node's in-memory state survives across separate calls
// into the same node instance.
type counterNode struct {
	total int
}

func (n *counterNode) Initialize(string) error { return nil }
func (n *counterNode) Cleanup() error          { return nil }
func (n *counterNode) Process(map[string]*streamtype.RuntimeData) (map[string]*streamtype.RuntimeData, error) {
	n.total++
	out := streamtype.NewJSONValue(map[string]any{"total": n.total}, "", nil)
	return map[string]*streamtype.RuntimeData{"": out}, nil
}

func counterManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Version:     "1",
		Nodes:       []manifest.Node{{ID: "count", NodeType: "Counter"}},
		Connections: []manifest.Connection{},
	}
}

func TestExecuteDoesNotPersistNodeStateAcrossCalls(t *testing.T) {
	reg := noderegistry.NewRegistry()
	reg.Register("Counter", func(string) (noderegistry.Node, error) { return &counterNode{}, nil }, manifest.NodeCapabilities{})
	e := New(reg)
	m := counterManifest()

	out1, err := e.Execute(m, nil)
	require.NoError(t, err)
	out2, err := e.Execute(m, nil)
	require.NoError(t, err)

	v1, err := out1["count"].JSONValue()
	require.NoError(t, err)
	v2, err := out2["count"].JSONValue()
	require.NoError(t, err)
	require.Equal(t, float64(1), v1.(map[string]any)["total"])
	require.Equal(t, float64(1), v2.(map[string]any)["total"])
}

func TestUnarySessionPersistsNodeStateAcrossCalls(t *testing.T) {
	reg := noderegistry.NewRegistry()
	reg.Register("Counter", func(string) (noderegistry.Node, error) { return &counterNode{}, nil }, manifest.NodeCapabilities{})
	e := New(reg)
	m := counterManifest()

	sess, err := NewUnarySession(e, m)
	require.NoError(t, err)
	defer sess.Close()

	out1, err := sess.Execute(nil)
	require.NoError(t, err)
	out2, err := sess.Execute(nil)
	require.NoError(t, err)
	out3, err := sess.Execute(nil)
	require.NoError(t, err)

	v1, err := out1["count"].JSONValue()
	require.NoError(t, err)
	v2, err := out2["count"].JSONValue()
	require.NoError(t, err)
	v3, err := out3["count"].JSONValue()
	require.NoError(t, err)
	require.Equal(t, float64(1), v1.(map[string]any)["total"])
	require.Equal(t, float64(2), v2.(map[string]any)["total"])
	require.Equal(t, float64(3), v3.(map[string]any)["total"])
}
