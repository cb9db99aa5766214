package ffi

import (
	"encoding/json"
	"testing"

	"github.com/dop251/goja"
	_ "github.com/helixml/corepipe/pkg/nodes/calculator"
	"github.com/helixml/corepipe/pkg/manifest"
	"github.com/helixml/corepipe/pkg/noderegistry"
	"github.com/helixml/corepipe/pkg/streamtype"
	"github.com/stretchr/testify/require"
)

// counterNode accumulates a running total across Process calls, used to
// prove whether execute_pipeline_with_session's node state survives
// across separate FFI calls sharing a session id.
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

func manifestJSON(t *testing.T, nodeID, nodeType, params string) string {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"version": "1",
		"nodes": []map[string]any{
			{"id": nodeID, "node_type": nodeType, "params": params},
		},
		"connections": []any{},
	})
	require.NoError(t, err)
	return string(raw)
}

func TestExecutePipelineViaHostFunction(t *testing.T) {
	rt := goja.New()
	host := NewHost(noderegistry.Default)
	require.NoError(t, host.Install(rt))

	_, err := rt.RunString(`
		var mjson = ` + "`" + manifestJSON(t, "calc", "CalculatorNode", "") + "`" + `;
		var inputs = {calc: {type: "JSON", value: {operation:"add", operands:[2,3]}}};
		var result = execute_pipeline(mjson, inputs);
		globalThis.__result = result;
	`)
	require.NoError(t, err)

	resultVal := rt.Get("__result")
	require.NotNil(t, resultVal)
	obj := resultVal.ToObject(rt)
	calcOut := obj.Get("calc").ToObject(rt)
	require.Equal(t, "JSON", calcOut.Get("type").String())
}

func TestNewTextBufferRoundTripsThroughJS(t *testing.T) {
	rt := goja.New()
	require.NoError(t, installConstructors(rt))

	v, err := rt.RunString(`var buf = new_text_buffer("hello"); buf.text`)
	require.NoError(t, err)
	require.Equal(t, "hello", v.String())
}

func TestNewAudioBufferRejectsInvalidByteLength(t *testing.T) {
	rt := goja.New()
	require.NoError(t, installConstructors(rt))

	_, err := rt.RunString(`new_audio_buffer(new ArrayBuffer(3), 16000, 1, "I16")`)
	require.Error(t, err)
}

func TestValidateSessionIDRejectsBadCharacters(t *testing.T) {
	require.NoError(t, ValidateSessionID("abc-123_DEF"))
	require.Error(t, ValidateSessionID("bad id with spaces"))
	require.Error(t, ValidateSessionID(""))
}

func TestExecutePipelineWithSessionPersistsNodeState(t *testing.T) {
	reg := noderegistry.NewRegistry()
	reg.Register("Counter", func(string) (noderegistry.Node, error) { return &counterNode{}, nil }, manifest.NodeCapabilities{})

	rt := goja.New()
	host := NewHost(reg)
	require.NoError(t, host.Install(rt))

	mjson := manifestJSON(t, "count", "Counter", "")
	rt.Set("__mjson", mjson)

	v, err := rt.RunString(`
		var inputs = {};
		var a = execute_pipeline_with_session(__mjson, inputs, "sess-1");
		var b = execute_pipeline_with_session(__mjson, inputs, "sess-1");
		[a.count.value.total, b.count.value.total];
	`)
	require.NoError(t, err)
	totals := v.Export().([]any)
	require.EqualValues(t, 1, totals[0])
	require.EqualValues(t, 2, totals[1])
}

func TestExecutePipelineWithSessionKeepsSeparateSessionsIndependent(t *testing.T) {
	reg := noderegistry.NewRegistry()
	reg.Register("Counter", func(string) (noderegistry.Node, error) { return &counterNode{}, nil }, manifest.NodeCapabilities{})

	rt := goja.New()
	host := NewHost(reg)
	require.NoError(t, host.Install(rt))

	mjson := manifestJSON(t, "count", "Counter", "")
	rt.Set("__mjson", mjson)

	v, err := rt.RunString(`
		var inputs = {};
		execute_pipeline_with_session(__mjson, inputs, "sess-a");
		var second = execute_pipeline_with_session(__mjson, inputs, "sess-b");
		second.count.value.total;
	`)
	require.NoError(t, err)
	require.EqualValues(t, 1, v.Export())
}

func TestCreateStreamSessionSendAndReceive(t *testing.T) {
	rt := goja.New()
	host := NewHost(noderegistry.Default)
	require.NoError(t, host.Install(rt))

	mjson := manifestJSON(t, "calc", "CalculatorNode", "")
	rt.Set("__mjson", mjson)

	v, err := rt.RunString(`
		var session = create_stream_session(__mjson);
		var payload = {type: "JSON", value: {operation:"multiply", operands:[4,5]}};
		session.send_input(payload, "calc");
		var out = session.recv_output();
		session.close();
		out;
	`)
	require.NoError(t, err)
	require.False(t, goja.IsNull(v))
}
