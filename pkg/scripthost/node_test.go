package scripthost

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/helixml/corepipe/pkg/modelregistry"
	"github.com/helixml/corepipe/pkg/streamtype"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	pool, err := NewPool(1)
	require.NoError(t, err)
	return pool
}

func TestScriptedNodeUppercasesText(t *testing.T) {
	pool := newTestPool(t)
	node, err := NewFactory(pool, nil)("")
	require.NoError(t, err)

	params, err := json.Marshal(nodeParams{Source: `
		function process(inputs) {
			return { type: "TEXT", text: inputs[""].text.toUpperCase() };
		}
	`})
	require.NoError(t, err)
	require.NoError(t, node.Initialize(string(params)))
	defer node.Cleanup()

	in, err := streamtype.NewText([]byte("hello"), "utf-8", "en", nil)
	require.NoError(t, err)

	out, err := node.Process(map[string]*streamtype.RuntimeData{"": in})
	require.NoError(t, err)
	bytes, err := out[""].TextBytes()
	require.NoError(t, err)
	require.Equal(t, "HELLO", string(bytes))
}

func TestScriptedNodeInitializeReceivesConfig(t *testing.T) {
	pool := newTestPool(t)
	node, err := NewFactory(pool, nil)("")
	require.NoError(t, err)

	params, err := json.Marshal(nodeParams{
		Source: `
			var greeting;
			function initialize(config) { greeting = config.greeting; }
			function process(inputs) { return { type: "JSON", value: { greeting: greeting } }; }
		`,
		Config: json.RawMessage(`{"greeting":"hi"}`),
	})
	require.NoError(t, err)
	require.NoError(t, node.Initialize(string(params)))
	defer node.Cleanup()

	out, err := node.Process(map[string]*streamtype.RuntimeData{})
	require.NoError(t, err)
	value, err := out[""].JSONValue()
	require.NoError(t, err)
	require.Equal(t, "hi", value.(map[string]any)["greeting"])
}

func TestScriptedNodeGetOrLoadBindsToModelRegistry(t *testing.T) {
	pool := newTestPool(t)
	reg := modelregistry.New(modelregistry.Config{CapacityBytes: 1 << 20, IdleTTL: time.Hour})
	defer reg.Close()

	node, err := NewFactory(pool, reg)("")
	require.NoError(t, err)

	params, err := json.Marshal(nodeParams{Source: `
		var handle;
		function initialize(config) {
			handle = get_or_load("demo-model", function() { return "loaded-value"; });
		}
		function process(inputs) {
			return { type: "JSON", value: { model: handle.value } };
		}
	`})
	require.NoError(t, err)
	require.NoError(t, node.Initialize(string(params)))
	defer node.Cleanup()

	out, err := node.Process(map[string]*streamtype.RuntimeData{})
	require.NoError(t, err)
	value, err := out[""].JSONValue()
	require.NoError(t, err)
	require.Equal(t, "loaded-value", value.(map[string]any)["model"])
}
