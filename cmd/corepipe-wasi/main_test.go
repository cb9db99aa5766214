package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunBareManifestCalculatorScenario(t *testing.T) {
	manifestJSON := []byte(`{
		"version": "1",
		"nodes": [{"id": "calc", "node_type": "CalculatorNode", "params": "{\"operation\":\"add\",\"operands\":[10,20]}"}],
		"connections": []
	}`)

	var stdout bytes.Buffer
	code := run(manifestJSON, &stdout)
	require.Equal(t, exitSuccess, code)

	var resp responseEnvelope
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	require.Equal(t, "success", resp.Status)
	require.NotNil(t, resp.GraphInfo)
	require.Equal(t, []string{"calc"}, resp.GraphInfo.ExecutionOrder)
}

func TestRunRejectsInvalidManifest(t *testing.T) {
	var stdout bytes.Buffer
	code := run([]byte(`{"nodes": []}`), &stdout)
	require.Equal(t, exitValidationError, code)

	var resp responseEnvelope
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	require.Equal(t, "error", resp.Status)
	require.NotEmpty(t, resp.Error)
}

func TestRunRejectsMalformedJSON(t *testing.T) {
	var stdout bytes.Buffer
	code := run([]byte(`not json`), &stdout)
	require.Equal(t, exitValidationError, code)
}

func TestRunWithEnvelopeAndSingleInputData(t *testing.T) {
	envelope := []byte(`{
		"manifest": {
			"version": "1",
			"nodes": [{"id": "calc", "node_type": "CalculatorNode", "params": ""}],
			"connections": []
		},
		"input_data": [
			{"json": {"text": "{\"operation\":\"subtract\",\"operands\":[9,4]}"}}
		]
	}`)

	var stdout bytes.Buffer
	code := run(envelope, &stdout)
	require.Equal(t, exitSuccess, code)

	var resp responseEnvelope
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	require.Equal(t, "success", resp.Status)
	require.Contains(t, resp.Outputs, "calc")
}

// TestRunFansOutArrayInputOverMultiplyAddChain runs the
// MultiplyNode(x2) -> AddNode(+10) chain once per input_data element and
// expects one output per element, in order: 5*2+10=20, 7*2+10=24, 3*2+10=16.
func TestRunFansOutArrayInputOverMultiplyAddChain(t *testing.T) {
	envelope := []byte(`{
		"manifest": {
			"version": "1",
			"nodes": [
				{"id": "multiply", "node_type": "MultiplyNode", "params": "{\"factor\":2}"},
				{"id": "add", "node_type": "AddNode", "params": "{\"addend\":10}"}
			],
			"connections": [{"from": "multiply", "to": "add"}]
		},
		"input_data": [
			{"json": {"text": "5"}},
			{"json": {"text": "7"}},
			{"json": {"text": "3"}}
		]
	}`)

	var stdout bytes.Buffer
	code := run(envelope, &stdout)
	require.Equal(t, exitSuccess, code)

	var resp responseEnvelope
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	require.Equal(t, "success", resp.Status)
	require.NotNil(t, resp.GraphInfo)
	require.Equal(t, 2, resp.GraphInfo.NodeCount)
	require.Equal(t, []string{"multiply", "add"}, resp.GraphInfo.ExecutionOrder)

	outputs, ok := resp.Outputs.([]any)
	require.True(t, ok)
	require.Len(t, outputs, 3)

	var values []string
	for _, o := range outputs {
		buf, err := json.Marshal(o)
		require.NoError(t, err)
		values = append(values, string(buf))
	}
	require.JSONEq(t, `{"json":{"text":"20"}}`, values[0])
	require.JSONEq(t, `{"json":{"text":"24"}}`, values[1])
	require.JSONEq(t, `{"json":{"text":"16"}}`, values[2])
}
