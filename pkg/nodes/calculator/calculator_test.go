package calculator

import (
	"testing"

	"github.com/helixml/corepipe/pkg/streamtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatorAdd(t *testing.T) {
	node, err := New("")
	require.NoError(t, err)
	require.NoError(t, node.Initialize(""))

	input, err := streamtype.NewJSON(`{"operation":"add","operands":[10,20]}`, "", nil)
	require.NoError(t, err)

	out, err := node.Process(map[string]*streamtype.RuntimeData{"": input})
	require.NoError(t, err)

	value, err := out[""].JSONValue()
	require.NoError(t, err)
	obj := value.(map[string]any)
	assert.Equal(t, float64(30), obj["result"])
	assert.Equal(t, "add", obj["operation"])
}

func TestCalculatorUnknownOperation(t *testing.T) {
	node, _ := New("")
	input, _ := streamtype.NewJSON(`{"operation":"pow","operands":[2,3]}`, "", nil)
	_, err := node.Process(map[string]*streamtype.RuntimeData{"": input})
	require.Error(t, err)
}

func TestCalculatorRejectsNonJSONInput(t *testing.T) {
	node, _ := New("")
	input := streamtype.NewBinary([]byte("x"), "", nil)
	_, err := node.Process(map[string]*streamtype.RuntimeData{"": input})
	require.Error(t, err)
}
