package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validManifestJSON() []byte {
	return []byte(`{
		"version": "1",
		"nodes": [{"id": "a", "node_type": "CalculatorNode", "params": ""}],
		"connections": []
	}`)
}

func TestCacheReturnsSameManifestOnRepeatedBytes(t *testing.T) {
	c, err := NewCache(16)
	require.NoError(t, err)
	defer c.Close()

	raw := validManifestJSON()
	first, err := c.ParseAndValidate(raw)
	require.NoError(t, err)

	second, err := c.ParseAndValidate(raw)
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestCacheDoesNotCacheInvalidManifests(t *testing.T) {
	c, err := NewCache(16)
	require.NoError(t, err)
	defer c.Close()

	raw := []byte(`{"version": "1", "nodes": [], "connections": []}`)
	_, err = c.ParseAndValidate(raw)
	require.Error(t, err)

	_, err = c.ParseAndValidate(raw)
	require.Error(t, err)
}

func TestCacheDistinguishesDifferentBytes(t *testing.T) {
	c, err := NewCache(16)
	require.NoError(t, err)
	defer c.Close()

	a, err := c.ParseAndValidate(validManifestJSON())
	require.NoError(t, err)

	other := []byte(`{
		"version": "1",
		"nodes": [{"id": "b", "node_type": "CalculatorNode", "params": ""}],
		"connections": []
	}`)
	b, err := c.ParseAndValidate(other)
	require.NoError(t, err)
	require.NotEqual(t, a.Nodes[0].ID, b.Nodes[0].ID)
}
