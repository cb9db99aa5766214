package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/helixml/corepipe/pkg/streamtype"
)

func TestWsEnvelopeRoundTripsManifestFrame(t *testing.T) {
	raw := []byte(`{"manifest":{"version":"1","nodes":[],"connections":[]}}`)
	var env wsEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.NotEmpty(t, env.Manifest)
	require.Nil(t, env.Chunk)
}

func TestWsEnvelopeRoundTripsChunkFrame(t *testing.T) {
	text, err := streamtype.NewText([]byte("hi"), "utf-8", "en", nil)
	require.NoError(t, err)
	buf, err := streamtype.ToProto(text)
	require.NoError(t, err)

	env := wsEnvelope{Chunk: buf, NodeID: "n1", Sequence: 3}
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded wsEnvelope
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "n1", decoded.NodeID)
	require.Equal(t, uint64(3), decoded.Sequence)
	require.NotNil(t, decoded.Chunk)

	rd, err := streamtype.ToRuntime(decoded.Chunk)
	require.NoError(t, err)
	textBytes, err := rd.TextBytes()
	require.NoError(t, err)
	require.Equal(t, "hi", string(textBytes))
}
