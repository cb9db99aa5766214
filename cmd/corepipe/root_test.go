package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmdRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["serve"])
	require.True(t, names["worker"])
}

func TestConfigureLoggingParsesValidLevel(t *testing.T) {
	configureLogging("debug")
	require.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestConfigureLoggingDefaultsToInfoOnGarbage(t *testing.T) {
	configureLogging("not-a-level")
	require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
