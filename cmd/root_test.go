package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"serve", "train", "score", "precompute", "export", "generate", "runs"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "deal-scout", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCommandMode(t *testing.T) {
	assert.Equal(t, "", commandMode(rootCmd))
	assert.Equal(t, "serve", commandMode(serveCmd))
	assert.Equal(t, "runs", commandMode(runsCmd))
	assert.Equal(t, "runs", commandMode(runsListCmd))
	assert.Equal(t, "runs", commandMode(runsStatsCmd))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestPrecomputeCommand_Flags(t *testing.T) {
	flag := precomputeCmd.Flags().Lookup("max-rows")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
	require.NotNil(t, precomputeCmd.Flags().Lookup("force"))
}

func TestExportCommand_Flags(t *testing.T) {
	flag := exportCmd.Flags().Lookup("out")
	require.NotNil(t, flag)
	assert.Equal(t, "scored_companies.csv", flag.DefValue)
	sorted := exportCmd.Flags().Lookup("sort")
	require.NotNil(t, sorted)
	assert.Equal(t, "true", sorted.DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "stats"} {
		assert.True(t, names[name], "expected runs subcommand %q not found", name)
	}
}
