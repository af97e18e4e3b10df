package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"import", "chain", "batches", "qualify", "estimate", "serve", "worker", "workflow", "watch", "migrate", "dlq", "crm"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "leadq", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
}

func TestChainCommand_HasStages(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range chainCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"enrich", "await", "contactability", "prep", "preview", "deploy"} {
		assert.True(t, names[name], "chain should have subcommand %q", name)
	}
	assert.NotNil(t, chainCmd.PersistentFlags().Lookup("fail-forward"))
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		name    string
		lookup  func() string
		wantDef string
	}{
		{name: "serve port", lookup: func() string { return serveCmd.Flags().Lookup("port").DefValue }, wantDef: "0"},
		{name: "enrich await", lookup: func() string { return chainEnrichCmd.Flags().Lookup("await").DefValue }, wantDef: "false"},
		{name: "enrich skip-trace", lookup: func() string { return chainEnrichCmd.Flags().Lookup("skip-trace").DefValue }, wantDef: "true"},
		{name: "deploy dry-run", lookup: func() string { return chainDeployCmd.Flags().Lookup("dry-run").DefValue }, wantDef: "false"},
		{name: "prep persona", lookup: func() string { return chainPrepCmd.Flags().Lookup("persona").DefValue }, wantDef: "busy_ceo"},
		{name: "import run", lookup: func() string { return importCmd.Flags().Lookup("run").DefValue }, wantDef: "false"},
		{name: "batches limit", lookup: func() string { return batchesListCmd.Flags().Lookup("limit").DefValue }, wantDef: "20"},
		{name: "dlq limit", lookup: func() string { return dlqListCmd.Flags().Lookup("limit").DefValue }, wantDef: "100"},
		{name: "estimate tier", lookup: func() string { return estimateCmd.Flags().Lookup("tier").DefValue }, wantDef: "normal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantDef, tt.lookup())
		})
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"leads": 3}))
	assert.Contains(t, buf.String(), "\n  \"leads\": 3")

	var out map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 3, out["leads"])
}
