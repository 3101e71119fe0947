package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Restored after the test; loadConfig overwrites them.
	t.Setenv("SEARCH_BACKEND", "")
	t.Setenv("SEARCH_FIXTURE_PATH", "")
	t.Setenv("ONTOLOGY_SOURCE", "")
	t.Setenv("REDIS_HOST", "")

	var out bytes.Buffer
	cmd := rootCmd(&out)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	base := []string{
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--fixture", filepath.Join("..", "..", "pkg", "fixtures", "testdata", "catalog.yaml"),
	}
	cmd.SetArgs(append(base, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestLoadCommand(t *testing.T) {
	out, err := runCLI(t, "load", "source")

	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "CELLxGENE")
	assert.Contains(t, out, "Human Cell Atlas")
}

func TestSearchCommand(t *testing.T) {
	out, err := runCLI(t, "search", "tissue", "heart")

	require.NoError(t, err)
	assert.Contains(t, out, "Heart (FBbt)")
	assert.Contains(t, out, "Heart (UBERON)")
}

func TestExplainCommand(t *testing.T) {
	out, err := runCLI(t, "explain", "tissue")

	require.NoError(t, err)
	assert.Contains(t, out, "groups 2 children")
	assert.Contains(t, out, "6 candidates")
}

func TestUnknownCategory(t *testing.T) {
	_, err := runCLI(t, "load", "planet")

	assert.Error(t, err)
}

func TestParseSelections(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		category string
		want     []string
		wantErr  bool
	}{
		{name: "param key", input: []string{"tissues=lung"}, category: "tissue", want: []string{"lung"}},
		{name: "bracket suffix", input: []string{"organisms[]=mouse"}, category: "organism", want: []string{"mouse"}},
		{name: "category key", input: []string{"cell_types=tcell", "cell_types=bcell"}, category: "cell_types", want: []string{"tcell", "bcell"}},
		{name: "missing id", input: []string{"tissues="}, wantErr: true},
		{name: "no separator", input: []string{"lung"}, wantErr: true},
		{name: "unknown param", input: []string{"planets=mars"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := parseSelections("heart", tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "heart", params.Search)
			assert.Equal(t, tt.want, params.Selections[tt.category])
		})
	}
}
