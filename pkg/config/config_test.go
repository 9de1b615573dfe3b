package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "STRICT-CORE", cfg.VerificationProfile)
	assert.Equal(t, 25, cfg.Budgets.MaxIterationsPerLoop)
	assert.False(t, cfg.CrossLoopCorrelation.Allowed)
}

func TestLoad_UserYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := `
verification_profile: STRICT-CORE
budgets:
  max_iterations_per_loop: 5
cross_loop_correlation:
  allowed: true
portals:
  - name: ops-review
    kind: human
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Budgets.MaxIterationsPerLoop)
	assert.True(t, cfg.CrossLoopCorrelation.Allowed)
	require.Len(t, cfg.Portals, 1)
	assert.Equal(t, "ops-review", cfg.Portals[0].Name)
	// Unset fields keep their built-in defaults.
	assert.Equal(t, 50, cfg.Staleness.MaxDepth)
}

func TestLoad_RejectsInvalidBudget(t *testing.T) {
	dir := t.TempDir()
	yaml := `budgets:
  max_iterations_per_loop: -1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}
