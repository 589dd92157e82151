package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/codesentinel/codesentinel-go/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRiskConfigIsValid(t *testing.T) {
	rc := DefaultRiskConfig()
	require.NoError(t, rc.Validate())

	assert.Equal(t, 0.40, rc.Weights.VulnerabilitySeverity)
	assert.Equal(t, 0.35, rc.Weights.FileCategory)
	assert.Equal(t, 0.25, rc.Weights.SecurityRelevance)
	assert.Equal(t, 10.0, rc.VulnerabilitySeverityScores["critical"])
	assert.Equal(t, 720, rc.SLAHours.Info)
	assert.False(t, rc.CountModifiers.Enabled)
}

func TestValidateRejectsBadWeightSum(t *testing.T) {
	rc := DefaultRiskConfig()
	rc.Weights.FileCategory = 0.5

	err := rc.Validate()
	assert.True(t, errors.IsKind(err, errors.KindConfigInvalid))
	assert.Contains(t, err.Error(), "sum to 1.0")
}

func TestValidateAllowsWeightTolerance(t *testing.T) {
	rc := DefaultRiskConfig()
	rc.Weights.VulnerabilitySeverity = 0.4 + 5e-7
	assert.NoError(t, rc.Validate())
}

func TestValidateRejectsUnknownTableKeys(t *testing.T) {
	rc := DefaultRiskConfig()
	rc.FileCategoryScores["backend"] = 5
	assert.True(t, errors.IsKind(rc.Validate(), errors.KindConfigInvalid))

	rc = DefaultRiskConfig()
	rc.VulnerabilitySeverityScores["catastrophic"] = 11
	assert.True(t, errors.IsKind(rc.Validate(), errors.KindConfigInvalid))

	rc = DefaultRiskConfig()
	rc.SecurityRelevanceScores["extreme"] = 12
	assert.True(t, errors.IsKind(rc.Validate(), errors.KindConfigInvalid))
}

func TestLoadRiskConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
risk_component_weights:
  vulnerability_severity: 0.5
  file_category: 0.3
  security_relevance: 0.2
sla_hours:
  critical: 2
`), 0o644))

	rc, err := LoadRiskConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, rc.Weights.VulnerabilitySeverity)
	assert.Equal(t, 2, rc.SLAHours.Critical)
	// Untouched tables keep their defaults.
	assert.Equal(t, 10.0, rc.FileCategoryScores["authentication"])
}

func TestLoadRiskConfigRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
risk_component_weights:
  vulnerability_severity: 0.9
  file_category: 0.9
  security_relevance: 0.9
`), 0o644))

	_, err := LoadRiskConfig(path)
	assert.True(t, errors.IsKind(err, errors.KindConfigInvalid))
}

func TestLoadRiskConfigMissingFile(t *testing.T) {
	_, err := LoadRiskConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, errors.IsKind(err, errors.KindConfigInvalid))
}
