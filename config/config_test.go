package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "engine.yaml", `
drift:
  weights:
    api_usage: 0.2
    time_pattern: 0.2
    geographic: 0.6
  thresholds:
    critical: 0.9
    high: 0.7
    medium: 0.4
  activity_window: 200
morph:
  history_limit: 25
  rules:
    - name: prod-credential-change
      event: credential_change
      risk: 0.85
      expr: '"credentials" in changed && next["environment"] == "production"'
`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.2, config.Drift.Weights.APIUsage)
	assert.Equal(t, 0.6, config.Drift.Weights.Geographic)
	assert.Equal(t, 0.9, config.Drift.Thresholds.Critical)
	assert.Equal(t, 200, config.Drift.ActivityWindow)
	assert.Equal(t, 25, config.Morph.HistoryLimit)
	require.Len(t, config.Morph.Rules, 1)

	rule := config.Morph.Rules[0]
	assert.Equal(t, "prod-credential-change", rule.Name)
	assert.Equal(t, "credential_change", rule.Event)
	assert.Equal(t, 0.85, rule.Risk)
	assert.Contains(t, rule.Expr, `"credentials" in changed`)
}

func TestLoad_EmptyFileYieldsDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "engine.yaml", "")

	config, err := Load(path)
	require.NoError(t, err)

	assert.True(t, config.Drift.Weights.IsZero())
	assert.True(t, config.Drift.Thresholds.IsZero())
	assert.Zero(t, config.Drift.ActivityWindow)
	assert.Zero(t, config.Morph.HistoryLimit)
	assert.Empty(t, config.Morph.Rules)
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "engine.yaml", "drift:\n  activity_window: 50\n")

	config, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 50, config.Drift.ActivityWindow)
}

func TestLoad_DirectoryYmlFallback(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "engine.yml", "morph:\n  history_limit: 10\n")

	config, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 10, config.Morph.HistoryLimit)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = Load(t.TempDir())
	assert.ErrorContains(t, err, "no engine.yaml")
}

func TestLoad_Malformed(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "engine.yaml", "drift: [not a mapping")

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse")
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "engine.yaml", `
drift:
  weights:
    api_usage: 1.5
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "drift.weights.api_usage")
}

func TestLoadFromDir_WalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "engine.yaml", "drift:\n  activity_window: 75\n")

	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	config, err := LoadFromDir(nested)
	require.NoError(t, err)
	assert.Equal(t, 75, config.Drift.ActivityWindow)
}

func TestLoadFromDir_NotFound(t *testing.T) {
	// An isolated temp tree has no engine.yaml anywhere up to the root.
	_, err := LoadFromDir(t.TempDir())
	assert.Error(t, err)
}

func TestWeightsConfig_WithDefaults(t *testing.T) {
	t.Run("empty block gets all defaults", func(t *testing.T) {
		w := WeightsConfig{}.WithDefaults()
		assert.Equal(t, WeightsConfig{APIUsage: 0.30, TimePattern: 0.25, Geographic: 0.45}, w)
	})

	t.Run("partial block keeps the unset defaults", func(t *testing.T) {
		w := WeightsConfig{Geographic: 0.8}.WithDefaults()
		assert.Equal(t, 0.30, w.APIUsage)
		assert.Equal(t, 0.25, w.TimePattern)
		assert.Equal(t, 0.8, w.Geographic)
	})

	t.Run("full block is untouched", func(t *testing.T) {
		full := WeightsConfig{APIUsage: 0.1, TimePattern: 0.2, Geographic: 0.7}
		assert.Equal(t, full, full.WithDefaults())
	})
}

func TestThresholdsConfig_WithDefaults(t *testing.T) {
	t.Run("empty block gets all defaults", func(t *testing.T) {
		th := ThresholdsConfig{}.WithDefaults()
		assert.Equal(t, ThresholdsConfig{Critical: 0.8, High: 0.6, Medium: 0.3}, th)
	})

	t.Run("partial block keeps the unset defaults", func(t *testing.T) {
		th := ThresholdsConfig{Critical: 0.9}.WithDefaults()
		assert.Equal(t, 0.9, th.Critical)
		assert.Equal(t, 0.6, th.High)
		assert.Equal(t, 0.3, th.Medium)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{name: "zero value"},
		{
			name: "valid thresholds",
			config: Config{Drift: DriftConfig{
				Thresholds: ThresholdsConfig{Critical: 0.9, High: 0.5, Medium: 0.2},
			}},
		},
		{
			name: "weight out of range",
			config: Config{Drift: DriftConfig{
				Weights: WeightsConfig{APIUsage: -0.2},
			}},
			wantErr: "drift.weights.api_usage",
		},
		{
			name: "unordered thresholds",
			config: Config{Drift: DriftConfig{
				Thresholds: ThresholdsConfig{Critical: 0.3, High: 0.6, Medium: 0.8},
			}},
			wantErr: "ordered",
		},
		{
			// High alone is fine: the effective cut points 0.8/0.7/0.3 are
			// still ordered.
			name: "partial thresholds ordered after defaulting",
			config: Config{Drift: DriftConfig{
				Thresholds: ThresholdsConfig{High: 0.7},
			}},
		},
		{
			// Medium alone at 0.7 collides with the default high of 0.6.
			name: "partial thresholds unordered after defaulting",
			config: Config{Drift: DriftConfig{
				Thresholds: ThresholdsConfig{Medium: 0.7},
			}},
			wantErr: "ordered",
		},
		{
			name:    "negative window",
			config:  Config{Drift: DriftConfig{ActivityWindow: -1}},
			wantErr: "activity_window",
		},
		{
			name:    "negative history limit",
			config:  Config{Morph: MorphConfig{HistoryLimit: -5}},
			wantErr: "history_limit",
		},
		{
			name: "rule missing name",
			config: Config{Morph: MorphConfig{
				Rules: []RuleConfig{{Event: "credential_change", Risk: 0.5, Expr: "true"}},
			}},
			wantErr: "rule name is required",
		},
		{
			name: "rule missing expression",
			config: Config{Morph: MorphConfig{
				Rules: []RuleConfig{{Name: "r", Event: "credential_change", Risk: 0.5}},
			}},
			wantErr: "expression is required",
		},
		{
			name: "rule risk out of range",
			config: Config{Morph: MorphConfig{
				Rules: []RuleConfig{{Name: "r", Event: "credential_change", Risk: 2, Expr: "true"}},
			}},
			wantErr: "risk must be in [0, 1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}
