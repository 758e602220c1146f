// Package config provides loading and parsing of engine.yaml configuration
// files. The configuration covers the tunable parts of the engine: drift
// factor weights and classification thresholds, the morphing history cap,
// and operator-defined morphing rules. Every value has a working default;
// an absent or empty file yields a fully working engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents an engine.yaml configuration file.
type Config struct {
	// Drift configures the drift analyzer.
	Drift DriftConfig `yaml:"drift,omitempty"`

	// Morph configures the morphing detector.
	Morph MorphConfig `yaml:"morph,omitempty"`
}

// DriftConfig tunes the drift analyzer.
type DriftConfig struct {
	// Weights are the per-factor contribution weights.
	Weights WeightsConfig `yaml:"weights,omitempty"`

	// Thresholds are the risk classification cut points.
	Thresholds ThresholdsConfig `yaml:"thresholds,omitempty"`

	// ActivityWindow is the number of recent activity records examined.
	// Default: 100.
	ActivityWindow int `yaml:"activity_window,omitempty"`
}

// Default drift tunables, applied per field wherever the configuration
// leaves a value unset.
const (
	defaultAPIUsageWeight    = 0.30
	defaultTimePatternWeight = 0.25
	defaultGeographicWeight  = 0.45

	defaultCriticalThreshold = 0.8
	defaultHighThreshold     = 0.6
	defaultMediumThreshold   = 0.3
)

// WeightsConfig holds the drift factor weights. Each zero field falls back
// to its default (api 0.30, time 0.25, geographic 0.45) independently, so a
// partial block tunes one factor without discarding the others.
type WeightsConfig struct {
	APIUsage    float64 `yaml:"api_usage,omitempty"`
	TimePattern float64 `yaml:"time_pattern,omitempty"`
	Geographic  float64 `yaml:"geographic,omitempty"`
}

// IsZero reports whether no weight was configured.
func (w WeightsConfig) IsZero() bool {
	return w.APIUsage == 0 && w.TimePattern == 0 && w.Geographic == 0
}

// WithDefaults returns a copy with every zero field replaced by its default.
func (w WeightsConfig) WithDefaults() WeightsConfig {
	if w.APIUsage == 0 {
		w.APIUsage = defaultAPIUsageWeight
	}
	if w.TimePattern == 0 {
		w.TimePattern = defaultTimePatternWeight
	}
	if w.Geographic == 0 {
		w.Geographic = defaultGeographicWeight
	}
	return w
}

// ThresholdsConfig holds the risk classification cut points. Each zero field
// falls back to its default (critical 0.8, high 0.6, medium 0.3)
// independently, so a partial block moves one cut point without zeroing the
// others.
type ThresholdsConfig struct {
	Critical float64 `yaml:"critical,omitempty"`
	High     float64 `yaml:"high,omitempty"`
	Medium   float64 `yaml:"medium,omitempty"`
}

// IsZero reports whether no threshold was configured.
func (t ThresholdsConfig) IsZero() bool {
	return t.Critical == 0 && t.High == 0 && t.Medium == 0
}

// WithDefaults returns a copy with every zero field replaced by its default.
func (t ThresholdsConfig) WithDefaults() ThresholdsConfig {
	if t.Critical == 0 {
		t.Critical = defaultCriticalThreshold
	}
	if t.High == 0 {
		t.High = defaultHighThreshold
	}
	if t.Medium == 0 {
		t.Medium = defaultMediumThreshold
	}
	return t
}

// MorphConfig tunes the morphing detector.
type MorphConfig struct {
	// HistoryLimit caps the per-identity recent-event buffer. Default: 50.
	HistoryLimit int `yaml:"history_limit,omitempty"`

	// Rules are operator-defined CEL detection rules.
	Rules []RuleConfig `yaml:"rules,omitempty"`
}

// RuleConfig declares one custom morphing rule.
type RuleConfig struct {
	// Name identifies the rule.
	Name string `yaml:"name"`

	// Event is the morphing event type emitted when the rule fires.
	Event string `yaml:"event"`

	// Risk is the risk score (0-1) assigned to emitted events.
	Risk float64 `yaml:"risk"`

	// Expr is the CEL expression over prev, next, and changed.
	Expr string `yaml:"expr"`
}

// Validate checks the structural sanity of the configuration. Expression
// compilation and event-type validation happen when the engine converts the
// rules, so a Config stays decoupled from the detection packages.
func (c *Config) Validate() error {
	w := c.Drift.Weights
	for name, v := range map[string]float64{
		"api_usage":    w.APIUsage,
		"time_pattern": w.TimePattern,
		"geographic":   w.Geographic,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("drift.weights.%s must be in [0, 1], got %v", name, v)
		}
	}

	// Ordering is checked on the effective cut points, after per-field
	// defaulting: a partial block is judged by the thresholds it actually
	// produces.
	t := c.Drift.Thresholds.WithDefaults()
	if t.Medium < 0 || t.Critical > 1 {
		return fmt.Errorf("drift.thresholds must be within [0, 1]")
	}
	if !(t.Medium <= t.High && t.High <= t.Critical) {
		return fmt.Errorf("drift.thresholds must be ordered medium <= high <= critical")
	}

	if c.Drift.ActivityWindow < 0 {
		return fmt.Errorf("drift.activity_window must not be negative, got %d", c.Drift.ActivityWindow)
	}
	if c.Morph.HistoryLimit < 0 {
		return fmt.Errorf("morph.history_limit must not be negative, got %d", c.Morph.HistoryLimit)
	}

	for _, rule := range c.Morph.Rules {
		if rule.Name == "" {
			return fmt.Errorf("morph.rules: rule name is required")
		}
		if rule.Expr == "" {
			return fmt.Errorf("morph.rules.%s: expression is required", rule.Name)
		}
		if rule.Risk < 0 || rule.Risk > 1 {
			return fmt.Errorf("morph.rules.%s: risk must be in [0, 1], got %v", rule.Name, rule.Risk)
		}
	}
	return nil
}

// Load reads and parses an engine.yaml file from the given path.
// If the path is a directory, it looks for engine.yaml or engine.yml in
// that directory.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	configPath := path
	if info.IsDir() {
		yamlPath := filepath.Join(path, "engine.yaml")
		if _, err := os.Stat(yamlPath); err == nil {
			configPath = yamlPath
		} else {
			ymlPath := filepath.Join(path, "engine.yml")
			if _, err := os.Stat(ymlPath); err == nil {
				configPath = ymlPath
			} else {
				return nil, fmt.Errorf("no engine.yaml or engine.yml found in %s", path)
			}
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadFromDir searches for engine.yaml starting from the given directory
// and walking up to parent directories until found or the filesystem root
// is reached.
func LoadFromDir(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		config, err := Load(absDir)
		if err == nil {
			return config, nil
		}

		parent := filepath.Dir(absDir)
		if parent == absDir {
			return nil, fmt.Errorf("no engine.yaml found from %s upward", dir)
		}
		absDir = parent
	}
}
