package config

import (
	"math"
	"os"

	"github.com/codesentinel/codesentinel-go/internal/errors"
	"gopkg.in/yaml.v3"
)

// weightTolerance is how far the three component weights may drift from 1.0.
const weightTolerance = 1e-6

// RiskWeights are the component weights of the risk score. They must sum
// to 1 within tolerance.
type RiskWeights struct {
	VulnerabilitySeverity float64 `yaml:"vulnerability_severity" mapstructure:"vulnerability_severity"`
	FileCategory          float64 `yaml:"file_category" mapstructure:"file_category"`
	SecurityRelevance     float64 `yaml:"security_relevance" mapstructure:"security_relevance"`
}

// PriorityThresholds map risk score floors to priority tiers.
type PriorityThresholds struct {
	Critical float64 `yaml:"critical" mapstructure:"critical"`
	High     float64 `yaml:"high" mapstructure:"high"`
	Medium   float64 `yaml:"medium" mapstructure:"medium"`
	Low      float64 `yaml:"low" mapstructure:"low"`
}

// SLAHours assigns a response window to each priority tier.
type SLAHours struct {
	Critical int `yaml:"critical" mapstructure:"critical"`
	High     int `yaml:"high" mapstructure:"high"`
	Medium   int `yaml:"medium" mapstructure:"medium"`
	Low      int `yaml:"low" mapstructure:"low"`
	Info     int `yaml:"info" mapstructure:"info"`
}

// CountModifiers optionally scale the base score by finding count. Off by
// default: the shipped score is the pure weighted sum.
type CountModifiers struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	BaseMultiplier    float64 `yaml:"base_multiplier" mapstructure:"base_multiplier"`
	MaxMultiplier     float64 `yaml:"max_multiplier" mapstructure:"max_multiplier"`
	CriticalHighBoost float64 `yaml:"critical_high_boost" mapstructure:"critical_high_boost"`
}

// RiskConfig drives the deterministic risk scorer.
type RiskConfig struct {
	Weights                     RiskWeights        `yaml:"risk_component_weights" mapstructure:"risk_component_weights"`
	VulnerabilitySeverityScores map[string]float64 `yaml:"vulnerability_severity_scores" mapstructure:"vulnerability_severity_scores"`
	FileCategoryScores          map[string]float64 `yaml:"file_category_scores" mapstructure:"file_category_scores"`
	SecurityRelevanceScores     map[string]float64 `yaml:"security_relevance_scores" mapstructure:"security_relevance_scores"`
	PriorityThresholds          PriorityThresholds `yaml:"priority_thresholds" mapstructure:"priority_thresholds"`
	SLAHours                    SLAHours           `yaml:"sla_hours" mapstructure:"sla_hours"`
	CountModifiers              CountModifiers     `yaml:"vulnerability_count_settings" mapstructure:"vulnerability_count_settings"`
}

// DefaultRiskConfig returns the shipped scoring tables.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		Weights: RiskWeights{
			VulnerabilitySeverity: 0.40,
			FileCategory:          0.35,
			SecurityRelevance:     0.25,
		},
		VulnerabilitySeverityScores: map[string]float64{
			"critical": 10, "high": 7, "medium": 4, "low": 1, "info": 0,
		},
		FileCategoryScores: map[string]float64{
			"authentication": 10, "api": 8, "data-processing": 7,
			"config": 6, "frontend": 4, "build": 3, "test": 2,
			"documentation": 1, "other": 3,
		},
		SecurityRelevanceScores: map[string]float64{
			"high": 10, "medium": 5, "low": 2,
		},
		PriorityThresholds: PriorityThresholds{
			Critical: 8.0, High: 6.0, Medium: 4.0, Low: 2.0,
		},
		SLAHours: SLAHours{
			Critical: 4, High: 24, Medium: 72, Low: 168, Info: 720,
		},
		CountModifiers: CountModifiers{
			Enabled:           false,
			BaseMultiplier:    0.1,
			MaxMultiplier:     1.5,
			CriticalHighBoost: 1.0,
		},
	}
}

// LoadRiskConfig reads a standalone risk scoring config file.
func LoadRiskConfig(path string) (*RiskConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindConfigInvalid, "read risk scoring config")
	}
	rc := DefaultRiskConfig()
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return nil, errors.Wrap(err, errors.KindConfigInvalid, "parse risk scoring config")
	}
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	return &rc, nil
}

// Validate rejects weight sets that do not sum to 1 and unknown score-table
// categories. Called once at load time, before any phase runs.
func (rc *RiskConfig) Validate() error {
	sum := rc.Weights.VulnerabilitySeverity + rc.Weights.FileCategory + rc.Weights.SecurityRelevance
	if math.Abs(sum-1.0) > weightTolerance {
		return errors.Newf(errors.KindConfigInvalid,
			"risk component weights must sum to 1.0, got %.6f", sum)
	}

	known := map[string]bool{
		"authentication": true, "data-processing": true, "api": true,
		"frontend": true, "config": true, "test": true, "build": true,
		"documentation": true, "other": true,
	}
	for cat := range rc.FileCategoryScores {
		if !known[cat] {
			return errors.Newf(errors.KindConfigInvalid, "unknown file category %q", cat)
		}
	}

	knownSev := map[string]bool{
		"critical": true, "high": true, "medium": true, "low": true, "info": true,
	}
	for sev := range rc.VulnerabilitySeverityScores {
		if !knownSev[sev] {
			return errors.Newf(errors.KindConfigInvalid, "unknown severity %q", sev)
		}
	}

	for rel := range rc.SecurityRelevanceScores {
		if rel != "high" && rel != "medium" && rel != "low" {
			return errors.Newf(errors.KindConfigInvalid, "unknown security relevance %q", rel)
		}
	}
	return nil
}
