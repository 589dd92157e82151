package risk

import (
	"fmt"
	"math"

	"github.com/codesentinel/codesentinel-go/internal/config"
	"github.com/codesentinel/codesentinel-go/internal/manifest"
)

// Scorer computes deterministic risk assessments from scanner findings,
// file categories and security relevance. It holds no I/O state; the same
// input always produces the same assessment.
type Scorer struct {
	cfg config.RiskConfig
}

// NewScorer builds a scorer from a validated risk configuration.
func NewScorer(cfg config.RiskConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score assesses one file entry. The vulnerability component is the score
// of the single worst finding; piles of low findings do not outrank one
// critical. Missing classification falls back to the neutral "other"
// category and low relevance.
func (s *Scorer) Score(entry *manifest.FileEntry) manifest.RiskAssessment {
	findings := entry.Findings()

	v := s.severityComponent(findings)
	c := s.categoryComponent(entry.Category)
	r := s.relevanceComponent(entry.SecurityRelevance)

	score := s.cfg.Weights.VulnerabilitySeverity*v +
		s.cfg.Weights.FileCategory*c +
		s.cfg.Weights.SecurityRelevance*r

	if s.cfg.CountModifiers.Enabled {
		score *= s.countMultiplier(findings)
	}
	score = clamp(score, 0, 10)
	score = math.Round(score*100) / 100

	priority := s.priority(score)
	return manifest.RiskAssessment{
		RiskScore: score,
		Priority:  priority,
		SLAHours:  s.slaHours(priority),
		Components: map[string]float64{
			"vulnerability_severity": v,
			"file_category":          c,
			"security_relevance":     r,
		},
		Reasoning: s.reasoning(entry, findings, v, c),
	}
}

// severityComponent returns the score of the most severe finding, or 0
// when the file is clean or unscanned.
func (s *Scorer) severityComponent(findings []manifest.Finding) float64 {
	max := 0.0
	for _, f := range findings {
		if v, ok := s.cfg.VulnerabilitySeverityScores[f.Severity]; ok && v > max {
			max = v
		}
	}
	return max
}

func (s *Scorer) categoryComponent(category string) float64 {
	if v, ok := s.cfg.FileCategoryScores[category]; ok {
		return v
	}
	return s.cfg.FileCategoryScores[manifest.CategoryOther]
}

func (s *Scorer) relevanceComponent(relevance string) float64 {
	if v, ok := s.cfg.SecurityRelevanceScores[relevance]; ok {
		return v
	}
	return s.cfg.SecurityRelevanceScores["low"]
}

// countMultiplier scales the base score by finding volume when the
// optional count modifiers are enabled.
func (s *Scorer) countMultiplier(findings []manifest.Finding) float64 {
	if len(findings) == 0 {
		return 1
	}
	cm := s.cfg.CountModifiers
	mult := 1 + float64(len(findings))*cm.BaseMultiplier
	for _, f := range findings {
		if f.Severity == manifest.SeverityCritical || f.Severity == manifest.SeverityHigh {
			mult += cm.CriticalHighBoost * cm.BaseMultiplier
		}
	}
	if mult > cm.MaxMultiplier {
		mult = cm.MaxMultiplier
	}
	return mult
}

func (s *Scorer) priority(score float64) string {
	t := s.cfg.PriorityThresholds
	switch {
	case score >= t.Critical:
		return manifest.PriorityCritical
	case score >= t.High:
		return manifest.PriorityHigh
	case score >= t.Medium:
		return manifest.PriorityMedium
	case score >= t.Low:
		return manifest.PriorityLow
	default:
		return manifest.PriorityInfo
	}
}

func (s *Scorer) slaHours(priority string) int {
	h := s.cfg.SLAHours
	switch priority {
	case manifest.PriorityCritical:
		return h.Critical
	case manifest.PriorityHigh:
		return h.High
	case manifest.PriorityMedium:
		return h.Medium
	case manifest.PriorityLow:
		return h.Low
	default:
		return h.Info
	}
}

// reasoning produces a one line explanation of the dominant inputs.
func (s *Scorer) reasoning(entry *manifest.FileEntry, findings []manifest.Finding, v, c float64) string {
	category := entry.Category
	if category == "" {
		category = manifest.CategoryOther
	}
	if len(findings) == 0 {
		if entry.Scanned() {
			return fmt.Sprintf("no findings; category %s (%.0f), relevance %s",
				category, c, relevanceOrLow(entry.SecurityRelevance))
		}
		return fmt.Sprintf("not scanned; category %s (%.0f), relevance %s",
			category, c, relevanceOrLow(entry.SecurityRelevance))
	}
	return fmt.Sprintf("%d finding(s), worst severity %s (%.0f); category %s (%.0f), relevance %s",
		len(findings), worstSeverity(s.cfg, findings), v, category, c,
		relevanceOrLow(entry.SecurityRelevance))
}

func relevanceOrLow(relevance string) string {
	if relevance == "" {
		return "low"
	}
	return relevance
}

func worstSeverity(cfg config.RiskConfig, findings []manifest.Finding) string {
	worst := ""
	max := -1.0
	for _, f := range findings {
		if v, ok := cfg.VulnerabilitySeverityScores[f.Severity]; ok && v > max {
			max = v
			worst = f.Severity
		}
	}
	if worst == "" {
		return manifest.SeverityInfo
	}
	return worst
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
