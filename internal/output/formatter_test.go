package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/codesentinel/codesentinel-go/internal/analyzer"
	"github.com/codesentinel/codesentinel-go/internal/manifest"
	"github.com/stretchr/testify/assert"
)

func sampleManifest() *manifest.Manifest {
	m := manifest.New("https://github.com/acme/widget", "main", "abc123", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	confidence := 0.9
	findings := []manifest.Finding{
		{ScannerName: "semgrep", RuleID: "r1", Severity: manifest.SeverityHigh, Message: "shell=True", LineStart: 3, LineEnd: 3},
	}
	m.Files = []manifest.FileEntry{
		{
			Path: "app/auth.py", BlobID: "b1", Size: 2048, Extension: ".py",
			Purpose: "Authentication", Category: manifest.CategoryAuthentication,
			Confidence: &confidence, SecurityRelevance: "high", Reasoning: "credentials",
			Provider: "openai", Model: "gpt-4o-mini",
			Vulnerabilities: &findings,
			RiskAssessment: &manifest.RiskAssessment{
				RiskScore: 8.8, Priority: manifest.PriorityCritical, SLAHours: 4,
				Reasoning: "1 finding(s), worst severity high",
			},
		},
		{Path: "README.md", BlobID: "b2", Size: 100, Extension: ".md"},
	}
	return m
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	NewFormatter(&buf).Summary(sampleManifest())
	out := buf.String()

	assert.Contains(t, out, "https://github.com/acme/widget")
	assert.Contains(t, out, "abc123")
	assert.Contains(t, out, ".py")
	assert.Contains(t, out, "CRITICAL")
	assert.Contains(t, out, "app/auth.py")
	assert.Contains(t, out, "Classified:  1")
	assert.Contains(t, out, "Scanned:     1")
}

func TestFileDetail(t *testing.T) {
	var buf bytes.Buffer
	m := sampleManifest()
	NewFormatter(&buf).File(&m.Files[0])
	out := buf.String()

	assert.Contains(t, out, "app/auth.py")
	assert.Contains(t, out, "Authentication")
	assert.Contains(t, out, "semgrep r1")
	assert.Contains(t, out, "8.80")
	assert.Contains(t, out, "SLA 4h")
}

func TestFileDetailUnenrichedEntry(t *testing.T) {
	var buf bytes.Buffer
	m := sampleManifest()
	NewFormatter(&buf).File(&m.Files[1])
	out := buf.String()

	assert.Contains(t, out, "README.md")
	assert.NotContains(t, out, "Purpose")
	assert.NotContains(t, out, "Risk score")
}

func TestPreviewRendering(t *testing.T) {
	var buf bytes.Buffer
	Preview(&buf, &analyzer.Preview{
		Provider:             "openai",
		Model:                "gpt-4o-mini",
		CandidateFiles:       120,
		SampledFiles:         3,
		AvgTokensPerFile:     800,
		EstimatedTotalTokens: 96000,
		EstimatedCost:        0.0288,
		CostLow:              0.02,
		CostHigh:             0.04,
		EstimatedDuration:    time.Minute,
	})
	out := buf.String()

	assert.Contains(t, out, "openai")
	assert.Contains(t, out, "120")
	assert.Contains(t, out, "96,000")
	assert.Contains(t, out, "$0.0288")
}

func TestPreviewEmpty(t *testing.T) {
	var buf bytes.Buffer
	Preview(&buf, &analyzer.Preview{Provider: "openai", Model: "gpt-4o-mini"})
	assert.Contains(t, buf.String(), "Files to analyze: 0")
	assert.NotContains(t, buf.String(), "Est. cost")
}
