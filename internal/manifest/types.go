package manifest

import "time"

// Category values assigned by the LLM analyzer.
const (
	CategoryAuthentication = "authentication"
	CategoryDataProcessing = "data-processing"
	CategoryAPI            = "api"
	CategoryFrontend       = "frontend"
	CategoryConfig         = "config"
	CategoryTest           = "test"
	CategoryBuild          = "build"
	CategoryDocumentation  = "documentation"
	CategoryOther          = "other"
)

// Categories lists every valid category value.
var Categories = []string{
	CategoryAuthentication,
	CategoryDataProcessing,
	CategoryAPI,
	CategoryFrontend,
	CategoryConfig,
	CategoryTest,
	CategoryBuild,
	CategoryDocumentation,
	CategoryOther,
}

// Severity values for normalized scanner findings.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
)

// Priority tiers assigned by the risk scorer.
const (
	PriorityCritical = "CRITICAL"
	PriorityHigh     = "HIGH"
	PriorityMedium   = "MEDIUM"
	PriorityLow      = "LOW"
	PriorityInfo     = "INFO"
)

// Repository identifies the analyzed revision. CommitSHA is pinned on first
// write; later phases verify they operate on the same revision.
type Repository struct {
	URL               string `json:"url"`
	DefaultBranch     string `json:"default_branch"`
	CommitSHA         string `json:"commit_sha"`
	AnalysisTimestamp string `json:"analysis_timestamp"`
}

// TokenStats records token accounting for one file's classification prompt.
type TokenStats struct {
	ContentTokens           int     `json:"content_tokens"`
	PromptTokens            int     `json:"prompt_tokens"`
	EstimatedResponseTokens int     `json:"estimated_response_tokens"`
	TotalTokens             int     `json:"total_tokens"`
	EstimatedCost           float64 `json:"estimated_cost"`
	Approximate             bool    `json:"approximate,omitempty"`
}

// Finding is one normalized vulnerability report from a scanner.
type Finding struct {
	ScannerName   string   `json:"scanner_name"`
	RuleID        string   `json:"rule_id"`
	Severity      string   `json:"severity"`
	Message       string   `json:"message"`
	LineStart     int      `json:"line_start"`
	LineEnd       int      `json:"line_end"`
	Confidence    string   `json:"confidence,omitempty"`
	CWE           string   `json:"cwe,omitempty"`
	FixSuggestion string   `json:"fix_suggestion,omitempty"`
	References    []string `json:"references,omitempty"`
}

// RiskAssessment is the computed score/priority/SLA triple for a file.
type RiskAssessment struct {
	RiskScore  float64            `json:"risk_score"`
	Priority   string             `json:"priority"`
	SLAHours   int                `json:"sla_hours"`
	Components map[string]float64 `json:"components"`
	Reasoning  string             `json:"reasoning"`
}

// FileEntry is one record per analyzable file. Fields accumulate across
// phases; optional fields stay absent from the JSON until their owning
// phase runs.
//
// Vulnerabilities is a pointer so that "scanned, none found" (present,
// empty list) stays distinct from "not scanned" (absent).
type FileEntry struct {
	Path      string `json:"path"`
	BlobID    string `json:"blob_id"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`

	Purpose           string   `json:"purpose,omitempty"`
	Category          string   `json:"category,omitempty"`
	Confidence        *float64 `json:"confidence,omitempty"`
	SecurityRelevance string   `json:"security_relevance,omitempty"`
	Reasoning         string   `json:"reasoning,omitempty"`
	Provider          string   `json:"provider,omitempty"`
	Model             string   `json:"model,omitempty"`

	TokenStats      *TokenStats     `json:"token_stats,omitempty"`
	Vulnerabilities *[]Finding      `json:"vulnerabilities,omitempty"`
	RiskAssessment  *RiskAssessment `json:"risk_assessment,omitempty"`
}

// Scanned reports whether the file has been through a scanner phase.
func (f *FileEntry) Scanned() bool { return f.Vulnerabilities != nil }

// Findings returns the attached findings, or nil if not scanned.
func (f *FileEntry) Findings() []Finding {
	if f.Vulnerabilities == nil {
		return nil
	}
	return *f.Vulnerabilities
}

// Classified reports whether the LLM analyzer has produced a purpose.
func (f *FileEntry) Classified() bool { return f.Purpose != "" }

// Manifest is the single JSON document describing a repository analysis.
// File order is assigned at inventory time and never changes.
type Manifest struct {
	Repository Repository  `json:"repository"`
	Files      []FileEntry `json:"files"`
}

// New creates a manifest for a freshly resolved repository.
func New(url, branch, commitSHA string, now time.Time) *Manifest {
	return &Manifest{
		Repository: Repository{
			URL:               url,
			DefaultBranch:     branch,
			CommitSHA:         commitSHA,
			AnalysisTimestamp: now.UTC().Format(time.RFC3339),
		},
	}
}

// Entry returns the entry for path, or nil.
func (m *Manifest) Entry(path string) *FileEntry {
	for i := range m.Files {
		if m.Files[i].Path == path {
			return &m.Files[i]
		}
	}
	return nil
}
