package tokens

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/codesentinel/codesentinel-go/internal/errors"
	"github.com/codesentinel/codesentinel-go/internal/manifest"
)

// FileStats is one line of the standalone token report.
type FileStats struct {
	FilePath                string  `json:"file_path"`
	FileSizeBytes           int64   `json:"file_size_bytes"`
	ContentTokens           int     `json:"content_tokens"`
	PromptTokens            int     `json:"prompt_tokens"`
	EstimatedResponseTokens int     `json:"estimated_response_tokens"`
	TotalTokens             int     `json:"total_tokens"`
	EstimatedCostUSD        float64 `json:"estimated_cost_usd"`
}

// RepositoryStats aggregates token accounting over the whole manifest.
type RepositoryStats struct {
	TotalFiles            int     `json:"total_files"`
	AnalyzedFiles         int     `json:"analyzed_files"`
	TotalContentTokens    int     `json:"total_content_tokens"`
	TotalPromptTokens     int     `json:"total_prompt_tokens"`
	TotalResponseTokens   int     `json:"total_response_tokens"`
	TotalTokens           int     `json:"total_tokens"`
	EstimatedTotalCostUSD float64 `json:"estimated_total_cost_usd"`
	AverageTokensPerFile  float64 `json:"average_tokens_per_file"`
	MedianTokensPerFile   float64 `json:"median_tokens_per_file"`
	LargestFileTokens     int     `json:"largest_file_tokens"`
	LargestFilePath       string  `json:"largest_file_path"`
}

// Report is the document written next to the manifest when token
// accounting is requested standalone.
type Report struct {
	RepositoryStats RepositoryStats `json:"repository_stats"`
	FileStats       []FileStats     `json:"file_stats"`
	PricingInfo     PricingInfo     `json:"pricing_info"`
}

// PricingInfo records the rates the estimates were computed with.
type PricingInfo struct {
	Provider            string  `json:"provider"`
	Model               string  `json:"model"`
	InputPricePer1K     float64 `json:"input_price_per_1k_tokens"`
	OutputPricePer1K    float64 `json:"output_price_per_1k_tokens"`
	Currency            string  `json:"currency"`
}

// BuildReport assembles the token report from manifest entries that carry
// token_stats.
func BuildReport(m *manifest.Manifest, provider, model string, inputRate, outputRate float64) *Report {
	report := &Report{
		PricingInfo: PricingInfo{
			Provider:         provider,
			Model:            model,
			InputPricePer1K:  inputRate,
			OutputPricePer1K: outputRate,
			Currency:         "USD",
		},
	}
	report.RepositoryStats.TotalFiles = len(m.Files)

	var totals []int
	for _, f := range m.Files {
		ts := f.TokenStats
		if ts == nil {
			continue
		}
		report.FileStats = append(report.FileStats, FileStats{
			FilePath:                f.Path,
			FileSizeBytes:           f.Size,
			ContentTokens:           ts.ContentTokens,
			PromptTokens:            ts.PromptTokens,
			EstimatedResponseTokens: ts.EstimatedResponseTokens,
			TotalTokens:             ts.TotalTokens,
			EstimatedCostUSD:        ts.EstimatedCost,
		})
		rs := &report.RepositoryStats
		rs.AnalyzedFiles++
		rs.TotalContentTokens += ts.ContentTokens
		rs.TotalPromptTokens += ts.PromptTokens
		rs.TotalResponseTokens += ts.EstimatedResponseTokens
		rs.TotalTokens += ts.TotalTokens
		rs.EstimatedTotalCostUSD += ts.EstimatedCost
		totals = append(totals, ts.TotalTokens)
		if ts.TotalTokens > rs.LargestFileTokens {
			rs.LargestFileTokens = ts.TotalTokens
			rs.LargestFilePath = f.Path
		}
	}

	if n := len(totals); n > 0 {
		rs := &report.RepositoryStats
		rs.AverageTokensPerFile = float64(rs.TotalTokens) / float64(n)
		sort.Ints(totals)
		if n%2 == 1 {
			rs.MedianTokensPerFile = float64(totals[n/2])
		} else {
			rs.MedianTokensPerFile = float64(totals[n/2-1]+totals[n/2]) / 2
		}
	}
	return report
}

// Save writes the report as indented JSON.
func (r *Report) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, errors.KindInternal, "create report directory")
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "encode token report")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrap(err, errors.KindInternal, "write token report")
	}
	return nil
}
