package output

import (
	"fmt"
	"io"
	"time"

	"github.com/codesentinel/codesentinel-go/internal/analyzer"
	"github.com/codesentinel/codesentinel-go/internal/tokens"
	"github.com/dustin/go-humanize"
)

// Preview prints a cost projection before a paid classification run.
func Preview(w io.Writer, p *analyzer.Preview) {
	fmt.Fprintf(w, "Provider:         %s (%s)\n", p.Provider, p.Model)
	fmt.Fprintf(w, "Files to analyze: %s\n", humanize.Comma(int64(p.CandidateFiles)))
	if p.CandidateFiles == 0 {
		return
	}
	fmt.Fprintf(w, "Sampled:          %d files\n", p.SampledFiles)
	fmt.Fprintf(w, "Avg tokens/file:  %s\n", humanize.Comma(int64(p.AvgTokensPerFile)))
	fmt.Fprintf(w, "Est. tokens:      %s\n", humanize.Comma(int64(p.EstimatedTotalTokens)))
	fmt.Fprintf(w, "Est. cost:        $%.4f ($%.4f - $%.4f)\n", p.EstimatedCost, p.CostLow, p.CostHigh)
	fmt.Fprintf(w, "Est. time:        %s\n", p.EstimatedDuration.Round(time.Second))
	if p.Approximate {
		fmt.Fprintln(w, "Token counts are length-based estimates.")
	}
}

// TokenReport prints the aggregate section of a token analysis.
func TokenReport(w io.Writer, r *tokens.Report) {
	rs := r.RepositoryStats
	fmt.Fprintf(w, "Provider:       %s (%s)\n", r.PricingInfo.Provider, r.PricingInfo.Model)
	fmt.Fprintf(w, "Files:          %d of %d analyzable\n", rs.AnalyzedFiles, rs.TotalFiles)
	fmt.Fprintf(w, "Content tokens: %s\n", humanize.Comma(int64(rs.TotalContentTokens)))
	fmt.Fprintf(w, "Prompt tokens:  %s\n", humanize.Comma(int64(rs.TotalPromptTokens)))
	fmt.Fprintf(w, "Total tokens:   %s\n", humanize.Comma(int64(rs.TotalTokens)))
	fmt.Fprintf(w, "Avg per file:   %s\n", humanize.Comma(int64(rs.AverageTokensPerFile)))
	fmt.Fprintf(w, "Median:         %s\n", humanize.Comma(int64(rs.MedianTokensPerFile)))
	if rs.LargestFilePath != "" {
		fmt.Fprintf(w, "Largest:        %s (%s tokens)\n", rs.LargestFilePath, humanize.Comma(int64(rs.LargestFileTokens)))
	}
	fmt.Fprintf(w, "Est. cost:      $%.4f\n", rs.EstimatedTotalCostUSD)
}
