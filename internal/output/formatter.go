package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/codesentinel/codesentinel-go/internal/manifest"
	"github.com/dustin/go-humanize"
)

// fileListLimit caps how many files the summary view lists before
// eliding the rest.
const fileListLimit = 20

// Formatter renders human-readable views of a manifest.
type Formatter struct {
	w io.Writer
}

// NewFormatter writes to w.
func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

// Summary prints the repository header, per-extension breakdown, phase
// coverage and the first files of the inventory.
func (f *Formatter) Summary(m *manifest.Manifest) {
	r := m.Repository
	fmt.Fprintf(f.w, "Repository:  %s\n", r.URL)
	fmt.Fprintf(f.w, "Branch:      %s\n", r.DefaultBranch)
	fmt.Fprintf(f.w, "Commit:      %s\n", r.CommitSHA)
	fmt.Fprintf(f.w, "Analyzed:    %s\n", r.AnalysisTimestamp)
	fmt.Fprintln(f.w)

	var totalSize int64
	classified, scanned, scored, placeholders := 0, 0, 0, 0
	byExt := map[string]int{}
	byPriority := map[string]int{}
	for i := range m.Files {
		e := &m.Files[i]
		totalSize += e.Size
		ext := e.Extension
		if ext == "" {
			ext = "(none)"
		}
		byExt[ext]++
		if e.Classified() {
			classified++
			if strings.HasPrefix(e.Reasoning, "analysis_failed:") {
				placeholders++
			}
		}
		if e.Scanned() {
			scanned++
		}
		if e.RiskAssessment != nil {
			scored++
			byPriority[e.RiskAssessment.Priority]++
		}
	}

	fmt.Fprintf(f.w, "Files:       %s (%s)\n", humanize.Comma(int64(len(m.Files))), humanize.Bytes(uint64(totalSize)))
	fmt.Fprintf(f.w, "Classified:  %d", classified)
	if placeholders > 0 {
		fmt.Fprintf(f.w, " (%d failed)", placeholders)
	}
	fmt.Fprintln(f.w)
	fmt.Fprintf(f.w, "Scanned:     %d\n", scanned)
	fmt.Fprintf(f.w, "Scored:      %d\n", scored)
	fmt.Fprintln(f.w)

	f.extensionBreakdown(byExt)
	if scored > 0 {
		f.priorityBreakdown(byPriority)
	}
	f.fileList(m)
}

func (f *Formatter) extensionBreakdown(byExt map[string]int) {
	type extCount struct {
		ext   string
		count int
	}
	counts := make([]extCount, 0, len(byExt))
	for ext, n := range byExt {
		counts = append(counts, extCount{ext, n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].ext < counts[j].ext
	})

	fmt.Fprintln(f.w, "Extensions:")
	for _, c := range counts {
		fmt.Fprintf(f.w, "  %-10s %d\n", c.ext, c.count)
	}
	fmt.Fprintln(f.w)
}

func (f *Formatter) priorityBreakdown(byPriority map[string]int) {
	fmt.Fprintln(f.w, "Priorities:")
	for _, p := range []string{
		manifest.PriorityCritical, manifest.PriorityHigh, manifest.PriorityMedium,
		manifest.PriorityLow, manifest.PriorityInfo,
	} {
		if n := byPriority[p]; n > 0 {
			fmt.Fprintf(f.w, "  %-10s %d\n", p, n)
		}
	}
	fmt.Fprintln(f.w)
}

func (f *Formatter) fileList(m *manifest.Manifest) {
	n := len(m.Files)
	limit := n
	if limit > fileListLimit {
		limit = fileListLimit
	}
	fmt.Fprintln(f.w, "Files:")
	for i := 0; i < limit; i++ {
		e := &m.Files[i]
		line := fmt.Sprintf("  %-50s %8s", e.Path, humanize.Bytes(uint64(e.Size)))
		if e.Category != "" {
			line += "  " + e.Category
		}
		if e.RiskAssessment != nil {
			line += fmt.Sprintf("  %s (%.2f)", e.RiskAssessment.Priority, e.RiskAssessment.RiskScore)
		}
		fmt.Fprintln(f.w, line)
	}
	if n > limit {
		fmt.Fprintf(f.w, "  ... and %d more\n", n-limit)
	}
}

// File prints everything known about one entry.
func (f *Formatter) File(e *manifest.FileEntry) {
	fmt.Fprintf(f.w, "Path:       %s\n", e.Path)
	fmt.Fprintf(f.w, "Blob:       %s\n", e.BlobID)
	fmt.Fprintf(f.w, "Size:       %s\n", humanize.Bytes(uint64(e.Size)))
	fmt.Fprintf(f.w, "Extension:  %s\n", e.Extension)

	if e.Classified() {
		fmt.Fprintln(f.w)
		fmt.Fprintf(f.w, "Purpose:    %s\n", e.Purpose)
		fmt.Fprintf(f.w, "Category:   %s\n", e.Category)
		if e.Confidence != nil {
			fmt.Fprintf(f.w, "Confidence: %.2f\n", *e.Confidence)
		}
		fmt.Fprintf(f.w, "Relevance:  %s\n", e.SecurityRelevance)
		fmt.Fprintf(f.w, "Reasoning:  %s\n", e.Reasoning)
		fmt.Fprintf(f.w, "Provider:   %s (%s)\n", e.Provider, e.Model)
	}

	if ts := e.TokenStats; ts != nil {
		fmt.Fprintln(f.w)
		fmt.Fprintf(f.w, "Tokens:     %s prompt + %s response = %s",
			humanize.Comma(int64(ts.PromptTokens)),
			humanize.Comma(int64(ts.EstimatedResponseTokens)),
			humanize.Comma(int64(ts.TotalTokens)))
		if ts.Approximate {
			fmt.Fprint(f.w, " (approximate)")
		}
		fmt.Fprintln(f.w)
		fmt.Fprintf(f.w, "Est. cost:  $%.6f\n", ts.EstimatedCost)
	}

	if e.Scanned() {
		fmt.Fprintln(f.w)
		findings := e.Findings()
		if len(findings) == 0 {
			fmt.Fprintln(f.w, "Findings:   none")
		} else {
			fmt.Fprintf(f.w, "Findings:   %d\n", len(findings))
			for _, finding := range findings {
				fmt.Fprintf(f.w, "  [%s] %s %s L%d-%d: %s\n",
					finding.Severity, finding.ScannerName, finding.RuleID,
					finding.LineStart, finding.LineEnd, finding.Message)
			}
		}
	}

	if ra := e.RiskAssessment; ra != nil {
		fmt.Fprintln(f.w)
		fmt.Fprintf(f.w, "Risk score: %.2f (%s, SLA %dh)\n", ra.RiskScore, ra.Priority, ra.SLAHours)
		fmt.Fprintf(f.w, "Reasoning:  %s\n", ra.Reasoning)
	}
}
