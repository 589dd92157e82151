package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/codesentinel/codesentinel-go/internal/config"
	"github.com/codesentinel/codesentinel-go/internal/errors"
	"github.com/codesentinel/codesentinel-go/internal/manifest"
	"github.com/sirupsen/logrus"
)

// BanditScanner runs bandit over Python sources and parses its JSON
// report.
type BanditScanner struct {
	logger *logrus.Entry
}

func NewBanditScanner(logger *logrus.Logger) *BanditScanner {
	return &BanditScanner{logger: logger.WithFields(logrus.Fields{"component": "scanner", "tool": "bandit"})}
}

func (b *BanditScanner) Name() string { return "bandit" }

func (b *BanditScanner) Available(ctx context.Context) error {
	if _, err := exec.LookPath("bandit"); err != nil {
		return errors.Wrap(err, errors.KindScannerUnavailable, "bandit not found on PATH")
	}
	out, err := exec.CommandContext(ctx, "bandit", "--version").Output()
	if err != nil {
		return errors.Wrap(err, errors.KindScannerUnavailable, "bandit --version failed")
	}
	version := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	if !versionAtLeast(version, 1, 7) {
		return errors.Newf(errors.KindScannerUnavailable, "%s is below the 1.7 minimum", version)
	}
	b.logger.WithField("version", version).Debug("bandit available")
	return nil
}

func (b *BanditScanner) Install(ctx context.Context) error {
	b.logger.Info("installing bandit")
	cmd := exec.CommandContext(ctx, "python3", "-m", "pip", "install", "--user", "--quiet", "bandit")
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrap(fmt.Errorf("%v: %s", err, strings.TrimSpace(string(out))),
			errors.KindScannerUnavailable, "install bandit")
	}
	return nil
}

// banditReport is the subset of bandit's JSON output we read.
type banditReport struct {
	Results []struct {
		Filename        string `json:"filename"`
		TestID          string `json:"test_id"`
		TestName        string `json:"test_name"`
		IssueSeverity   string `json:"issue_severity"`
		IssueConfidence string `json:"issue_confidence"`
		IssueText       string `json:"issue_text"`
		LineNumber      int    `json:"line_number"`
		LineRange       []int  `json:"line_range"`
		MoreInfo        string `json:"more_info"`
		IssueCWE        struct {
			ID int `json:"id"`
		} `json:"issue_cwe"`
	} `json:"results"`
}

// Scan runs bandit recursively over repoDir. Exit code 1 signals
// findings, not failure.
func (b *BanditScanner) Scan(ctx context.Context, repoDir string, cfg config.ScannerConfig) (map[string][]manifest.Finding, error) {
	args := []string{"-r", "-f", "json", "-q"}
	if cfg.SeverityLevel != "" {
		args = append(args, "--severity-level", cfg.SeverityLevel)
	}
	if cfg.ConfidenceLevel != "" {
		args = append(args, "--confidence-level", cfg.ConfidenceLevel)
	}
	if len(cfg.ExcludePatterns) > 0 {
		args = append(args, "-x", strings.Join(cfg.ExcludePatterns, ","))
	}
	args = append(args, repoDir)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "bandit", args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, errors.New(errors.KindScannerTimeout, "bandit timed out")
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() != 1 {
			return nil, errors.Wrap(fmt.Errorf("%v: %s", err, strings.TrimSpace(stderr.String())),
				errors.KindScannerUnavailable, "bandit failed")
		}
	}

	var report banditReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		return nil, errors.Wrap(err, errors.KindScannerUnavailable, "parse bandit output")
	}

	findings := make(map[string][]manifest.Finding)
	for _, r := range report.Results {
		rel, err := filepath.Rel(repoDir, r.Filename)
		if err != nil {
			rel = r.Filename
		}
		path := filepath.ToSlash(rel)
		lineEnd := r.LineNumber
		if n := len(r.LineRange); n > 0 {
			lineEnd = r.LineRange[n-1]
		}
		cwe := ""
		if r.IssueCWE.ID != 0 {
			cwe = fmt.Sprintf("CWE-%d", r.IssueCWE.ID)
		}
		var refs []string
		if r.MoreInfo != "" {
			refs = []string{r.MoreInfo}
		}
		findings[path] = append(findings[path], manifest.Finding{
			ScannerName: "bandit",
			RuleID:      r.TestID,
			Severity:    normalizeBanditSeverity(r.IssueSeverity),
			Message:     r.IssueText,
			LineStart:   r.LineNumber,
			LineEnd:     lineEnd,
			Confidence:  strings.ToLower(r.IssueConfidence),
			CWE:         cwe,
			References:  refs,
		})
	}
	b.logger.WithField("findings", len(report.Results)).Info("bandit scan complete")
	return findings, nil
}

// normalizeBanditSeverity maps bandit's HIGH/MEDIUM/LOW onto the shared
// scale. Bandit never emits critical.
func normalizeBanditSeverity(severity string) string {
	switch strings.ToUpper(severity) {
	case "HIGH":
		return manifest.SeverityHigh
	case "MEDIUM":
		return manifest.SeverityMedium
	case "LOW":
		return manifest.SeverityLow
	default:
		return manifest.SeverityInfo
	}
}
