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

// SemgrepScanner runs semgrep with its registry ruleset and parses the
// native JSON report.
type SemgrepScanner struct {
	logger *logrus.Entry
}

func NewSemgrepScanner(logger *logrus.Logger) *SemgrepScanner {
	return &SemgrepScanner{logger: logger.WithFields(logrus.Fields{"component": "scanner", "tool": "semgrep"})}
}

func (s *SemgrepScanner) Name() string { return "semgrep" }

// Available checks that the semgrep binary is on PATH and answers a
// version probe.
func (s *SemgrepScanner) Available(ctx context.Context) error {
	if _, err := exec.LookPath("semgrep"); err != nil {
		return errors.Wrap(err, errors.KindScannerUnavailable, "semgrep not found on PATH")
	}
	out, err := exec.CommandContext(ctx, "semgrep", "--version").Output()
	if err != nil {
		return errors.Wrap(err, errors.KindScannerUnavailable, "semgrep --version failed")
	}
	version := strings.TrimSpace(string(out))
	if !versionAtLeast(version, 1, 0) {
		return errors.Newf(errors.KindScannerUnavailable, "semgrep %s is below the 1.0 minimum", version)
	}
	s.logger.WithField("version", version).Debug("semgrep available")
	return nil
}

// Install attempts a user-level pip install.
func (s *SemgrepScanner) Install(ctx context.Context) error {
	s.logger.Info("installing semgrep")
	cmd := exec.CommandContext(ctx, "python3", "-m", "pip", "install", "--user", "--quiet", "semgrep")
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrap(fmt.Errorf("%v: %s", err, strings.TrimSpace(string(out))),
			errors.KindScannerUnavailable, "install semgrep")
	}
	return nil
}

// semgrepReport is the subset of semgrep's JSON output we read.
type semgrepReport struct {
	Results []struct {
		CheckID string `json:"check_id"`
		Path    string `json:"path"`
		Start   struct {
			Line int `json:"line"`
		} `json:"start"`
		End struct {
			Line int `json:"line"`
		} `json:"end"`
		Extra struct {
			Severity string `json:"severity"`
			Message  string `json:"message"`
			Fix      string `json:"fix"`
			Metadata struct {
				CWE        jsonStrings `json:"cwe"`
				References jsonStrings `json:"references"`
				Confidence string      `json:"confidence"`
			} `json:"metadata"`
		} `json:"extra"`
	} `json:"results"`
}

// jsonStrings accepts a JSON string or array of strings.
type jsonStrings []string

func (j *jsonStrings) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*j = []string{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*j = many
	return nil
}

// Scan runs semgrep over repoDir and normalizes the report. Exit code 1
// means findings were produced, not failure.
func (s *SemgrepScanner) Scan(ctx context.Context, repoDir string, cfg config.ScannerConfig) (map[string][]manifest.Finding, error) {
	args := []string{"--config", "auto", "--json", "--quiet", "--metrics", "off"}
	for _, pattern := range cfg.ExcludePatterns {
		args = append(args, "--exclude", pattern)
	}
	args = append(args, repoDir)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "semgrep", args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, errors.New(errors.KindScannerTimeout, "semgrep timed out")
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() != 1 {
			return nil, errors.Wrap(fmt.Errorf("%v: %s", err, strings.TrimSpace(stderr.String())),
				errors.KindScannerUnavailable, "semgrep failed")
		}
	}

	var report semgrepReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		return nil, errors.Wrap(err, errors.KindScannerUnavailable, "parse semgrep output")
	}

	findings := make(map[string][]manifest.Finding)
	for _, r := range report.Results {
		severity := normalizeSemgrepSeverity(r.Extra.Severity)
		if !meetsSeverity(severity, cfg.SeverityLevel) {
			continue
		}
		rel, err := filepath.Rel(repoDir, r.Path)
		if err != nil {
			rel = r.Path
		}
		path := filepath.ToSlash(rel)
		findings[path] = append(findings[path], manifest.Finding{
			ScannerName:   "semgrep",
			RuleID:        r.CheckID,
			Severity:      severity,
			Message:       r.Extra.Message,
			LineStart:     r.Start.Line,
			LineEnd:       r.End.Line,
			Confidence:    strings.ToLower(r.Extra.Metadata.Confidence),
			CWE:           firstOrEmpty(r.Extra.Metadata.CWE),
			FixSuggestion: r.Extra.Fix,
			References:    r.Extra.Metadata.References,
		})
	}
	s.logger.WithField("findings", len(report.Results)).Info("semgrep scan complete")
	return findings, nil
}

// normalizeSemgrepSeverity maps semgrep's ERROR/WARNING/INFO onto the
// shared scale.
func normalizeSemgrepSeverity(severity string) string {
	switch strings.ToUpper(severity) {
	case "ERROR":
		return manifest.SeverityHigh
	case "WARNING":
		return manifest.SeverityMedium
	case "INFO":
		return manifest.SeverityInfo
	default:
		return manifest.SeverityLow
	}
}

func firstOrEmpty(xs []string) string {
	if len(xs) == 0 {
		return ""
	}
	return xs[0]
}
