package scanner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/codesentinel/codesentinel-go/internal/config"
	"github.com/codesentinel/codesentinel-go/internal/manifest"
)

// Scanner is one external vulnerability scanning tool driven as a
// subprocess. Scan returns normalized findings keyed by repo-relative
// path.
type Scanner interface {
	Name() string
	Available(ctx context.Context) error
	Install(ctx context.Context) error
	Scan(ctx context.Context, repoDir string, cfg config.ScannerConfig) (map[string][]manifest.Finding, error)
}

// severityRank orders normalized severities for threshold filtering.
var severityRank = map[string]int{
	manifest.SeverityInfo:     0,
	manifest.SeverityLow:      1,
	manifest.SeverityMedium:   2,
	manifest.SeverityHigh:     3,
	manifest.SeverityCritical: 4,
}

// meetsSeverity reports whether severity is at or above the configured
// floor. An empty floor admits everything.
func meetsSeverity(severity, floor string) bool {
	if floor == "" {
		return true
	}
	return severityRank[severity] >= severityRank[strings.ToLower(floor)]
}

// parseVersion extracts the leading major.minor pair from a version
// string such as "1.45.0" or "bandit 1.7.5".
func parseVersion(s string) (major, minor int, ok bool) {
	for _, field := range strings.Fields(s) {
		n, err := fmt.Sscanf(field, "%d.%d", &major, &minor)
		if err == nil && n == 2 {
			return major, minor, true
		}
	}
	return 0, 0, false
}

// versionAtLeast reports whether a version string meets a major.minor
// floor. Unparseable versions pass; the tool run itself will surface real
// incompatibilities.
func versionAtLeast(s string, major, minor int) bool {
	gotMajor, gotMinor, ok := parseVersion(s)
	if !ok {
		return true
	}
	if gotMajor != major {
		return gotMajor > major
	}
	return gotMinor >= minor
}

// excluded reports whether a repo-relative path matches any exclude
// pattern. Directory patterns end with "/" and match by prefix or path
// segment; the rest match the base name with shell globbing.
func excluded(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.HasSuffix(pattern, "/") {
			dir := strings.TrimSuffix(pattern, "/")
			if strings.HasPrefix(path, dir+"/") || strings.Contains(path, "/"+dir+"/") {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(path)); ok {
			return true
		}
	}
	return false
}
