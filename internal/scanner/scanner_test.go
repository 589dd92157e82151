package scanner

import (
	"encoding/json"
	"testing"

	"github.com/codesentinel/codesentinel-go/internal/config"
	"github.com/codesentinel/codesentinel-go/internal/manifest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExcluded(t *testing.T) {
	patterns := []string{"tests/", "node_modules/", "*.min.js"}

	assert.True(t, excluded("tests/test_auth.py", patterns))
	assert.True(t, excluded("app/tests/test_auth.py", patterns))
	assert.True(t, excluded("static/app.min.js", patterns))
	assert.True(t, excluded("node_modules/lodash/index.js", patterns))
	assert.False(t, excluded("app/auth.py", patterns))
	assert.False(t, excluded("testscript.py", patterns))
	assert.False(t, excluded("app/main.js", patterns))
}

func TestMeetsSeverity(t *testing.T) {
	assert.True(t, meetsSeverity(manifest.SeverityHigh, ""))
	assert.True(t, meetsSeverity(manifest.SeverityHigh, "medium"))
	assert.True(t, meetsSeverity(manifest.SeverityMedium, "medium"))
	assert.False(t, meetsSeverity(manifest.SeverityLow, "medium"))
	assert.False(t, meetsSeverity(manifest.SeverityInfo, "low"))
}

func TestNormalizeSemgrepSeverity(t *testing.T) {
	assert.Equal(t, manifest.SeverityHigh, normalizeSemgrepSeverity("ERROR"))
	assert.Equal(t, manifest.SeverityMedium, normalizeSemgrepSeverity("WARNING"))
	assert.Equal(t, manifest.SeverityInfo, normalizeSemgrepSeverity("INFO"))
	assert.Equal(t, manifest.SeverityLow, normalizeSemgrepSeverity("WEIRD"))
}

func TestNormalizeBanditSeverity(t *testing.T) {
	assert.Equal(t, manifest.SeverityHigh, normalizeBanditSeverity("HIGH"))
	assert.Equal(t, manifest.SeverityMedium, normalizeBanditSeverity("MEDIUM"))
	assert.Equal(t, manifest.SeverityLow, normalizeBanditSeverity("LOW"))
	assert.Equal(t, manifest.SeverityInfo, normalizeBanditSeverity("UNDEFINED"))
}

func TestVersionAtLeast(t *testing.T) {
	assert.True(t, versionAtLeast("1.45.0", 1, 0))
	assert.True(t, versionAtLeast("2.0.1", 1, 7))
	assert.True(t, versionAtLeast("bandit 1.7.5", 1, 7))
	assert.False(t, versionAtLeast("0.9.2", 1, 0))
	assert.False(t, versionAtLeast("bandit 1.6.0", 1, 7))
	// Unparseable output is not treated as too old.
	assert.True(t, versionAtLeast("development build", 1, 0))
}

func TestJSONStringsAcceptsStringOrArray(t *testing.T) {
	var single jsonStrings
	require.NoError(t, json.Unmarshal([]byte(`"CWE-89"`), &single))
	assert.Equal(t, jsonStrings{"CWE-89"}, single)

	var many jsonStrings
	require.NoError(t, json.Unmarshal([]byte(`["CWE-89","CWE-78"]`), &many))
	assert.Equal(t, jsonStrings{"CWE-89", "CWE-78"}, many)
}

func TestParseSemgrepReport(t *testing.T) {
	raw := `{
	  "results": [{
	    "check_id": "python.lang.security.audit.dangerous-subprocess-use",
	    "path": "/tmp/scan/app/run.py",
	    "start": {"line": 10},
	    "end": {"line": 12},
	    "extra": {
	      "severity": "ERROR",
	      "message": "Detected subprocess with shell=True",
	      "fix": "use shell=False",
	      "metadata": {
	        "cwe": ["CWE-78: OS Command Injection"],
	        "references": ["https://owasp.org/A03"],
	        "confidence": "HIGH"
	      }
	    }
	  }]
	}`
	var report semgrepReport
	require.NoError(t, json.Unmarshal([]byte(raw), &report))
	require.Len(t, report.Results, 1)

	r := report.Results[0]
	assert.Equal(t, "python.lang.security.audit.dangerous-subprocess-use", r.CheckID)
	assert.Equal(t, 10, r.Start.Line)
	assert.Equal(t, 12, r.End.Line)
	assert.Equal(t, "ERROR", r.Extra.Severity)
	assert.Equal(t, jsonStrings{"CWE-78: OS Command Injection"}, r.Extra.Metadata.CWE)
}

func TestParseBanditReport(t *testing.T) {
	raw := `{
	  "results": [{
	    "filename": "/tmp/scan/app/db.py",
	    "test_id": "B608",
	    "test_name": "hardcoded_sql_expressions",
	    "issue_severity": "MEDIUM",
	    "issue_confidence": "LOW",
	    "issue_text": "Possible SQL injection vector",
	    "line_number": 42,
	    "line_range": [42, 43],
	    "issue_cwe": {"id": 89},
	    "more_info": "https://bandit.readthedocs.io/plugins/b608"
	  }]
	}`
	var report banditReport
	require.NoError(t, json.Unmarshal([]byte(raw), &report))
	require.Len(t, report.Results, 1)

	r := report.Results[0]
	assert.Equal(t, "B608", r.TestID)
	assert.Equal(t, 89, r.IssueCWE.ID)
	assert.Equal(t, []int{42, 43}, r.LineRange)
}

func TestMergeMarksCoveredFilesScanned(t *testing.T) {
	cfg := config.Default()
	runner := NewRunner(nil, cfg, manifest.NewStore(), logrus.New())

	m := &manifest.Manifest{Files: []manifest.FileEntry{
		{Path: "app/auth.py", Extension: ".py"},
		{Path: "app/clean.py", Extension: ".py"},
		{Path: "tests/test_auth.py", Extension: ".py"},
		{Path: "README.md", Extension: ".md"},
		{Path: "app/huge.py", Extension: ".py", Size: cfg.Analysis.MaxFileSize + 1},
	}}
	findings := map[string][]manifest.Finding{
		"app/auth.py": {{ScannerName: "semgrep", RuleID: "r1", Severity: manifest.SeverityHigh}},
		"README.md":   {{ScannerName: "semgrep", RuleID: "r2", Severity: manifest.SeverityLow}},
	}
	stats := &Stats{}
	runner.merge(m, findings, cfg.VulnerabilityScanning.Scanners["semgrep"], stats)

	// File with findings.
	require.NotNil(t, m.Files[0].Vulnerabilities)
	assert.Len(t, *m.Files[0].Vulnerabilities, 1)

	// Covered but clean: present, empty.
	require.NotNil(t, m.Files[1].Vulnerabilities)
	assert.Empty(t, *m.Files[1].Vulnerabilities)

	// Excluded by pattern: still unscanned.
	assert.Nil(t, m.Files[2].Vulnerabilities)

	// Outside the analysis whitelist: unscanned, and its findings are
	// dropped rather than attached.
	assert.Nil(t, m.Files[3].Vulnerabilities)
	assert.Nil(t, m.Files[4].Vulnerabilities)

	assert.Equal(t, 1, stats.TotalFindings)
	assert.Equal(t, 1, stats.FilesWithFindings)
}

func TestMergeCapsFindingsPerFile(t *testing.T) {
	cfg := config.Default()
	cfg.VulnerabilityScanning.MaxFindingsPerFile = 2
	runner := NewRunner(nil, cfg, manifest.NewStore(), logrus.New())

	m := &manifest.Manifest{Files: []manifest.FileEntry{{Path: "app/big.py", Extension: ".py"}}}
	findings := map[string][]manifest.Finding{
		"app/big.py": {
			{RuleID: "r1"}, {RuleID: "r2"}, {RuleID: "r3"}, {RuleID: "r4"},
		},
	}
	runner.merge(m, findings, config.ScannerConfig{}, &Stats{})

	require.NotNil(t, m.Files[0].Vulnerabilities)
	assert.Len(t, *m.Files[0].Vulnerabilities, 2)
}

func TestMergeAccumulatesAcrossScanners(t *testing.T) {
	cfg := config.Default()
	runner := NewRunner(nil, cfg, manifest.NewStore(), logrus.New())

	m := &manifest.Manifest{Files: []manifest.FileEntry{{Path: "app/auth.py", Extension: ".py"}}}
	runner.merge(m, map[string][]manifest.Finding{
		"app/auth.py": {{ScannerName: "semgrep", RuleID: "s1"}},
	}, config.ScannerConfig{}, &Stats{})
	runner.merge(m, map[string][]manifest.Finding{
		"app/auth.py": {{ScannerName: "bandit", RuleID: "B608"}},
	}, config.ScannerConfig{}, &Stats{})

	require.NotNil(t, m.Files[0].Vulnerabilities)
	assert.Len(t, *m.Files[0].Vulnerabilities, 2)
}
