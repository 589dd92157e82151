package scanner

import (
	"context"
	"os"
	"path/filepath"

	"github.com/codesentinel/codesentinel-go/internal/config"
	"github.com/codesentinel/codesentinel-go/internal/errors"
	"github.com/codesentinel/codesentinel-go/internal/manifest"
	"github.com/codesentinel/codesentinel-go/internal/reposource"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Stats summarizes one scanning run.
type Stats struct {
	ScannersRun       []string
	ScannersFailed    []string
	TotalFindings     int
	FilesWithFindings int
}

// Runner clones the pinned revision into a scratch directory, drives each
// enabled scanner over it sequentially, and merges normalized findings
// into the manifest with a checkpoint after every scanner.
type Runner struct {
	source reposource.Source
	cfg    *config.Config
	store  *manifest.Store
	logger *logrus.Entry

	scanners map[string]Scanner
}

// NewRunner builds a runner with the built-in scanner set.
func NewRunner(source reposource.Source, cfg *config.Config, store *manifest.Store, logger *logrus.Logger) *Runner {
	return &Runner{
		source: source,
		cfg:    cfg,
		store:  store,
		logger: logger.WithField("component", "scanner"),
		scanners: map[string]Scanner{
			"semgrep": NewSemgrepScanner(logger),
			"bandit":  NewBanditScanner(logger),
		},
	}
}

// Names lists the scanners the runner knows how to drive.
func (r *Runner) Names() []string { return []string{"semgrep", "bandit"} }

// Check verifies one scanner's readiness, installing it first when
// auto_install is on.
func (r *Runner) Check(ctx context.Context, name string) error {
	s, ok := r.scanners[name]
	if !ok {
		return errors.Newf(errors.KindConfigInvalid, "unknown scanner %q", name)
	}
	err := s.Available(ctx)
	if err != nil && r.cfg.VulnerabilityScanning.AutoInstall {
		if installErr := s.Install(ctx); installErr != nil {
			return installErr
		}
		err = s.Available(ctx)
	}
	return err
}

// Run scans the manifest's pinned revision with the requested scanners
// (all enabled ones when requested is empty). Files covered by a
// successful scanner are marked scanned even with zero findings. The run
// fails with a scanner-unavailable error only when no requested scanner
// can start.
func (r *Runner) Run(ctx context.Context, m *manifest.Manifest, manifestPath string, requested []string) (*Stats, error) {
	names := requested
	if len(names) == 0 {
		for _, name := range r.Names() {
			if sc, ok := r.cfg.VulnerabilityScanning.Scanners[name]; ok && sc.Enabled {
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 {
		return nil, errors.New(errors.KindConfigInvalid, "no scanners enabled")
	}

	stats := &Stats{}
	var ready []string
	for _, name := range names {
		if err := r.Check(ctx, name); err != nil {
			r.logger.WithError(err).WithField("scanner", name).Warn("scanner unavailable")
			stats.ScannersFailed = append(stats.ScannersFailed, name)
			continue
		}
		ready = append(ready, name)
	}
	if len(ready) == 0 {
		return stats, errors.Newf(errors.KindScannerUnavailable, "no requested scanner is available: %v", names)
	}

	scratchDir := filepath.Join(os.TempDir(), "sentinel-scan-"+uuid.NewString())
	defer os.RemoveAll(scratchDir)

	r.logger.WithFields(logrus.Fields{
		"commit": m.Repository.CommitSHA,
		"dir":    scratchDir,
	}).Info("cloning for scan")
	if err := r.source.Clone(ctx, m.Repository.CommitSHA, scratchDir); err != nil {
		return stats, err
	}

	for _, name := range ready {
		if err := ctx.Err(); err != nil {
			r.checkpoint(m, manifestPath)
			return stats, errors.Wrap(err, errors.KindCancelled, "scan interrupted")
		}

		scanCfg := r.cfg.VulnerabilityScanning.Scanners[name]
		scanCtx := ctx
		var cancel context.CancelFunc
		if scanCfg.Timeout > 0 {
			scanCtx, cancel = context.WithTimeout(ctx, scanCfg.Timeout)
		}
		findings, err := r.scanners[name].Scan(scanCtx, scratchDir, scanCfg)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			if ctx.Err() != nil {
				r.checkpoint(m, manifestPath)
				return stats, errors.Wrap(err, errors.KindCancelled, "scan interrupted")
			}
			r.logger.WithError(err).WithField("scanner", name).Warn("scanner failed, continuing")
			stats.ScannersFailed = append(stats.ScannersFailed, name)
			continue
		}

		r.merge(m, findings, scanCfg, stats)
		stats.ScannersRun = append(stats.ScannersRun, name)

		if err := r.store.Save(manifestPath, m); err != nil {
			return stats, err
		}
		r.logger.WithField("scanner", name).Debug("checkpoint written")
	}

	if len(stats.ScannersRun) == 0 {
		return stats, errors.Newf(errors.KindScannerUnavailable, "all scanners failed: %v", stats.ScannersFailed)
	}

	r.logger.WithFields(logrus.Fields{
		"scanners": stats.ScannersRun,
		"findings": stats.TotalFindings,
	}).Info("scan complete")
	return stats, nil
}

// merge attaches one scanner's findings to the manifest. Only entries
// inside the analysis whitelist participate: findings for anything else
// are dropped, and those entries stay unscanned. Every whitelisted entry
// the scanner covered gets a non-nil findings list, so a clean file is
// distinguishable from an unscanned one. Per-file findings are capped.
func (r *Runner) merge(m *manifest.Manifest, findings map[string][]manifest.Finding, scanCfg config.ScannerConfig, stats *Stats) {
	maxPerFile := r.cfg.VulnerabilityScanning.MaxFindingsPerFile
	for i := range m.Files {
		entry := &m.Files[i]
		if !r.cfg.Analysis.Analyzable(entry.Extension, entry.Size) {
			continue
		}
		if excluded(entry.Path, scanCfg.ExcludePatterns) {
			continue
		}
		if entry.Vulnerabilities == nil {
			empty := []manifest.Finding{}
			entry.Vulnerabilities = &empty
		}
		newFindings, ok := findings[entry.Path]
		if !ok {
			continue
		}
		merged := append(*entry.Vulnerabilities, newFindings...)
		if maxPerFile > 0 && len(merged) > maxPerFile {
			r.logger.WithFields(logrus.Fields{
				"path":  entry.Path,
				"total": len(merged),
				"cap":   maxPerFile,
			}).Warn("findings capped")
			merged = merged[:maxPerFile]
		}
		if len(*entry.Vulnerabilities) == 0 && len(merged) > 0 {
			stats.FilesWithFindings++
		}
		stats.TotalFindings += len(newFindings)
		entry.Vulnerabilities = &merged
	}
}

func (r *Runner) checkpoint(m *manifest.Manifest, manifestPath string) {
	if err := r.store.Save(manifestPath, m); err != nil {
		r.logger.WithError(err).Error("checkpoint save failed")
	}
}
