package phase

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/codesentinel/codesentinel-go/internal/analyzer"
	"github.com/codesentinel/codesentinel-go/internal/config"
	"github.com/codesentinel/codesentinel-go/internal/errors"
	"github.com/codesentinel/codesentinel-go/internal/llm"
	"github.com/codesentinel/codesentinel-go/internal/manifest"
	"github.com/codesentinel/codesentinel-go/internal/reposource"
	"github.com/codesentinel/codesentinel-go/internal/risk"
	"github.com/codesentinel/codesentinel-go/internal/scanner"
	"github.com/codesentinel/codesentinel-go/internal/tokens"
	"github.com/sirupsen/logrus"
)

// Options select what a pipeline run does.
type Options struct {
	ManifestPath string
	Phases       []Phase

	// Provider overrides the configured default for the classify phase.
	Provider string

	// Scanners restricts the scan phase to named tools. Empty means all
	// enabled scanners.
	Scanners []string

	// SkipCostPreview disables the paid-run confirmation in the classify
	// phase.
	SkipCostPreview bool

	// ConfirmPreview is asked before spending money on classification.
	// A nil callback proceeds unconditionally.
	ConfirmPreview func(*analyzer.Preview) bool

	// TokenReport also writes the standalone token analysis document
	// during the token phase.
	TokenReport bool
}

// Result reports what a run did.
type Result struct {
	Manifest     *manifest.Manifest
	ManifestPath string
	Ran          []Phase

	Classify *analyzer.Stats
	Scan     *scanner.Stats

	// PreviewDeclined is set when the user rejected the cost preview;
	// the classify phase (and later phases) did not run.
	PreviewDeclined bool
}

// Controller executes enrichment phases against one manifest. Each phase
// reads the manifest, enriches it, and saves atomically, so any prefix of
// phases leaves a usable document behind.
type Controller struct {
	source reposource.Source
	cfg    *config.Config
	store  *manifest.Store
	log    *logrus.Logger
	logger *logrus.Entry
}

// NewController builds a phase controller over a source.
func NewController(source reposource.Source, cfg *config.Config, store *manifest.Store, logger *logrus.Logger) *Controller {
	return &Controller{
		source: source,
		cfg:    cfg,
		store:  store,
		log:    logger,
		logger: logger.WithField("component", "phase"),
	}
}

// Run executes the selected phases in pipeline order.
func (c *Controller) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.ManifestPath == "" {
		opts.ManifestPath = c.cfg.ManifestPath()
	}
	if len(opts.Phases) == 0 {
		opts.Phases = All()
	}

	m, err := c.loadOrInit(ctx, opts)
	if err != nil {
		return nil, err
	}

	result := &Result{Manifest: m, ManifestPath: opts.ManifestPath}
	for _, p := range opts.Phases {
		if err := ctx.Err(); err != nil {
			return result, errors.Wrap(err, errors.KindCancelled, "run interrupted")
		}
		c.logger.WithField("phase", string(p)).Info("phase started")
		start := time.Now()

		switch p {
		case Inventory:
			err = c.runInventory(ctx, m, opts.ManifestPath)
		case Tokens:
			err = c.runTokens(ctx, m, opts)
		case Classify:
			err = c.runClassify(ctx, m, opts, result)
		case Scan:
			err = c.runScan(ctx, m, opts, result)
		}
		if err != nil {
			return result, err
		}
		if result.PreviewDeclined {
			return result, nil
		}
		result.Ran = append(result.Ran, p)
		c.logger.WithFields(logrus.Fields{
			"phase":   string(p),
			"elapsed": time.Since(start).Round(time.Millisecond),
		}).Info("phase complete")
	}
	return result, nil
}

// loadOrInit loads the manifest, or creates one when the run starts with
// the inventory phase. A manifest pinned to a different commit than the
// current head fails every phase as stale rather than silently mixing
// revisions.
func (c *Controller) loadOrInit(ctx context.Context, opts Options) (*manifest.Manifest, error) {
	m, err := c.store.Load(opts.ManifestPath)
	switch {
	case err == nil:
		_, sha, rerr := c.source.Resolve(ctx)
		if rerr != nil {
			return nil, rerr
		}
		if sha != m.Repository.CommitSHA {
			return nil, errors.Newf(errors.KindStaleManifest,
				"manifest pinned to %s but %s is now at %s; delete %s to re-analyze",
				short(m.Repository.CommitSHA), m.Repository.DefaultBranch, short(sha), opts.ManifestPath)
		}
		return m, nil
	case err == manifest.ErrNotFound:
		if opts.Phases[0] != Inventory {
			return nil, errors.Newf(errors.KindConfigInvalid,
				"no manifest at %s; run the inventory phase first", opts.ManifestPath)
		}
		branch, sha, err := c.source.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		return manifest.New(c.source.URL(), branch, sha, time.Now()), nil
	default:
		return nil, err
	}
}

// runInventory lists every blob at the pinned commit and merges the
// listing into the manifest. Existing enrichment survives; entries for
// paths no longer present are retained.
func (c *Controller) runInventory(ctx context.Context, m *manifest.Manifest, manifestPath string) error {
	files, err := c.source.ListFiles(ctx, m.Repository.CommitSHA)
	if err != nil {
		return err
	}

	updates := make([]manifest.FileEntry, 0, len(files))
	for _, f := range files {
		updates = append(updates, manifest.FileEntry{
			Path:      f.Path,
			BlobID:    f.BlobID,
			Size:      f.Size,
			Extension: strings.ToLower(path.Ext(f.Path)),
		})
	}
	manifest.Merge(m, updates)

	c.logger.WithField("files", len(files)).Info("inventory recorded")
	return c.store.Save(manifestPath, m)
}

// runTokens attaches token statistics to every analyzable entry that
// lacks them, pricing against the active provider.
func (c *Controller) runTokens(ctx context.Context, m *manifest.Manifest, opts Options) error {
	providerName := c.providerName(opts)
	acct := tokens.NewAccountant(tokens.NewEncoder(c.log), c.cfg.Provider(providerName))

	counted := 0
	for i := range m.Files {
		entry := &m.Files[i]
		if entry.TokenStats != nil || !c.cfg.Analysis.Analyzable(entry.Extension, entry.Size) {
			continue
		}
		if err := ctx.Err(); err != nil {
			c.checkpoint(m, opts.ManifestPath)
			return errors.Wrap(err, errors.KindCancelled, "token accounting interrupted")
		}
		content, err := c.source.FetchBlob(ctx, entry.BlobID)
		if err != nil {
			c.checkpoint(m, opts.ManifestPath)
			return err
		}
		ts := acct.Analyze(entry.Path, entry.Extension, content)
		entry.TokenStats = &ts
		counted++
	}
	c.logger.WithField("files", counted).Info("token accounting complete")

	if err := c.store.Save(opts.ManifestPath, m); err != nil {
		return err
	}
	if opts.TokenReport {
		pc := c.cfg.Provider(providerName)
		report := tokens.BuildReport(m, providerName, pc.Model, pc.InputRatePer1K, pc.OutputRatePer1K)
		reportPath := c.cfg.TokenAnalysisPath(opts.ManifestPath)
		if err := report.Save(reportPath); err != nil {
			return err
		}
		c.logger.WithField("path", reportPath).Info("token report written")
	}
	return nil
}

// runClassify builds the provider pair and drives the analyzer, after an
// optional cost preview gate.
func (c *Controller) runClassify(ctx context.Context, m *manifest.Manifest, opts Options, result *Result) error {
	providerName := c.providerName(opts)
	primary, err := llm.New(providerName, c.cfg, c.log)
	if err != nil {
		return err
	}
	var secondary llm.Provider
	if providerName != "bedrock" {
		if s, err := llm.New("bedrock", c.cfg, c.log); err == nil {
			secondary = s
		} else {
			c.logger.WithError(err).Debug("no fallback provider")
		}
	}

	a := analyzer.New(c.source, primary, secondary, c.cfg, c.store, c.log)

	if !opts.SkipCostPreview && opts.ConfirmPreview != nil {
		acct := tokens.NewAccountant(tokens.NewEncoder(c.log), c.cfg.Provider(providerName))
		preview, err := a.Preview(ctx, m, acct)
		if err != nil {
			return err
		}
		if preview.CandidateFiles > 0 && !opts.ConfirmPreview(preview) {
			c.logger.Info("run declined at cost preview")
			result.PreviewDeclined = true
			return nil
		}
	}

	stats, err := a.Run(ctx, m, opts.ManifestPath)
	result.Classify = stats
	return err
}

// runScan drives the scanners and then scores every entry. Scoring runs
// even for clean or unscanned files so the manifest always carries a
// complete risk picture after phase 3.
func (c *Controller) runScan(ctx context.Context, m *manifest.Manifest, opts Options, result *Result) error {
	runner := scanner.NewRunner(c.source, c.cfg, c.store, c.log)
	stats, err := runner.Run(ctx, m, opts.ManifestPath, opts.Scanners)
	result.Scan = stats
	if err != nil {
		return err
	}

	scorer := risk.NewScorer(c.cfg.RiskScoring)
	for i := range m.Files {
		assessment := scorer.Score(&m.Files[i])
		m.Files[i].RiskAssessment = &assessment
	}
	c.logger.WithField("files", len(m.Files)).Info("risk scoring complete")
	return c.store.Save(opts.ManifestPath, m)
}

func (c *Controller) providerName(opts Options) string {
	if opts.Provider != "" {
		return opts.Provider
	}
	return c.cfg.LLM.DefaultProvider
}

func (c *Controller) checkpoint(m *manifest.Manifest, manifestPath string) {
	if err := c.store.Save(manifestPath, m); err != nil {
		c.logger.WithError(err).Error("checkpoint save failed")
	}
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
