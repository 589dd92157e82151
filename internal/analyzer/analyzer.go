package analyzer

import (
	"context"
	"strings"
	"time"

	"github.com/codesentinel/codesentinel-go/internal/config"
	"github.com/codesentinel/codesentinel-go/internal/errors"
	"github.com/codesentinel/codesentinel-go/internal/llm"
	"github.com/codesentinel/codesentinel-go/internal/manifest"
	"github.com/codesentinel/codesentinel-go/internal/reposource"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// throttleDelays is the per-file backoff schedule for throttled LLM calls.
var throttleDelays = []time.Duration{
	1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
}

// malformedAttempts is how many times a file is re-sent after the provider
// returns something that is not the expected JSON.
const malformedAttempts = 2

// Stats summarizes one classification run.
type Stats struct {
	Candidates   int
	Classified   int
	Placeholders int
	Skipped      int
}

// Analyzer drives the LLM classification phase. Files are processed by a
// bounded worker pool; results merge into the manifest in inventory order,
// with a checkpoint written after every batch.
type Analyzer struct {
	source       reposource.Source
	primary      llm.Provider
	secondary    llm.Provider
	providerName string
	cfg          *config.Config
	store        *manifest.Store
	logger       *logrus.Entry
}

// New builds an analyzer. secondary may be nil; when set it takes over
// files the primary provider permanently fails on.
func New(source reposource.Source, primary, secondary llm.Provider, cfg *config.Config, store *manifest.Store, logger *logrus.Logger) *Analyzer {
	return &Analyzer{
		source:       source,
		primary:      primary,
		secondary:    secondary,
		providerName: primary.Name(),
		cfg:          cfg,
		store:        store,
		logger:       logger.WithField("component", "analyzer"),
	}
}

// NewForPreview builds an analyzer that can only select candidates and
// project costs. No provider credentials are needed; Run must not be
// called on it.
func NewForPreview(source reposource.Source, providerName string, cfg *config.Config, logger *logrus.Logger) *Analyzer {
	return &Analyzer{
		source:       source,
		providerName: providerName,
		cfg:          cfg,
		logger:       logger.WithField("component", "analyzer"),
	}
}

// Candidates returns the manifest entries eligible for classification:
// matching extension, under the size cap, and not yet classified. Order
// follows the manifest.
func (a *Analyzer) Candidates(m *manifest.Manifest) []*manifest.FileEntry {
	var out []*manifest.FileEntry
	for i := range m.Files {
		f := &m.Files[i]
		if f.Classified() {
			continue
		}
		if !a.cfg.Analysis.Analyzable(f.Extension, f.Size) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Run classifies every candidate in m, saving a checkpoint to manifestPath
// after each worker batch. On cancellation the current batch drains, a
// final checkpoint is written, and a Cancelled error is returned.
func (a *Analyzer) Run(ctx context.Context, m *manifest.Manifest, manifestPath string) (*Stats, error) {
	candidates := a.Candidates(m)
	stats := &Stats{
		Candidates: len(candidates),
		Skipped:    len(m.Files) - len(candidates),
	}
	if len(candidates) == 0 {
		a.logger.Info("no files to classify")
		return stats, nil
	}

	workers := a.cfg.Analysis.BatchSize
	if workers <= 0 {
		workers = 4
	}
	a.logger.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"workers":    workers,
		"provider":   a.primary.Name(),
	}).Info("classification started")

	for start := 0; start < len(candidates); start += workers {
		if err := ctx.Err(); err != nil {
			if saveErr := a.store.Save(manifestPath, m); saveErr != nil {
				a.logger.WithError(saveErr).Error("checkpoint save failed")
			}
			return stats, errors.Wrap(err, errors.KindCancelled, "classification interrupted")
		}

		end := start + workers
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		results := make([]*llm.Classification, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, entry := range batch {
			i, entry := i, entry
			g.Go(func() error {
				cls, err := a.classifyFile(gctx, entry)
				if err != nil {
					return err
				}
				results[i] = cls
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			if saveErr := a.store.Save(manifestPath, m); saveErr != nil {
				a.logger.WithError(saveErr).Error("checkpoint save failed")
			}
			if ctx.Err() != nil {
				return stats, errors.Wrap(err, errors.KindCancelled, "classification interrupted")
			}
			return stats, err
		}

		for i, cls := range results {
			apply(batch[i], cls)
			if strings.HasPrefix(cls.Reasoning, "analysis_failed:") {
				stats.Placeholders++
			} else {
				stats.Classified++
			}
		}

		if err := a.store.Save(manifestPath, m); err != nil {
			return stats, err
		}
		a.logger.WithFields(logrus.Fields{
			"done":  end,
			"total": len(candidates),
		}).Debug("checkpoint written")
	}

	a.logger.WithFields(logrus.Fields{
		"classified":   stats.Classified,
		"placeholders": stats.Placeholders,
	}).Info("classification complete")
	return stats, nil
}

// classifyFile fetches a file's content and classifies it, falling back to
// the secondary provider when the primary is exhausted. Permanent per-file
// failures yield a placeholder rather than aborting the run; source
// failures and cancellation propagate.
func (a *Analyzer) classifyFile(ctx context.Context, entry *manifest.FileEntry) (*llm.Classification, error) {
	content, err := a.source.FetchBlob(ctx, entry.BlobID)
	if err != nil {
		return nil, err
	}

	cls, err := a.classifyWith(ctx, a.primary, entry, content)
	if err != nil && errors.IsKind(err, errors.KindProviderExhausted) && a.secondary != nil {
		a.logger.WithFields(logrus.Fields{
			"path":     entry.Path,
			"fallback": a.secondary.Name(),
		}).Warn("primary provider exhausted, trying fallback")
		cls, err = a.classifyWith(ctx, a.secondary, entry, content)
	}
	if err != nil {
		if ctx.Err() != nil || errors.IsKind(err, errors.KindCancelled) {
			return nil, errors.Wrap(err, errors.KindCancelled, "classification interrupted")
		}
		reason := failureReason(err)
		a.logger.WithError(err).WithField("path", entry.Path).Warn("classification failed, recording placeholder")
		return llm.Placeholder(a.primary.Name(), a.providerModel(a.primary), reason), nil
	}
	return cls, nil
}

// classifyWith runs one provider against one file: throttling retries on
// the fixed delay schedule, malformed replies get one re-send, everything
// else fails the attempt.
func (a *Analyzer) classifyWith(ctx context.Context, p llm.Provider, entry *manifest.FileEntry, content []byte) (*llm.Classification, error) {
	var lastErr error
	for attempt := 0; attempt < malformedAttempts; attempt++ {
		cls, err := a.classifyThrottled(ctx, p, entry, content)
		if err == nil {
			return cls, nil
		}
		lastErr = err
		if !errors.IsKind(err, errors.KindMalformedResponse) {
			return nil, err
		}
		a.logger.WithFields(logrus.Fields{
			"path":    entry.Path,
			"attempt": attempt + 1,
		}).Debug("malformed reply, retrying")
	}
	return nil, lastErr
}

func (a *Analyzer) classifyThrottled(ctx context.Context, p llm.Provider, entry *manifest.FileEntry, content []byte) (*llm.Classification, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		reqCtx := ctx
		var cancel context.CancelFunc
		if timeout := a.cfg.LLM.RequestTimeout; timeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		cls, err := p.Classify(reqCtx, entry.Path, entry.Extension, content)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return cls, nil
		}
		lastErr = err
		if !errors.IsKind(err, errors.KindRateLimited) {
			return nil, lastErr
		}
		// The throttle budget is spent: escalate so the caller can fall
		// back to the secondary provider.
		if attempt >= len(throttleDelays) {
			return nil, errors.Wrap(lastErr, errors.KindProviderExhausted, "throttle retries exhausted")
		}
		delay := throttleDelays[attempt]
		a.logger.WithFields(logrus.Fields{
			"path":  entry.Path,
			"delay": delay,
		}).Debug("provider throttled, backing off")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.KindCancelled, "classification interrupted")
		}
	}
}

// apply writes a classification onto the manifest entry in place, so merge
// order never changes.
func apply(entry *manifest.FileEntry, cls *llm.Classification) {
	confidence := cls.Confidence
	entry.Purpose = cls.Purpose
	entry.Category = cls.Category
	entry.Confidence = &confidence
	entry.SecurityRelevance = cls.SecurityRelevance
	entry.Reasoning = cls.Reasoning
	entry.Provider = cls.Provider
	entry.Model = cls.Model
}

func (a *Analyzer) providerModel(p llm.Provider) string {
	if pc := a.cfg.Provider(p.Name()); pc.Model != "" {
		return pc.Model
	}
	return ""
}

// failureReason condenses a terminal error into the short token stored in
// the placeholder reasoning field.
func failureReason(err error) string {
	switch {
	case errors.IsKind(err, errors.KindMalformedResponse):
		return "malformed_response"
	case errors.IsKind(err, errors.KindRateLimited):
		return "rate_limited"
	case errors.IsKind(err, errors.KindProviderExhausted):
		return "provider_exhausted"
	default:
		return "provider_error"
	}
}
