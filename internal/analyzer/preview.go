package analyzer

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/codesentinel/codesentinel-go/internal/manifest"
	"github.com/codesentinel/codesentinel-go/internal/tokens"
	"github.com/sirupsen/logrus"
)

// secondsPerRequest is the rough per-call latency used for the run-time
// estimate shown before a paid classification run.
const secondsPerRequest = 2.0

// Preview is a cost projection for a classification run, extrapolated
// from a small uniform sample of candidate files.
type Preview struct {
	CandidateFiles       int
	SampledFiles         int
	AvgTokensPerFile     float64
	EstimatedTotalTokens int
	EstimatedCost        float64
	CostLow              float64
	CostHigh             float64
	EstimatedDuration    time.Duration
	Provider             string
	Model                string
	Approximate          bool
}

// Preview draws up to cfg.Analysis.SampleSize candidates uniformly at
// random without replacement, counts their real prompt tokens, and
// extrapolates tokens and cost across all candidates. The low/high band
// spreads one sample standard deviation around the point estimate.
func (a *Analyzer) Preview(ctx context.Context, m *manifest.Manifest, acct *tokens.Accountant) (*Preview, error) {
	candidates := a.Candidates(m)
	pc := a.cfg.Provider(a.providerName)
	p := &Preview{
		CandidateFiles: len(candidates),
		Provider:       a.providerName,
		Model:          pc.Model,
	}
	if len(candidates) == 0 {
		return p, nil
	}

	k := a.cfg.Analysis.SampleSize
	if k <= 0 {
		k = 3
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	sampler := rand.New(rand.NewSource(time.Now().UnixNano()))

	var perFile []float64
	var perCost []float64
	for _, idx := range sampler.Perm(len(candidates))[:k] {
		entry := candidates[idx]
		content, err := a.source.FetchBlob(ctx, entry.BlobID)
		if err != nil {
			return nil, err
		}
		ts := acct.Analyze(entry.Path, entry.Extension, content)
		perFile = append(perFile, float64(ts.TotalTokens))
		perCost = append(perCost, ts.EstimatedCost)
		if ts.Approximate {
			p.Approximate = true
		}
	}

	meanTokens, _ := meanStddev(perFile)
	meanCost, stddevCost := meanStddev(perCost)

	n := float64(len(candidates))
	p.SampledFiles = k
	p.AvgTokensPerFile = meanTokens
	p.EstimatedTotalTokens = int(meanTokens * n)
	p.EstimatedCost = meanCost * n
	p.CostLow = math.Max(0, (meanCost-stddevCost)*n)
	p.CostHigh = (meanCost + stddevCost) * n

	workers := a.cfg.Analysis.BatchSize
	if workers <= 0 {
		workers = 4
	}
	p.EstimatedDuration = time.Duration(n / float64(workers) * secondsPerRequest * float64(time.Second))

	a.logger.WithFields(logrus.Fields{
		"candidates": p.CandidateFiles,
		"sampled":    p.SampledFiles,
		"est_cost":   p.EstimatedCost,
	}).Debug("cost preview computed")
	return p, nil
}

func meanStddev(xs []float64) (mean, stddev float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}
