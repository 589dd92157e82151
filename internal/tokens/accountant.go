package tokens

import (
	"github.com/codesentinel/codesentinel-go/internal/config"
	"github.com/codesentinel/codesentinel-go/internal/llm"
	"github.com/codesentinel/codesentinel-go/internal/manifest"
	"github.com/pkoukk/tiktoken-go"
	"github.com/sirupsen/logrus"
)

// estimatedResponseTokens is the fixed response-size estimate used when a
// provider gives nothing better. Typical classification replies run
// 100-200 tokens.
const estimatedResponseTokens = 150

// Encoder counts tokens in text. The tiktoken encoder is treated as an
// external service; a length-based estimator stands in when it is
// unavailable.
type Encoder interface {
	Count(text string) (n int, approximate bool)
}

// tiktokenEncoder wraps the cl100k_base byte-pair encoding.
type tiktokenEncoder struct {
	enc *tiktoken.Tiktoken
}

func (e *tiktokenEncoder) Count(text string) (int, bool) {
	return len(e.enc.Encode(text, nil, nil)), false
}

// approxEncoder estimates one token per four bytes.
type approxEncoder struct{}

func (approxEncoder) Count(text string) (int, bool) {
	return len(text) / 4, true
}

// NewEncoder returns the cl100k_base encoder, or the length-based
// fallback if the encoding tables cannot be loaded.
func NewEncoder(logger *logrus.Logger) Encoder {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.WithError(err).Warn("tiktoken encoder unavailable, using length-based estimate")
		return approxEncoder{}
	}
	return &tiktokenEncoder{enc: enc}
}

// Accountant computes per-file token statistics and cost projections
// against a provider's configured pricing.
type Accountant struct {
	encoder Encoder
	pricing config.ProviderConfig
}

// NewAccountant creates an accountant priced for the given provider.
func NewAccountant(encoder Encoder, pricing config.ProviderConfig) *Accountant {
	return &Accountant{encoder: encoder, pricing: pricing}
}

// Analyze computes token statistics for one (path, content) pair. The
// prompt count covers the full templated analysis prompt, not just the
// file content.
func (a *Accountant) Analyze(path, extension string, content []byte) manifest.TokenStats {
	text := llm.DecodeContent(content)
	contentTokens, approx := a.encoder.Count(text)

	prompt := llm.BuildAnalysisPrompt(path, extension, content, 0)
	promptTokens, _ := a.encoder.Count(prompt)

	total := promptTokens + estimatedResponseTokens
	cost := a.Cost(promptTokens, estimatedResponseTokens)

	return manifest.TokenStats{
		ContentTokens:           contentTokens,
		PromptTokens:            promptTokens,
		EstimatedResponseTokens: estimatedResponseTokens,
		TotalTokens:             total,
		EstimatedCost:           cost,
		Approximate:             approx,
	}
}

// Cost translates token counts into USD using the configured per-1k rates.
func (a *Accountant) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000*a.pricing.InputRatePer1K +
		float64(outputTokens)/1000*a.pricing.OutputRatePer1K
}
