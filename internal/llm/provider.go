package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/codesentinel/codesentinel-go/internal/config"
	"github.com/codesentinel/codesentinel-go/internal/errors"
	"github.com/sirupsen/logrus"
)

// Classification is one provider's verdict on a file.
type Classification struct {
	Purpose           string
	Category          string
	Confidence        float64
	SecurityRelevance string
	Reasoning         string

	// Which backend actually produced the verdict.
	Provider string
	Model    string

	// Observed token counts, when the backend reports them.
	InputTokens  int
	OutputTokens int
}

// Provider is a concrete LLM backend. Implementations confine
// authentication, rate-limit detection and region routing; callers see
// only the classify operation and the pipeline error taxonomy.
type Provider interface {
	Name() string
	TestConnection(ctx context.Context) error
	Classify(ctx context.Context, path, extension string, content []byte) (*Classification, error)
}

// Factory builds a provider from configuration.
type Factory func(cfg *config.Config, logger *logrus.Logger) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register adds a provider factory under name. Called from provider init
// functions.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// New builds the named provider.
func New(name string, cfg *config.Config, logger *logrus.Logger) (Provider, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.KindConfigInvalid, "unknown LLM provider %q (have %v)", name, Names())
	}
	return f(cfg, logger)
}

// Names lists registered provider names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Placeholder returns the classification recorded for a file whose
// analysis failed permanently. The phase continues; the failure stays
// visible in the manifest.
func Placeholder(provider, model, reason string) *Classification {
	return &Classification{
		Purpose:           "Could not analyze file purpose",
		Category:          "other",
		Confidence:        0,
		SecurityRelevance: "low",
		Reasoning:         fmt.Sprintf("analysis_failed:%s", reason),
		Provider:          provider,
		Model:             model,
	}
}
