package llm

import (
	"context"

	"github.com/codesentinel/codesentinel-go/internal/config"
	"github.com/codesentinel/codesentinel-go/internal/errors"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

func init() {
	Register("openai", newOpenAIProvider)
}

// OpenAIProvider classifies files through the OpenAI chat completions API
// with JSON response formatting.
type OpenAIProvider struct {
	client       *openai.Client
	model        string
	maxTokens    int
	contentBytes int
	temperature  float32
	logger       *logrus.Entry
}

func newOpenAIProvider(cfg *config.Config, logger *logrus.Logger) (Provider, error) {
	pc := cfg.Provider("openai")
	if pc.APIKey == "" {
		return nil, errors.New(errors.KindConfigInvalid,
			"OpenAI API key not configured (set OPENAI_API_KEY or run 'sentinel configure')")
	}
	model := pc.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxTokens := pc.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}
	return &OpenAIProvider{
		client:       openai.NewClient(pc.APIKey),
		model:        model,
		maxTokens:    maxTokens,
		contentBytes: contentBudgetBytes(pc.MaxContentTokens, 100000),
		temperature:  pc.Temperature,
		logger:       logger.WithFields(logrus.Fields{"component": "llm", "provider": "openai"}),
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

// TestConnection issues a minimal completion to verify credentials.
func (p *OpenAIProvider) TestConnection(ctx context.Context) error {
	_, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "Test connection"},
		},
		MaxTokens:   10,
		Temperature: 0.1,
	})
	if err != nil {
		return classifyOpenAIError(err)
	}
	return nil
}

// Classify sends the shared analysis prompt and parses the strict JSON
// reply.
func (p *OpenAIProvider) Classify(ctx context.Context, path, extension string, content []byte) (*Classification, error) {
	prompt := BuildAnalysisPrompt(path, extension, content, p.contentBytes)

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New(errors.KindMalformedResponse, "openai returned no choices")
	}

	result, err := ParseClassification(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	result.Provider = "openai"
	result.Model = p.model
	result.InputTokens = resp.Usage.PromptTokens
	result.OutputTokens = resp.Usage.CompletionTokens

	p.logger.WithFields(logrus.Fields{
		"path":     path,
		"category": result.Category,
		"tokens":   resp.Usage.TotalTokens,
	}).Debug("classification complete")
	return result, nil
}

// classifyOpenAIError maps API failures onto the pipeline taxonomy.
// HTTP 429 and 5xx are retryable throttling; the rest is a provider error.
func classifyOpenAIError(err error) error {
	if apiErr, ok := err.(*openai.APIError); ok {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return errors.Wrap(err, errors.KindRateLimited, "openai throttled")
		}
	}
	return errors.Wrap(err, errors.KindProviderExhausted, "openai request failed")
}
