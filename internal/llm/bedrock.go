package llm

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/codesentinel/codesentinel-go/internal/config"
	"github.com/codesentinel/codesentinel-go/internal/errors"
	"github.com/sirupsen/logrus"
	stderrors "errors"
)

func init() {
	Register("bedrock", newBedrockProvider)
}

// BedrockProvider classifies files through AWS Bedrock using the Anthropic
// messages payload. Region and credential profile come from the
// secondary_provider config section.
type BedrockProvider struct {
	client       *bedrockruntime.Client
	model        string
	maxTokens    int
	contentBytes int
	temperature  float32
	logger       *logrus.Entry
}

// anthropicRequest is the Bedrock invoke payload for Anthropic models.
type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float32            `json:"temperature,omitempty"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func newBedrockProvider(cfg *config.Config, logger *logrus.Logger) (Provider, error) {
	sp := cfg.SecondaryProvider
	pc := cfg.Provider("bedrock")

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(sp.Region),
	}
	if sp.AWSProfile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(sp.AWSProfile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindConfigInvalid, "load AWS credentials")
	}

	model := pc.Model
	if model == "" {
		model = sp.Model
	}
	maxTokens := pc.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}
	return &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		model:        model,
		maxTokens:    maxTokens,
		contentBytes: contentBudgetBytes(pc.MaxContentTokens, 150000),
		temperature:  pc.Temperature,
		logger:       logger.WithFields(logrus.Fields{"component": "llm", "provider": "bedrock"}),
	}, nil
}

func (p *BedrockProvider) Name() string { return "bedrock" }

// TestConnection invokes the model with a tiny payload to verify region,
// profile and model access.
func (p *BedrockProvider) TestConnection(ctx context.Context) error {
	_, err := p.invoke(ctx, anthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        10,
		Messages: []anthropicMessage{
			{Role: "user", Content: []anthropicContent{{Type: "text", Text: "Test connection"}}},
		},
	})
	return err
}

// Classify sends the shared analysis prompt. Anthropic models may wrap the
// JSON in prose, so the first-JSON-object extraction in
// ParseClassification does the trimming.
func (p *BedrockProvider) Classify(ctx context.Context, path, extension string, content []byte) (*Classification, error) {
	prompt := BuildAnalysisPrompt(path, extension, content, p.contentBytes)

	resp, err := p.invoke(ctx, anthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        p.maxTokens,
		Temperature:      p.temperature,
		System:           SystemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: []anthropicContent{{Type: "text", Text: prompt}}},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Content) == 0 {
		return nil, errors.New(errors.KindMalformedResponse, "bedrock returned no content")
	}

	result, err := ParseClassification(resp.Content[0].Text)
	if err != nil {
		return nil, err
	}
	result.Provider = "bedrock"
	result.Model = p.model
	result.InputTokens = resp.Usage.InputTokens
	result.OutputTokens = resp.Usage.OutputTokens

	p.logger.WithFields(logrus.Fields{
		"path":     path,
		"category": result.Category,
	}).Debug("classification complete")
	return result, nil
}

func (p *BedrockProvider) invoke(ctx context.Context, req anthropicRequest) (*anthropicResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "encode bedrock payload")
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, classifyBedrockError(err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, errors.Wrap(err, errors.KindMalformedResponse, "decode bedrock response")
	}
	return &resp, nil
}

// classifyBedrockError maps AWS API failures onto the pipeline taxonomy.
func classifyBedrockError(err error) error {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceUnavailableException", "ModelNotReadyException":
			return errors.Wrap(err, errors.KindRateLimited, "bedrock throttled")
		}
	}
	return errors.Wrap(err, errors.KindProviderExhausted, "bedrock request failed")
}
