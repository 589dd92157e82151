package llm

import (
	"encoding/json"
	"strings"

	"github.com/codesentinel/codesentinel-go/internal/errors"
)

// rawClassification mirrors the JSON object the prompt demands.
type rawClassification struct {
	Purpose           *string  `json:"purpose"`
	Category          *string  `json:"category"`
	Confidence        *float64 `json:"confidence"`
	SecurityRelevance *string  `json:"security_relevance"`
	Reasoning         string   `json:"reasoning"`
}

// knownCategories and knownRelevance are the closed answer sets the
// prompt offers. Anything outside them is a malformed reply.
var knownCategories = map[string]bool{
	"authentication": true, "data-processing": true, "api": true,
	"frontend": true, "config": true, "test": true, "build": true,
	"documentation": true, "other": true,
}

var knownRelevance = map[string]bool{
	"high": true, "medium": true, "low": true,
}

// ParseClassification locates the first JSON object in a provider reply
// and validates the required keys. Anything else is MalformedResponse.
func ParseClassification(reply string) (*Classification, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end == -1 || end < start {
		return nil, errors.New(errors.KindMalformedResponse, "no JSON object in reply")
	}

	var raw rawClassification
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return nil, errors.Wrap(err, errors.KindMalformedResponse, "decode reply")
	}

	switch {
	case raw.Purpose == nil:
		return nil, errors.New(errors.KindMalformedResponse, "missing purpose")
	case raw.Category == nil:
		return nil, errors.New(errors.KindMalformedResponse, "missing category")
	case raw.Confidence == nil:
		return nil, errors.New(errors.KindMalformedResponse, "missing confidence")
	case raw.SecurityRelevance == nil:
		return nil, errors.New(errors.KindMalformedResponse, "missing security_relevance")
	}

	category := strings.ToLower(strings.TrimSpace(*raw.Category))
	if !knownCategories[category] {
		return nil, errors.Newf(errors.KindMalformedResponse, "category %q outside the known set", *raw.Category)
	}
	relevance := strings.ToLower(strings.TrimSpace(*raw.SecurityRelevance))
	if !knownRelevance[relevance] {
		return nil, errors.Newf(errors.KindMalformedResponse, "security_relevance %q outside the known set", *raw.SecurityRelevance)
	}

	confidence := *raw.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &Classification{
		Purpose:           *raw.Purpose,
		Category:          category,
		Confidence:        confidence,
		SecurityRelevance: relevance,
		Reasoning:         raw.Reasoning,
	}, nil
}
