package llm

import (
	"testing"

	"github.com/codesentinel/codesentinel-go/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validReply = `{
  "purpose": "User authentication and session management module",
  "category": "authentication",
  "confidence": 0.95,
  "security_relevance": "high",
  "reasoning": "Handles user credentials and session tokens"
}`

func TestParseClassification(t *testing.T) {
	c, err := ParseClassification(validReply)
	require.NoError(t, err)
	assert.Equal(t, "authentication", c.Category)
	assert.Equal(t, 0.95, c.Confidence)
	assert.Equal(t, "high", c.SecurityRelevance)
}

func TestParseClassificationWrappedInProse(t *testing.T) {
	reply := "Sure, here is the analysis:\n" + validReply + "\nLet me know if you need more."
	c, err := ParseClassification(reply)
	require.NoError(t, err)
	assert.Equal(t, "authentication", c.Category)
}

func TestParseClassificationNoJSON(t *testing.T) {
	_, err := ParseClassification("I cannot analyze this file.")
	assert.True(t, errors.IsKind(err, errors.KindMalformedResponse))
}

func TestParseClassificationMissingKeys(t *testing.T) {
	cases := []string{
		`{"category": "other", "confidence": 0.5, "security_relevance": "low"}`,
		`{"purpose": "x", "confidence": 0.5, "security_relevance": "low"}`,
		`{"purpose": "x", "category": "other", "security_relevance": "low"}`,
		`{"purpose": "x", "category": "other", "confidence": 0.5}`,
	}
	for _, reply := range cases {
		_, err := ParseClassification(reply)
		assert.True(t, errors.IsKind(err, errors.KindMalformedResponse), "reply=%s", reply)
	}
}

func TestParseClassificationClampsConfidence(t *testing.T) {
	high, err := ParseClassification(`{"purpose":"x","category":"other","confidence":1.7,"security_relevance":"low"}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, high.Confidence)

	low, err := ParseClassification(`{"purpose":"x","category":"other","confidence":-0.2,"security_relevance":"low"}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, low.Confidence)
}

func TestParseClassificationRejectsUnknownDomains(t *testing.T) {
	_, err := ParseClassification(`{"purpose":"x","category":"networking","confidence":0.5,"security_relevance":"low"}`)
	assert.True(t, errors.IsKind(err, errors.KindMalformedResponse))

	_, err = ParseClassification(`{"purpose":"x","category":"other","confidence":0.5,"security_relevance":"critical"}`)
	assert.True(t, errors.IsKind(err, errors.KindMalformedResponse))
}

func TestParseClassificationNormalizesDomainCase(t *testing.T) {
	c, err := ParseClassification(`{"purpose":"x","category":" Authentication ","confidence":0.5,"security_relevance":"HIGH"}`)
	require.NoError(t, err)
	assert.Equal(t, "authentication", c.Category)
	assert.Equal(t, "high", c.SecurityRelevance)
}

func TestParseClassificationInvalidJSON(t *testing.T) {
	_, err := ParseClassification(`{"purpose": "x", "category":`)
	assert.True(t, errors.IsKind(err, errors.KindMalformedResponse))
}
