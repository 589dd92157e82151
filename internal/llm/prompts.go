package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SystemPrompt establishes the reviewer role. Identical across providers
// so classifications stay comparable.
const SystemPrompt = "You are a senior software engineer and security analyst. " +
	"Analyze code files and provide structured insights about their purpose and security implications."

// truncationMarker is appended when file content exceeds the provider's
// content budget.
const truncationMarker = "\n... [content truncated]"

// bytesPerToken is the rough bytes-per-token ratio, shared with the
// length fallback in token accounting.
const bytesPerToken = 4

// contentBudgetBytes converts a provider's content token budget into the
// byte cap handed to BuildAnalysisPrompt.
func contentBudgetBytes(maxContentTokens, fallbackTokens int) int {
	if maxContentTokens <= 0 {
		maxContentTokens = fallbackTokens
	}
	return maxContentTokens * bytesPerToken
}

// analysisPromptTemplate is the shared user-prompt contract. The response
// must be a strict JSON object with the five required keys.
const analysisPromptTemplate = `Analyze this code file and identify its primary purpose. Consider:
- Main functionality and business logic
- Security implications
- Data handling patterns
- External dependencies
- Framework/library usage patterns
- Architectural role in the application

File: %s
Extension: %s
Code Content:
` + "```" + `
%s
` + "```" + `

Respond with a JSON object containing:
- "purpose": A brief, clear description of the file's main purpose (max 100 words)
- "category": One of [authentication, data-processing, api, frontend, config, test, build, documentation, other]
- "confidence": A confidence score from 0.0 to 1.0
- "security_relevance": One of [high, medium, low] based on security implications
- "reasoning": Brief explanation of the categorization (max 50 words)

Example response:
{
  "purpose": "User authentication and session management module",
  "category": "authentication",
  "confidence": 0.95,
  "security_relevance": "high",
  "reasoning": "Handles user credentials, session tokens, and access control"
}

Provide only the JSON response, no additional text.`

// BuildAnalysisPrompt renders the user prompt for one file. Content is
// decoded as UTF-8 with replacement of malformed sequences and truncated
// at maxContentBytes (0 = no limit) with a visible marker.
func BuildAnalysisPrompt(path, extension string, content []byte, maxContentBytes int) string {
	text := DecodeContent(content)
	if maxContentBytes > 0 && len(text) > maxContentBytes {
		cut := maxContentBytes
		// Do not split a rune.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + truncationMarker
	}
	return fmt.Sprintf(analysisPromptTemplate, path, extension, text)
}

// DecodeContent interprets raw blob bytes as UTF-8, replacing malformed
// sequences with U+FFFD.
func DecodeContent(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	var b strings.Builder
	b.Grow(len(content))
	for len(content) > 0 {
		r, size := utf8.DecodeRune(content)
		if r == utf8.RuneError && size == 1 {
			b.WriteRune('�')
		} else {
			b.WriteRune(r)
		}
		content = content[size:]
	}
	return b.String()
}
