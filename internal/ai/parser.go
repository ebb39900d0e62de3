package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var thinkTagRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripReasoningTags removes reasoning-model think tags from a response.
func StripReasoningTags(text string) string {
	return strings.TrimSpace(thinkTagRegex.ReplaceAllString(text, ""))
}

// ExtractObject pulls the first JSON object out of free-form model output and
// unmarshals it into v. Handles bare objects, markdown code fences and prose
// around the object. The fields of v are NOT trusted afterwards: callers
// validate each one individually and substitute defaults, per the fallback
// contract for AI-shaped text.
func ExtractObject(text string, v any) error {
	cleaned := StripReasoningTags(text)

	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return fmt.Errorf("empty AI response")
	}

	// Try the whole thing first
	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}

	// Fall back to the outermost brace pair
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), v); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no parseable JSON object in AI response: %.200s", cleaned)
}
