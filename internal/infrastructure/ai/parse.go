package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/doeshing/sentry-go/internal/domain"
)

// ParseClassification extracts the level from a model reply. The whole text
// is tried as JSON first, then the span from the first '{' to the last '}',
// then the first balanced object.
func ParseClassification(raw string) (domain.ImpactLevel, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty reply", domain.ErrMalformedModelOutput)
	}
	if level, ok := decodeLevel(trimmed); ok {
		return level, nil
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		if level, ok := decodeLevel(trimmed[start : end+1]); ok {
			return level, nil
		}
		if block := firstBalancedObject(trimmed[start:]); block != "" {
			if level, ok := decodeLevel(block); ok {
				return level, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrMalformedModelOutput, truncate(trimmed, 80))
}

func decodeLevel(text string) (domain.ImpactLevel, bool) {
	var reply struct {
		Level interface{} `json:"level"`
	}
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return "", false
	}
	raw, ok := reply.Level.(string)
	if !ok {
		return "", false
	}
	level, err := domain.ParseImpactLevel(raw)
	if err != nil {
		return "", false
	}
	return level, true
}

// firstBalancedObject returns the object starting at text[0], skipping
// braces inside JSON strings.
func firstBalancedObject(text string) string {
	depth := 0
	inString := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[:i+1]
			}
		}
	}
	return ""
}
