package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"adgenius/internal/domain"
)

type strategyPayload struct {
	ImagePrompt string `json:"imagePrompt"`
	CopyAngle   string `json:"copyAngle"`
}

type copyPayload struct {
	Headline    string `json:"headline"`
	Subheadline string `json:"subheadline"`
	CTA         string `json:"cta"`
}

// ParseStrategy decodes a strategy answer. Both fields must be present.
func ParseStrategy(raw string) (domain.Strategy, error) {
	p, err := parseModelPayload[strategyPayload](raw)
	if err != nil {
		return domain.Strategy{}, err
	}
	s := domain.Strategy{ImagePrompt: strings.TrimSpace(p.ImagePrompt), CopyAngle: strings.TrimSpace(p.CopyAngle)}
	if s.ImagePrompt == "" || s.CopyAngle == "" {
		return domain.Strategy{}, fmt.Errorf("%w: incomplete strategy", domain.ErrProviderFailure)
	}
	return s, nil
}

// ParseCopy decodes a copy answer. All three fields must be present.
func ParseCopy(raw string) (domain.Copy, error) {
	p, err := parseModelPayload[copyPayload](raw)
	if err != nil {
		return domain.Copy{}, err
	}
	c := domain.Copy{
		Headline:    strings.TrimSpace(p.Headline),
		Subheadline: strings.TrimSpace(p.Subheadline),
		CTA:         strings.TrimSpace(p.CTA),
	}
	if c.Headline == "" || c.Subheadline == "" || c.CTA == "" {
		return domain.Copy{}, fmt.Errorf("%w: incomplete copy", domain.ErrProviderFailure)
	}
	return c, nil
}

// CleanName tidies a product name answer: first line, no quotes or markdown.
func CleanName(raw string) string {
	text := strings.TrimSpace(raw)
	if idx := strings.IndexAny(text, "\r\n"); idx >= 0 {
		text = text[:idx]
	}
	text = strings.Trim(text, " *\"'`")
	return strings.TrimSuffix(text, ".")
}

// Coalesce returns the first non-blank value, trimmed.
func Coalesce(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}

func parseModelPayload[T any](raw string) (T, error) {
	var zero T
	cleaned := ExtractJSON(raw)
	if cleaned == "" {
		return zero, errors.New("empty payload")
	}
	var decoded T
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return zero, err
	}
	return decoded, nil
}

// ExtractJSON pulls the outermost JSON object out of a model answer that
// may be wrapped in prose or a markdown code fence.
func ExtractJSON(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = trimCodeFence(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
