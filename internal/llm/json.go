package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	thinkRe     = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
)

// CleanResponse strips reasoning tags and markdown fences from model output.
// Some models wrap JSON in <think> blocks or ``` fences no matter what the
// prompt says.
func CleanResponse(s string) string {
	s = thinkRe.ReplaceAllString(s, "")
	if idx := strings.Index(s, "<think>"); idx != -1 {
		// Unterminated think block: keep what came before it.
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// ExtractJSON cleans a model response and parses it into T. It tolerates
// surrounding prose by cutting to the outermost JSON object or array, and
// repairs trailing commas before giving up.
func ExtractJSON[T any](content string) (T, error) {
	var result T

	cleaned := CleanResponse(content)
	cleaned = cutToJSON(cleaned)

	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		repaired := strings.ReplaceAll(cleaned, ",]", "]")
		repaired = strings.ReplaceAll(repaired, ",}", "}")
		if err := json.Unmarshal([]byte(repaired), &result); err != nil {
			return result, fmt.Errorf("parse model json: %w (content: %s)", err, truncate(cleaned, 200))
		}
	}
	return result, nil
}

// cutToJSON trims to the outermost {...} or [...] span if one exists.
func cutToJSON(s string) string {
	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")

	start, closer := objStart, "}"
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start, closer = arrStart, "]"
	}
	if start == -1 {
		return s
	}
	end := strings.LastIndex(s, closer)
	if end <= start {
		return s
	}
	return s[start : end+1]
}
