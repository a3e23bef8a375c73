package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/noa10/mataresit-sub011/internal/domain"
)

// ExtractJSON isolates a JSON payload from model output that may be wrapped in
// markdown fences or surrounded by prose. It slices from the first '{' or '['
// to the last matching closer.
func ExtractJSON(text string) (string, bool) {
	s := stripFences(strings.TrimSpace(text))

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func stripFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	open := strings.Index(s, "```")
	rest := s[open+3:]
	// drop the info string ("json") up to the first newline
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// DecodeJSON extracts and unmarshals model output into out.
func DecodeJSON(text string, out any) error {
	payload, ok := ExtractJSON(text)
	if !ok {
		return fmt.Errorf("no JSON payload in model output: %w", domain.ErrMalformedLLMOutput)
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("decode model output: %v: %w", err, domain.ErrMalformedLLMOutput)
	}
	return nil
}
