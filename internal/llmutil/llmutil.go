// Package llmutil provides shared utilities for LLM output processing.
package llmutil

import (
	"strings"

	"github.com/xebia/sift/internal/llm"
)

// StripThinkingTags removes <think>...</think> blocks from LLM output.
// Delegates to llm.StripThinkingTags.
func StripThinkingTags(s string) string {
	return llm.StripThinkingTags(s)
}

// StripMarkdownFences removes markdown code fences (``` ... ```) from LLM
// output. It first strips thinking tags, then removes the outermost fence pair
// if present.
func StripMarkdownFences(s string) string {
	s = StripThinkingTags(s)

	lines := strings.Split(s, "\n")

	// Find and remove leading fence.
	start := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			start = i + 1
			break
		}
	}

	// Find and remove trailing fence.
	end := len(lines)
	for i := len(lines) - 1; i >= start; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, "```") {
			end = i
			break
		}
	}

	// If no fences found, return original.
	if start == 0 && end == len(lines) {
		return s
	}

	return strings.Join(lines[start:end], "\n")
}

// ExtractJSONObject returns the first balanced {...} object in s, stripping
// fences and thinking tags first. Models often wrap tool calls in prose or
// code fences; this pulls the object out without a full parse. Returns ""
// when no balanced object is found. Brace counting ignores braces inside
// JSON strings.
func ExtractJSONObject(s string) string {
	s = StripMarkdownFences(s)

	start := strings.IndexByte(s, '{')
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
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
				return s[start : i+1]
			}
		}
	}
	return ""
}
