package llm

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// StripThinkingTags removes <think>...</think> blocks that some models
// (qwen3 among them) emit around their reasoning. An unterminated block is
// dropped through the end of the string.
func StripThinkingTags(s string) string {
	var out strings.Builder
	for {
		start := strings.Index(s, thinkOpen)
		if start < 0 {
			out.WriteString(s)
			break
		}
		out.WriteString(s[:start])

		rest := s[start+len(thinkOpen):]
		end := strings.Index(rest, thinkClose)
		if end < 0 {
			break
		}
		s = rest[end+len(thinkClose):]
	}
	return strings.TrimSpace(out.String())
}
