package rag

import (
	"fmt"
	"strings"

	"github.com/xebia/sift/internal/llm"
	"github.com/xebia/sift/internal/vector"
)

const groundedSystemPrompt = `You are a precise assistant. Answer the question using ONLY the provided context passages. If the context does not contain the answer, say you don't know. Cite passage numbers like [1] where relevant.`

// BuildPrompt assembles retrieved contexts and a question into a grounded
// completion prompt. Contexts are numbered in ranking order.
func BuildPrompt(question string, contexts []vector.SearchResult) *llm.Prompt {
	var b strings.Builder
	for i, c := range contexts {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, strings.TrimSpace(c.Content))
	}
	fmt.Fprintf(&b, "Question: %s", strings.TrimSpace(question))

	return &llm.Prompt{
		SystemPrompt: groundedSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: b.String()},
		},
	}
}
