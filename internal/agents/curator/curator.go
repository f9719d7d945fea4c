// Package curator implements the corpus digest agent.
package curator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xebia/sift/internal/agents"
	"github.com/xebia/sift/internal/llm"
)

const digestSystemPrompt = `You are a corpus curator. Given a topic and a set of passages from the corpus, write a short digest: what the corpus covers on this topic, notable gaps, and the most relevant passages by number. Use only the provided passages.`

// Curator reports on what the corpus contains for a given topic. Unlike the
// researcher it does not run a tool loop; it retrieves once and summarizes.
type Curator struct{}

func New() *Curator { return &Curator{} }

func (c *Curator) Name() string { return "curator" }

// Run expects Params["topic"]; Params["top_k"] optionally sets how many
// passages feed the digest.
func (c *Curator) Run(ctx context.Context, ac *agents.AgentContext) (*agents.AgentResult, error) {
	topic := ac.Params["topic"]
	if topic == "" {
		return nil, fmt.Errorf("curator: no topic provided")
	}
	if ac.LLM == nil {
		return nil, fmt.Errorf("curator: no LLM provider configured")
	}
	if ac.Retriever == nil {
		return nil, fmt.Errorf("curator: no retriever configured")
	}

	topK := 6
	if raw := ac.Params["top_k"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("curator: invalid top_k %q", raw)
		}
		topK = n
	}

	passages, err := ac.Retriever.Retrieve(ctx, topic, topK)
	if err != nil {
		return nil, fmt.Errorf("curator: retrieve: %w", err)
	}
	if len(passages) == 0 {
		return &agents.AgentResult{
			Output:   fmt.Sprintf("The corpus contains no passages relevant to %q.", topic),
			Metadata: map[string]string{"passages": "0"},
		}, nil
	}

	var b strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] (score %.3f) %s\n\n", i+1, p.Score, strings.TrimSpace(p.Content))
	}
	fmt.Fprintf(&b, "Topic: %s", topic)

	resp, err := ac.LLM.Complete(ctx, &llm.Prompt{
		SystemPrompt: digestSystemPrompt,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: b.String()}},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("curator: complete: %w", err)
	}

	return &agents.AgentResult{
		Output: llm.StripThinkingTags(resp.Content),
		Metadata: map[string]string{
			"passages": strconv.Itoa(len(passages)),
			"model":    resp.Model,
		},
	}, nil
}
