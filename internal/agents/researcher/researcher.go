// Package researcher implements the retrieval-grounded Q&A agent.
package researcher

import (
	"context"
	"fmt"
	"strconv"

	"github.com/xebia/sift/internal/agents"
)

const persona = `You are a research assistant. Answer the user's question using the corpus_search tool to find supporting passages. Search before answering; refine your query if the first results are weak. Ground every claim in retrieved passages and say so when the corpus has no answer.`

// Researcher answers questions by searching the corpus through the tool loop.
type Researcher struct{}

func New() *Researcher { return &Researcher{} }

func (r *Researcher) Name() string { return "researcher" }

// Run expects Params["question"]; Params["max_steps"] optionally overrides
// the tool budget.
func (r *Researcher) Run(ctx context.Context, ac *agents.AgentContext) (*agents.AgentResult, error) {
	question := ac.Params["question"]
	if question == "" {
		return nil, fmt.Errorf("researcher: no question provided")
	}
	if ac.LLM == nil {
		return nil, fmt.Errorf("researcher: no LLM provider configured")
	}
	if ac.Retriever == nil {
		return nil, fmt.Errorf("researcher: no retriever configured")
	}

	tools := agents.NewToolRegistry()
	tools.Register(agents.NewSearchTool(ac.Retriever, 8))

	runner := agents.NewRunner(ac.LLM, tools)
	if raw := ac.Params["max_steps"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("researcher: invalid max_steps %q", raw)
		}
		runner.MaxSteps = n
	}

	answer, steps, err := runner.Run(ctx, persona, question)
	if err != nil {
		return &agents.AgentResult{Steps: steps, Errors: []string{err.Error()}}, err
	}

	return &agents.AgentResult{
		Output: answer,
		Steps:  steps,
		Metadata: map[string]string{
			"tool_steps": strconv.Itoa(len(steps)),
		},
	}, nil
}
