// Package agents provides tool-using assistants built on the LLM provider
// and the retrieval pipeline.
package agents

import (
	"context"

	"github.com/xebia/sift/internal/llm"
	"github.com/xebia/sift/internal/rag"
	"github.com/xebia/sift/internal/vector"
)

// Agent is the interface for all assistants.
type Agent interface {
	// Name returns the agent identifier.
	Name() string
	// Run executes the agent's task.
	Run(ctx context.Context, ac *AgentContext) (*AgentResult, error)
}

// AgentContext provides shared resources to agents.
type AgentContext struct {
	LLM       llm.Provider
	VectorDB  vector.Repository
	Retriever *rag.Retriever
	Params    map[string]string
}

// AgentResult captures agent output.
type AgentResult struct {
	Output   string
	Steps    []Step
	Errors   []string
	Metadata map[string]string
}
