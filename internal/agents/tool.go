package agents

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xebia/sift/internal/rag"
)

// Tool is a capability an agent can invoke during its run loop.
type Tool interface {
	// Name returns the tool identifier used in tool calls.
	Name() string
	// Description tells the model what the tool does and what input it takes.
	Description() string
	// Call executes the tool with string-valued arguments.
	Call(ctx context.Context, input map[string]string) (string, error)
}

// ToolRegistry holds the tools available to an agent run.
type ToolRegistry struct {
	tools map[string]Tool
	order []string
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds a tool. Re-registering a name replaces the previous tool.
func (r *ToolRegistry) Register(t Tool) {
	if _, ok := r.tools[t.Name()]; !ok {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns the tool with the given name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in registration order.
func (r *ToolRegistry) Names() []string {
	return append([]string(nil), r.order...)
}

// Describe renders the tool catalog for inclusion in a system prompt.
func (r *ToolRegistry) Describe() string {
	var b strings.Builder
	for _, name := range r.order {
		fmt.Fprintf(&b, "- %s: %s\n", name, r.tools[name].Description())
	}
	return b.String()
}

// SearchTool exposes corpus retrieval as an agent tool.
type SearchTool struct {
	retriever *rag.Retriever
	maxTopK   int
}

// NewSearchTool creates a corpus_search tool over retriever. maxTopK caps
// how many passages a single call may request.
func NewSearchTool(retriever *rag.Retriever, maxTopK int) *SearchTool {
	if maxTopK <= 0 {
		maxTopK = 8
	}
	return &SearchTool{retriever: retriever, maxTopK: maxTopK}
}

func (t *SearchTool) Name() string { return "corpus_search" }

func (t *SearchTool) Description() string {
	return `searches the document corpus; input: {"query": "search terms", "top_k": "3"}`
}

// Call retrieves the requested passages and renders them as a numbered list.
func (t *SearchTool) Call(ctx context.Context, input map[string]string) (string, error) {
	query := strings.TrimSpace(input["query"])
	if query == "" {
		return "", fmt.Errorf("corpus_search: missing query")
	}

	topK := 0
	if raw := input["top_k"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return "", fmt.Errorf("corpus_search: invalid top_k %q", raw)
		}
		topK = n
	}
	if topK > t.maxTopK {
		topK = t.maxTopK
	}

	results, err := t.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "no matching passages", nil
	}

	var b strings.Builder
	for i, res := range results {
		fmt.Fprintf(&b, "[%d] (score %.3f) %s\n", i+1, res.Score, strings.TrimSpace(res.Content))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// sortedKeys is used for deterministic rendering of tool inputs in transcripts.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
