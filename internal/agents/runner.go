package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xebia/sift/internal/llm"
	"github.com/xebia/sift/internal/llmutil"
)

// Step records one tool invocation in an agent run.
type Step struct {
	Tool        string            `json:"tool"`
	Input       map[string]string `json:"input,omitempty"`
	Observation string            `json:"observation"`
}

// toolCall is the JSON the model emits each turn: either a tool invocation
// or a final answer.
type toolCall struct {
	Tool   string            `json:"tool,omitempty"`
	Input  map[string]string `json:"input,omitempty"`
	Answer string            `json:"answer,omitempty"`
}

// Runner drives the bounded tool-call loop: complete, parse a tool call,
// execute it, feed the observation back, repeat until the model answers or
// the step budget runs out.
type Runner struct {
	provider llm.Provider
	tools    *ToolRegistry

	// MaxSteps bounds tool invocations per run (default 5).
	MaxSteps int
	// Options are passed to each completion call.
	Options *llm.RequestOptions
}

// NewRunner creates a Runner over provider and tools.
func NewRunner(provider llm.Provider, tools *ToolRegistry) *Runner {
	return &Runner{provider: provider, tools: tools, MaxSteps: 5}
}

const runnerProtocol = `Respond with a single JSON object and nothing else.
To use a tool: {"tool": "<name>", "input": {...}}
To give your final answer: {"answer": "<your answer>"}

Available tools:
`

// Run executes the loop for the given persona and task. It returns the final
// answer and the tool steps taken.
func (r *Runner) Run(ctx context.Context, persona, task string) (string, []Step, error) {
	maxSteps := r.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 5
	}

	system := strings.TrimSpace(persona) + "\n\n" + runnerProtocol + r.tools.Describe()
	messages := []llm.Message{{Role: llm.RoleUser, Content: task}}

	var steps []Step
	for step := 0; step <= maxSteps; step++ {
		resp, err := r.provider.Complete(ctx, &llm.Prompt{SystemPrompt: system, Messages: messages}, r.Options)
		if err != nil {
			return "", steps, fmt.Errorf("agents: complete: %w", err)
		}

		call, ok := parseToolCall(resp.Content)
		if !ok {
			// Not a protocol response; treat the raw content as the answer.
			return llm.StripThinkingTags(resp.Content), steps, nil
		}
		if call.Answer != "" {
			return call.Answer, steps, nil
		}

		if step == maxSteps {
			break
		}

		tool, found := r.tools.Get(call.Tool)
		observation := ""
		if !found {
			observation = fmt.Sprintf("error: unknown tool %q; available: %s", call.Tool, strings.Join(r.tools.Names(), ", "))
		} else if out, err := tool.Call(ctx, call.Input); err != nil {
			observation = "error: " + err.Error()
		} else {
			observation = out
		}

		steps = append(steps, Step{Tool: call.Tool, Input: call.Input, Observation: observation})
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: renderCall(call)},
			llm.Message{Role: llm.RoleUser, Content: "Observation: " + observation},
		)
	}

	return "", steps, fmt.Errorf("agents: no final answer after %d tool steps", maxSteps)
}

// parseToolCall extracts and decodes the JSON object from model output.
func parseToolCall(content string) (toolCall, bool) {
	raw := llmutil.ExtractJSONObject(content)
	if raw == "" {
		return toolCall{}, false
	}
	var call toolCall
	if err := json.Unmarshal([]byte(raw), &call); err != nil {
		return toolCall{}, false
	}
	if call.Tool == "" && call.Answer == "" {
		return toolCall{}, false
	}
	return call, true
}

// renderCall reproduces the model's tool call for the transcript with
// deterministic key order.
func renderCall(call toolCall) string {
	var b strings.Builder
	fmt.Fprintf(&b, `{"tool": %q, "input": {`, call.Tool)
	for i, k := range sortedKeys(call.Input) {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q: %q", k, call.Input[k])
	}
	b.WriteString("}}")
	return b.String()
}
