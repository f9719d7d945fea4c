package agents

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/xebia/sift/internal/llm"
)

// scriptedProvider returns queued completions in order.
type scriptedProvider struct {
	replies []string
	prompts []*llm.Prompt
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Complete(_ context.Context, prompt *llm.Prompt, _ *llm.RequestOptions) (*llm.Response, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.replies) == 0 {
		return nil, fmt.Errorf("scripted provider exhausted")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return &llm.Response{Content: reply}, nil
}

func (s *scriptedProvider) Embed(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("not implemented")
}

// echoTool records its input and returns a fixed observation.
type echoTool struct {
	name  string
	calls []map[string]string
	out   string
	err   error
}

func (t *echoTool) Name() string        { return t.name }
func (t *echoTool) Description() string { return "echoes input" }

func (t *echoTool) Call(_ context.Context, input map[string]string) (string, error) {
	t.calls = append(t.calls, input)
	return t.out, t.err
}

func TestRunner_ToolThenAnswer(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"tool": "echo", "input": {"q": "blue"}}`,
		`{"answer": "it is blue"}`,
	}}
	tool := &echoTool{name: "echo", out: "passage about blue"}
	tools := NewToolRegistry()
	tools.Register(tool)

	runner := NewRunner(provider, tools)
	answer, steps, err := runner.Run(context.Background(), "persona", "why blue?")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if answer != "it is blue" {
		t.Errorf("unexpected answer %q", answer)
	}
	if len(steps) != 1 || steps[0].Tool != "echo" || steps[0].Observation != "passage about blue" {
		t.Errorf("unexpected steps %+v", steps)
	}
	if len(tool.calls) != 1 || tool.calls[0]["q"] != "blue" {
		t.Errorf("unexpected tool input %+v", tool.calls)
	}

	// Second completion must carry the observation back to the model.
	second := provider.prompts[1]
	lastMsg := second.Messages[len(second.Messages)-1]
	if !strings.Contains(lastMsg.Content, "passage about blue") {
		t.Errorf("expected observation in follow-up prompt, got %q", lastMsg.Content)
	}
}

func TestRunner_UnknownTool(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"tool": "nope", "input": {}}`,
		`{"answer": "done"}`,
	}}
	tools := NewToolRegistry()
	tools.Register(&echoTool{name: "echo"})

	runner := NewRunner(provider, tools)
	answer, steps, err := runner.Run(context.Background(), "p", "task")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if answer != "done" {
		t.Errorf("unexpected answer %q", answer)
	}
	if len(steps) != 1 || !strings.Contains(steps[0].Observation, "unknown tool") {
		t.Errorf("expected unknown-tool observation, got %+v", steps)
	}
}

func TestRunner_ToolErrorIsObserved(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"tool": "echo", "input": {}}`,
		`{"answer": "recovered"}`,
	}}
	tools := NewToolRegistry()
	tools.Register(&echoTool{name: "echo", err: fmt.Errorf("boom")})

	runner := NewRunner(provider, tools)
	answer, steps, err := runner.Run(context.Background(), "p", "task")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if answer != "recovered" {
		t.Errorf("unexpected answer %q", answer)
	}
	if !strings.Contains(steps[0].Observation, "boom") {
		t.Errorf("expected tool error in observation, got %q", steps[0].Observation)
	}
}

func TestRunner_PlainTextFallback(t *testing.T) {
	provider := &scriptedProvider{replies: []string{"just a plain answer"}}
	runner := NewRunner(provider, NewToolRegistry())

	answer, steps, err := runner.Run(context.Background(), "p", "task")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if answer != "just a plain answer" {
		t.Errorf("unexpected answer %q", answer)
	}
	if len(steps) != 0 {
		t.Errorf("expected no steps, got %d", len(steps))
	}
}

func TestRunner_StepBudgetExhausted(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"tool": "echo", "input": {}}`,
		`{"tool": "echo", "input": {}}`,
		`{"tool": "echo", "input": {}}`,
	}}
	tools := NewToolRegistry()
	tools.Register(&echoTool{name: "echo", out: "nothing useful"})

	runner := NewRunner(provider, tools)
	runner.MaxSteps = 2

	if _, _, err := runner.Run(context.Background(), "p", "task"); err == nil {
		t.Fatal("expected error when step budget is exhausted")
	}
}

func TestRunner_FencedToolCall(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		"```json\n{\"tool\": \"echo\", \"input\": {\"q\": \"x\"}}\n```",
		`{"answer": "ok"}`,
	}}
	tools := NewToolRegistry()
	tools.Register(&echoTool{name: "echo", out: "obs"})

	runner := NewRunner(provider, tools)
	answer, steps, err := runner.Run(context.Background(), "p", "task")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if answer != "ok" || len(steps) != 1 {
		t.Errorf("expected fenced tool call to be parsed, got %q with %d steps", answer, len(steps))
	}
}

func TestRunner_SystemPromptListsTools(t *testing.T) {
	provider := &scriptedProvider{replies: []string{`{"answer": "x"}`}}
	tools := NewToolRegistry()
	tools.Register(&echoTool{name: "echo"})

	runner := NewRunner(provider, tools)
	if _, _, err := runner.Run(context.Background(), "persona text", "task"); err != nil {
		t.Fatalf("run: %v", err)
	}
	system := provider.prompts[0].SystemPrompt
	if !strings.Contains(system, "persona text") || !strings.Contains(system, "echo: echoes input") {
		t.Errorf("expected persona and tool catalog in system prompt, got %q", system)
	}
}
