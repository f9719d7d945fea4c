package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/xebia/sift/internal/llm"
	"github.com/xebia/sift/internal/observability"
	"github.com/xebia/sift/internal/vector"
)

// Answer is the result of one retrieval-augmented generation round.
type Answer struct {
	Text         string                `json:"text"`
	Sources      []vector.SearchResult `json:"sources,omitempty"`
	Model        string                `json:"model,omitempty"`
	InputTokens  int                   `json:"input_tokens,omitempty"`
	OutputTokens int                   `json:"output_tokens,omitempty"`
}

// Pipeline wires a Retriever and an LLM provider into question answering.
type Pipeline struct {
	retriever *Retriever
	provider  llm.Provider

	// MinScore drops retrieved passages scoring below it. Zero keeps all.
	MinScore float64
	// Options are passed to the completion call. Nil uses provider defaults.
	Options *llm.RequestOptions
}

// NewPipeline creates a Pipeline.
func NewPipeline(retriever *Retriever, provider llm.Provider) (*Pipeline, error) {
	if retriever == nil {
		return nil, fmt.Errorf("rag: retriever must not be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("rag: provider must not be nil")
	}
	return &Pipeline{retriever: retriever, provider: provider}, nil
}

// Ask retrieves topK passages for question, assembles a grounded prompt, and
// returns the model's answer with the passages that informed it.
func (p *Pipeline) Ask(ctx context.Context, question string, topK int) (*Answer, error) {
	searchStart := time.Now()
	contexts, err := p.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, err
	}
	if p.MinScore > 0 {
		kept := contexts[:0]
		for _, c := range contexts {
			if c.Score >= p.MinScore {
				kept = append(kept, c)
			}
		}
		contexts = kept
	}

	topScore := 0.0
	if len(contexts) > 0 {
		topScore = contexts[0].Score
	}
	observability.Audit().LogRetrieval(question, topK, len(contexts), topScore, time.Since(searchStart))

	prompt := BuildPrompt(question, contexts)
	llmCtx, span := observability.StartLLMSpan(ctx, p.provider.Name(), "")
	completeStart := time.Now()
	resp, err := p.provider.Complete(llmCtx, prompt, p.Options)
	if err != nil {
		observability.RecordError(span, err)
		span.End()
		observability.Metrics().RecordLLMRequest(time.Since(completeStart), 0, err)
		observability.Audit().LogLLMError(p.provider.Name(), "", err)
		return nil, fmt.Errorf("rag: complete: %w", err)
	}
	observability.RecordLLMMetrics(span, resp.InputTokens, resp.OutputTokens, time.Since(completeStart))
	span.End()
	observability.Metrics().RecordLLMRequest(time.Since(completeStart), resp.InputTokens+resp.OutputTokens, nil)
	observability.Audit().LogLLMResponse(p.provider.Name(), resp.Model, time.Since(completeStart), resp.InputTokens, resp.OutputTokens)

	return &Answer{
		Text:         llm.StripThinkingTags(resp.Content),
		Sources:      contexts,
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}, nil
}
