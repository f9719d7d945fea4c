package llm

import (
	"context"
	"testing"
	"time"
)

// countingProvider reports fixed token usage per completion.
type countingProvider struct {
	calls  int
	tokens int
}

func (c *countingProvider) Name() string { return "counting" }

func (c *countingProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	c.calls++
	return &Response{Content: "ok", InputTokens: c.tokens / 2, OutputTokens: c.tokens - c.tokens/2}, nil
}

func (c *countingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	return make([][]float32, len(texts)), nil
}

func TestRateLimitProvider_AllowsBurst(t *testing.T) {
	inner := &countingProvider{}
	p := NewRateLimitProvider(inner, &RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         3,
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := p.Complete(ctx, &Prompt{}, nil); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls, got %d", inner.calls)
	}
}

func TestRateLimitProvider_BlocksWhenExhausted(t *testing.T) {
	p := NewRateLimitProvider(&countingProvider{}, &RateLimitConfig{
		RequestsPerMinute: 1,
		BurstSize:         1,
	})

	ctx := context.Background()
	if _, err := p.Complete(ctx, &Prompt{}, nil); err != nil {
		t.Fatalf("first call: %v", err)
	}

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := p.Complete(blocked, &Prompt{}, nil); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded while rate limited, got %v", err)
	}
}

func TestRateLimitProvider_UnlimitedConfig(t *testing.T) {
	inner := &countingProvider{}
	p := NewRateLimitProvider(inner, &RateLimitConfig{})

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if _, err := p.Complete(ctx, &Prompt{}, nil); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if inner.calls != 10 {
		t.Errorf("expected 10 calls, got %d", inner.calls)
	}
}

func TestRateLimitProvider_TokenBudget(t *testing.T) {
	inner := &countingProvider{tokens: 600}
	p := NewRateLimitProvider(inner, &RateLimitConfig{
		TokensPerMinute: 1000,
	})

	ctx := context.Background()
	// First call fits the budget; second exhausts it.
	for i := 0; i < 2; i++ {
		if _, err := p.Complete(ctx, &Prompt{}, nil); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := p.Complete(blocked, &Prompt{}, nil); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded on exhausted token budget, got %v", err)
	}

	stats := p.Stats()
	if stats.TokensInWindow != 1200 {
		t.Errorf("expected 1200 tokens in window, got %d", stats.TokensInWindow)
	}
	if stats.RemainingTokens != 0 {
		t.Errorf("expected 0 remaining tokens, got %d", stats.RemainingTokens)
	}
}

func TestRateLimitProvider_EmbedUsesCapacity(t *testing.T) {
	inner := &countingProvider{}
	p := NewRateLimitProvider(inner, &RateLimitConfig{
		RequestsPerMinute: 1,
		BurstSize:         1,
	})

	ctx := context.Background()
	if _, err := p.Embed(ctx, []string{"a"}); err != nil {
		t.Fatalf("embed: %v", err)
	}

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := p.Embed(blocked, []string{"b"}); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestRateLimitProvider_Stats(t *testing.T) {
	p := NewRateLimitProvider(&countingProvider{tokens: 40}, &RateLimitConfig{
		RequestsPerMinute: 10,
		TokensPerMinute:   100,
		BurstSize:         5,
	})

	if _, err := p.Complete(context.Background(), &Prompt{}, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}

	stats := p.Stats()
	if stats.RequestsInWindow != 1 {
		t.Errorf("expected 1 request in window, got %d", stats.RequestsInWindow)
	}
	if stats.TokensInWindow != 40 {
		t.Errorf("expected 40 tokens in window, got %d", stats.TokensInWindow)
	}
	if stats.RemainingRequests != 4 {
		t.Errorf("expected 4 remaining request slots, got %d", stats.RemainingRequests)
	}
}

func TestRateLimitProvider_RefillKeepsFractionalCredit(t *testing.T) {
	p := NewRateLimitProvider(&countingProvider{}, &RateLimitConfig{
		RequestsPerMinute: 60, // one slot per second
		BurstSize:         1,
	})

	// Drain the bucket and backdate the last refill by half a slot.
	p.mu.Lock()
	p.requestSlots = 0
	p.lastRefill = time.Now().Add(-500 * time.Millisecond)
	before := p.lastRefill
	p.refill()
	if p.requestSlots != 0 {
		t.Errorf("expected no slot from half-elapsed credit, got %d", p.requestSlots)
	}
	if !p.lastRefill.Equal(before) {
		t.Error("partial credit discarded: lastRefill advanced without a slot earned")
	}

	// A full slot and a half elapsed: one slot earned, the half banked.
	p.lastRefill = time.Now().Add(-1500 * time.Millisecond)
	before = p.lastRefill
	p.refill()
	if p.requestSlots != 1 {
		t.Errorf("expected 1 slot earned, got %d", p.requestSlots)
	}
	if got := p.lastRefill.Sub(before); got != time.Second {
		t.Errorf("expected lastRefill advanced by exactly one slot, got %v", got)
	}
	p.mu.Unlock()
}

func TestWithRateLimit_Nil(t *testing.T) {
	if WithRateLimit(nil, nil) != nil {
		t.Error("wrapping nil should return nil")
	}
}
