package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimitConfig bounds outbound provider traffic.
type RateLimitConfig struct {
	// RequestsPerMinute limits API calls per minute (0 = unlimited).
	RequestsPerMinute int
	// TokensPerMinute limits total tokens per minute (0 = unlimited).
	TokensPerMinute int
	// BurstSize is the number of requests allowed above the steady rate.
	BurstSize int
}

// DefaultRateLimitConfig returns limits safe for free-tier cloud APIs.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerMinute: 25,
		TokensPerMinute:   25000,
		BurstSize:         3,
	}
}

// RateLimitProvider is a token-bucket limiter in front of a Provider.
// Request capacity refills continuously; the token budget resets each
// minute window based on usage reported by the inner provider.
type RateLimitProvider struct {
	inner  Provider
	config *RateLimitConfig

	mu           sync.Mutex
	requestSlots int
	tokenBudget  int
	lastRefill   time.Time
	windowStart  time.Time

	requestsInWindow int
	tokensInWindow   int
}

// NewRateLimitProvider creates a rate-limited provider wrapper.
func NewRateLimitProvider(inner Provider, config *RateLimitConfig) *RateLimitProvider {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	burst := config.BurstSize
	if burst <= 0 {
		burst = 1
	}
	now := time.Now()
	return &RateLimitProvider{
		inner:        inner,
		config:       config,
		requestSlots: burst,
		tokenBudget:  config.TokensPerMinute,
		lastRefill:   now,
		windowStart:  now,
	}
}

// Name returns the underlying provider name.
func (r *RateLimitProvider) Name() string { return r.inner.Name() }

// Complete acquires capacity, delegates, and charges the reported tokens
// against the per-minute budget.
func (r *RateLimitProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}

	resp, err := r.inner.Complete(ctx, prompt, opts)
	if err == nil && resp != nil {
		r.charge(resp.InputTokens + resp.OutputTokens)
	}
	return resp, err
}

// Embed acquires capacity and delegates.
func (r *RateLimitProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, texts)
}

// acquire blocks until both the request bucket and the token budget allow a
// call, or ctx is cancelled.
func (r *RateLimitProvider) acquire(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()

		requestOK := r.config.RequestsPerMinute == 0 || r.requestSlots > 0
		tokensOK := r.config.TokensPerMinute == 0 || r.tokenBudget > 0
		if requestOK && tokensOK {
			if r.config.RequestsPerMinute > 0 {
				r.requestSlots--
			}
			r.requestsInWindow++
			r.mu.Unlock()
			return nil
		}

		wait := r.nextSlotDelay()
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// refill credits request slots for elapsed time and resets the token window
// once a minute has passed. lastRefill only advances by whole slots credited,
// so fractional credit survives sub-slot wakeups. Callers hold r.mu.
func (r *RateLimitProvider) refill() {
	now := time.Now()

	if r.config.RequestsPerMinute > 0 {
		perSlot := time.Minute / time.Duration(r.config.RequestsPerMinute)
		earned := int(now.Sub(r.lastRefill) / perSlot)
		if earned > 0 {
			limit := r.config.BurstSize
			if limit <= 0 {
				limit = 1
			}
			r.requestSlots += earned
			if r.requestSlots > limit {
				r.requestSlots = limit
			}
			r.lastRefill = r.lastRefill.Add(time.Duration(earned) * perSlot)
		}
	} else {
		r.lastRefill = now
	}

	if now.Sub(r.windowStart) >= time.Minute {
		r.windowStart = now
		r.requestsInWindow = 0
		r.tokensInWindow = 0
		r.tokenBudget = r.config.TokensPerMinute
	}
}

// charge records token consumption against the current window.
func (r *RateLimitProvider) charge(tokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokensInWindow += tokens
	r.tokenBudget -= tokens
	if r.tokenBudget < 0 {
		r.tokenBudget = 0
	}
}

// nextSlotDelay estimates how long until capacity frees up. Callers hold r.mu.
func (r *RateLimitProvider) nextSlotDelay() time.Duration {
	if r.config.RequestsPerMinute > 0 && r.requestSlots <= 0 {
		return time.Minute / time.Duration(r.config.RequestsPerMinute)
	}
	if r.config.TokensPerMinute > 0 && r.tokenBudget <= 0 {
		if remaining := time.Minute - time.Since(r.windowStart); remaining > 0 {
			return remaining
		}
	}
	return 100 * time.Millisecond
}

// RateLimitStats is a snapshot of limiter state.
type RateLimitStats struct {
	RequestsInWindow  int
	TokensInWindow    int
	RemainingRequests int
	RemainingTokens   int
	WindowStart       time.Time
}

// Stats returns the current limiter snapshot.
func (r *RateLimitProvider) Stats() RateLimitStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RateLimitStats{
		RequestsInWindow:  r.requestsInWindow,
		TokensInWindow:    r.tokensInWindow,
		RemainingRequests: r.requestSlots,
		RemainingTokens:   r.tokenBudget,
		WindowStart:       r.windowStart,
	}
}

// WithRateLimit wraps a provider with rate limiting. Wrapping nil returns nil.
func WithRateLimit(p Provider, config *RateLimitConfig) Provider {
	if p == nil {
		return nil
	}
	return NewRateLimitProvider(p, config)
}
