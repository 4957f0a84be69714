package anthropic

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimitedClient throttles CreateMessage calls client-side so bursts of
// parallel pillar work do not trip the provider's rate limits before the
// retry layer even sees a 429.
type rateLimitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

// NewRateLimited wraps a client with a requests-per-minute budget. A zero or
// negative rpm disables throttling.
func NewRateLimited(inner Client, rpm float64) Client {
	if rpm <= 0 {
		return inner
	}
	return &rateLimitedClient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rpm/60.0), 1),
	}
}

func (c *rateLimitedClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.CreateMessage(ctx, req)
}
