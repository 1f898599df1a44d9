package conversation

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

// BreakerLLMClient stops calling a failing provider for a cooldown period so
// turns fall back quickly instead of waiting on timeouts.
type BreakerLLMClient struct {
	next    LLMClient
	breaker *gobreaker.CircuitBreaker[LLMResponse]
}

// NewBreakerLLMClient trips after maxFailures consecutive errors and probes
// again after cooldown.
func NewBreakerLLMClient(name string, next LLMClient, maxFailures int, cooldown time.Duration, logger *logging.Logger) *BreakerLLMClient {
	if next == nil {
		panic("conversation: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("llm circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerLLMClient{next: next, breaker: gobreaker.NewCircuitBreaker[LLMResponse](settings)}
}

func (c *BreakerLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	return c.breaker.Execute(func() (LLMResponse, error) {
		return c.next.Complete(ctx, req)
	})
}
