package conversation

import (
	"context"
	"errors"

	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

// FallbackLLMClient sends a call to the secondary provider when the primary
// fails. A nil secondary makes it a pass-through.
type FallbackLLMClient struct {
	primary   LLMClient
	secondary LLMClient
	logger    *logging.Logger
}

func NewFallbackLLMClient(primary, secondary LLMClient, logger *logging.Logger) *FallbackLLMClient {
	if primary == nil {
		panic("conversation: primary llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackLLMClient{primary: primary, secondary: secondary, logger: logger}
}

func (c *FallbackLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil || c.secondary == nil {
		return resp, err
	}
	// The turn deadline is shared; a timed-out turn gets no second attempt.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return LLMResponse{}, errors.Join(err, ctxErr)
	}
	c.logger.Warn("primary nlu provider failed, using secondary", "error", err)

	// The secondary provider has its own model id.
	req.Model = ""
	resp, secondaryErr := c.secondary.Complete(ctx, req)
	if secondaryErr != nil {
		return LLMResponse{}, errors.Join(err, secondaryErr)
	}
	return resp, nil
}
