package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/atma-clinic-ai/internal/config"
	"github.com/wolfman30/atma-clinic-ai/internal/conversation"
	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

// BuildNLU wires the language layer. Gemini is the primary model and Bedrock
// the fallback; each sits behind its own circuit breaker. Whatever the LLM
// cannot answer is handled by the keyword rules, which is also the only layer
// when no model is configured.
func BuildNLU(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, observer conversation.NLUObserver, logger *logging.Logger) (conversation.NLU, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	rules := conversation.NewRuleNLU()

	var clients []conversation.LLMClient
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		clients = append(clients, conversation.NewBreakerLLMClient("gemini", gemini, cfg.NLUBreakerMaxFailures, cfg.NLUBreakerCooldown, logger))
	}
	if model := strings.TrimSpace(cfg.BedrockModelID); model != "" {
		if awsCfg == nil {
			logger.Warn("bedrock model configured without aws config; skipping bedrock")
		} else {
			bedrock := conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(*awsCfg), model)
			clients = append(clients, conversation.NewBreakerLLMClient("bedrock", bedrock, cfg.NLUBreakerMaxFailures, cfg.NLUBreakerCooldown, logger))
		}
	}

	if len(clients) == 0 {
		logger.Warn("no LLM configured; using keyword rules only")
		return rules, nil
	}

	client := clients[0]
	if len(clients) > 1 {
		client = conversation.NewFallbackLLMClient(clients[0], clients[1], logger)
	}
	opts := []conversation.LLMNLUOption{conversation.WithNLUTimeout(cfg.NLUTimeout)}
	if observer != nil {
		opts = append(opts, conversation.WithNLUObserver(observer))
	}
	logger.Info("LLM nlu enabled", "providers", len(clients))
	return conversation.NewFallbackNLU(conversation.NewLLMNLU(client, logger, opts...), rules, logger), nil
}
