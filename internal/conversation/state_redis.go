package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var conversationTracer = otel.Tracer("atma.internal.conversation")

// RedisStateStore stores conversation state as JSON strings with an expiry.
type RedisStateStore struct {
	client *redis.Client
}

// NewRedisStateStore creates a Redis-backed state store.
func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	return &RedisStateStore{client: client}
}

func (s *RedisStateStore) Get(ctx context.Context, key string) (*State, error) {
	ctx, span := conversationTracer.Start(ctx, "conversation.state.get")
	defer span.End()

	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: load state: %w", err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		// A blob we cannot read is as good as no state.
		span.SetAttributes(attribute.Bool("atma.state_corrupt", true))
		return nil, nil
	}
	span.SetAttributes(attribute.String("atma.step", string(st.Step)))
	return &st, nil
}

func (s *RedisStateStore) Put(ctx context.Context, key string, state State, ttl time.Duration) error {
	ctx, span := conversationTracer.Start(ctx, "conversation.state.put")
	defer span.End()
	span.SetAttributes(attribute.String("atma.step", string(state.Step)))

	if ttl <= 0 {
		ttl = DefaultOfferTTL
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("conversation: encode state: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: save state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("conversation: clear state: %w", err)
	}
	return nil
}
