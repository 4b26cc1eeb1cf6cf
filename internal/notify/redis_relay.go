package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultRelayChannel is the Redis channel shared by every instance.
const DefaultRelayChannel = "newscast:events"

// RedisClient is the subset of *redis.Client used by the relay.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// RedisRelay publishes events to a Redis channel and forwards every message
// on that channel into the local registry, so subscribers connected to any
// instance see events raised on any other.
type RedisRelay struct {
	client   RedisClient
	channel  string
	registry *Registry
	logger   zerolog.Logger
}

type relayEnvelope struct {
	ParentFilter string `json:"parent_filter,omitempty"`
	Event        Event  `json:"event"`
}

// NewRedisRelay builds a relay on channel (DefaultRelayChannel when empty).
func NewRedisRelay(client RedisClient, channel string, registry *Registry, logger zerolog.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{client: client, channel: channel, registry: registry, logger: logger}
}

func (r *RedisRelay) Publish(ctx context.Context, evt Event, parentFilter string) error {
	payload, err := json.Marshal(relayEnvelope{ParentFilter: parentFilter, Event: evt})
	if err != nil {
		return fmt.Errorf("encode relay event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish relay event: %w", err)
	}
	return nil
}

// Run subscribes to the channel and forwards messages until ctx ends.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info().Str("channel", r.channel).Msg("relay: subscribed")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.deliver([]byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) deliver(payload []byte) int {
	var env relayEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		r.logger.Warn().Err(err).Msg("relay: discard malformed message")
		return 0
	}
	return r.registry.Notify(env.Event, env.ParentFilter)
}

var _ Publisher = (*RedisRelay)(nil)
