package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is used when no channel is configured.
const DefaultRedisChannel = "organograma:directory"

// RedisNotifier shares changes between service replicas over Redis pub/sub.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

func NewRedisNotifier(client *redis.Client, channel string, logger *slog.Logger) *RedisNotifier {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisNotifier{client: client, channel: channel, logger: logger}
}

func (n *RedisNotifier) Publish(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Subscribe(ctx context.Context) (<-chan Change, error) {
	ps := n.client.Subscribe(ctx, n.channel)
	// wait for the subscription confirmation so no publish is missed after
	// Subscribe returns
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", n.channel, err)
	}

	out := make(chan Change, defaultBuffer)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				receivedEvents.WithLabelValues("redis").Inc()
				change, err := decodeChange([]byte(msg.Payload))
				if err != nil {
					n.logger.WarnContext(ctx, "ignoring malformed directory notification",
						"payload", msg.Payload,
						"error", err,
					)
					continue
				}
				select {
				case out <- change:
				default:
					droppedEvents.Inc()
				}
			}
		}
	}()
	return out, nil
}
