package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// RedisBridge relays broker events through a Redis pub/sub channel.
type RedisBridge struct {
	client  redis.UniversalClient
	channel string
	broker  *Broker
	log     *zap.Logger
}

// NewRedisBridge wires broker to the given channel. Start must be called to
// receive remote events; local events are forwarded once the bridge is the
// broker's relay.
func NewRedisBridge(client redis.UniversalClient, channel string, broker *Broker, log *zap.Logger) *RedisBridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBridge{client: client, channel: channel, broker: broker, log: log}
}

// NewRedisClient builds a client from the notify configuration.
func NewRedisClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// Start subscribes to the channel, installs the bridge as the broker's relay
// and delivers remote events until ctx is done.
func (r *RedisBridge) Start(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.broker.SetRelay(r)

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				r.receive(msg.Payload)
			}
		}
	}()
	return nil
}

func (r *RedisBridge) receive(payload string) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		r.log.Warn("Dropping malformed notify event", zap.Error(err))
		return
	}
	if ev.Origin == r.broker.ID() {
		return
	}
	r.broker.deliver(ev)
}

// Forward publishes ev on the Redis channel. Failures are logged; readers in
// other processes then catch up on their next event.
func (r *RedisBridge) Forward(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.log.Warn("Failed to encode notify event", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.log.Warn("Failed to relay notify event",
			zap.String("channel", r.channel),
			zap.Error(err),
		)
	}
}
