package pubsub

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/watchhub/signalhub/internal/config"
)

const connsPerCPU = 10
const maxIdleTime = 10 * time.Minute

// makePubSubFromRedis drops the teacher's redisotel instrumentation
// (SPEC_FULL.md dropped-dependency list): OTLP tracing of the presence/
// signaling fanout path was judged not worth the dependency given nothing
// else in this component touches otel directly.
func makePubSubFromRedis(ctx context.Context, cfg *config.Config) (PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:        cfg.Redis.Password,
		PoolFIFO:        true,
		PoolSize:        runtime.GOMAXPROCS(0) * connsPerCPU,
		MinIdleConns:    runtime.GOMAXPROCS(0),
		ConnMaxIdleTime: maxIdleTime,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisPubSub{client: client}, nil
}

type redisPubSub struct {
	client *redis.Client
}

func (p *redisPubSub) Publish(topic string, message []byte) error {
	ctx := context.Background()
	if err := p.client.Publish(ctx, topic, message).Err(); err != nil {
		return fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}
	return nil
}

func (p *redisPubSub) Subscribe(topic string) Subscription {
	ctx := context.Background()
	sub := p.client.Subscribe(ctx, topic)
	return &redisSubscription{ch: sub.Channel(), sub: sub}
}

func (p *redisPubSub) Close() error {
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	return nil
}

type redisSubscription struct {
	ch  <-chan *redis.Message
	sub *redis.PubSub
}

func (s *redisSubscription) Close() error {
	if err := s.sub.Close(); err != nil {
		return fmt.Errorf("failed to close redis subscription: %w", err)
	}
	return nil
}

func (s *redisSubscription) Channel() <-chan []byte {
	out := make(chan []byte)
	go func() {
		defer close(out)
		for msg := range s.ch {
			out <- []byte(msg.Payload)
		}
	}()
	return out
}
