package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisChannel carries session events between instances
const RedisChannel = "vaxtrack:session-events"

// RedisBus publishes events through Redis pub/sub so every instance
// clears its dashboards on sign-out.
type RedisBus struct {
	client *redis.Client
	pubsub *redis.PubSub
	log    *zap.Logger
	ls     listeners

	done chan struct{}
	wg   sync.WaitGroup
}

// NewRedisBus subscribes to RedisChannel and starts the delivery loop
func NewRedisBus(ctx context.Context, client *redis.Client, log *zap.Logger) (*RedisBus, error) {
	if log == nil {
		log = zap.NewNop()
	}

	pubsub := client.Subscribe(ctx, RedisChannel)
	// Wait for the subscription confirmation so no event published after
	// construction is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", RedisChannel, err)
	}

	b := &RedisBus{
		client: client,
		pubsub: pubsub,
		log:    log,
		done:   make(chan struct{}),
	}
	b.wg.Add(1)
	go b.loop()
	return b, nil
}

// NewRedisClient parses a redis:// URL
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (b *RedisBus) loop() {
	defer b.wg.Done()
	ch := b.pubsub.Channel()
	for {
		select {
		case <-b.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn("dropping malformed session event", zap.Error(err))
				continue
			}
			b.ls.dispatch(context.Background(), ev)
		}
	}
}

// Publish sends ev to every instance, including this one
func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, RedisChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish session event: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(l Listener) func() {
	return b.ls.add(l)
}

// Close stops the delivery loop and the subscription
func (b *RedisBus) Close() error {
	close(b.done)
	err := b.pubsub.Close()
	b.wg.Wait()
	return err
}
