package live

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisHub implements Hub over Redis pub/sub so that every API instance sees
// writes made by the others.
type RedisHub struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

func NewRedisHub(redisURL string, log *zap.Logger) (*RedisHub, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisHubWithClient(client, log), nil
}

func NewRedisHubWithClient(client *redis.Client, log *zap.Logger) *RedisHub {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisHub{client: client, prefix: "tasksync:changes:", log: log}
}

func (h *RedisHub) channel(collection string) string {
	return h.prefix + collection
}

func (h *RedisHub) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := h.client.Publish(ctx, h.channel(event.Collection), payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (h *RedisHub) Subscribe(ctx context.Context, collection string) (Listener, error) {
	ps := h.client.Subscribe(ctx, h.channel(collection))
	// wait for the subscription confirmation so no publish is missed afterwards
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}

	l := &redisListener{
		pubsub: ps,
		events: make(chan Event, listenerBuffer),
	}
	go l.pump(h.log)
	return l, nil
}

func (h *RedisHub) Close() error {
	return h.client.Close()
}

type redisListener struct {
	pubsub *redis.PubSub
	events chan Event
	once   sync.Once
}

func (l *redisListener) pump(log *zap.Logger) {
	defer close(l.events)
	for msg := range l.pubsub.Channel() {
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Warn("live: drop malformed event", zap.String("channel", msg.Channel), zap.Error(err))
			continue
		}
		select {
		case l.events <- event:
		default:
		}
	}
}

func (l *redisListener) Events() <-chan Event {
	return l.events
}

func (l *redisListener) Close() error {
	var err error
	l.once.Do(func() {
		err = l.pubsub.Close()
	})
	return err
}
