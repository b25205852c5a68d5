package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/vortexis/hackhub/backend/internal/config"
	"github.com/vortexis/hackhub/backend/pkg/logger"
)

const (
	redisChannelPrefix  = "chat:"
	redisChannelPattern = redisChannelPrefix + "conversation_*"
)

// NewRedisClient connects and pings Redis.
func NewRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return c, nil
}

// RedisBroker fans events out across server instances. Publish goes to Redis only;
// frames come back through the pattern subscription and reach local subscribers,
// including those of the publishing instance.
type RedisBroker struct {
	client *redis.Client
	local  *LocalBroker
	log    zerolog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{
		client: client,
		local:  NewLocalBroker(),
		log:    logger.Component("broker"),
	}
}

func (b *RedisBroker) Mode() string { return "redis" }

// Start subscribes to every conversation channel and pumps frames to local
// subscribers until Close or ctx cancellation.
func (b *RedisBroker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return nil
	}

	pubsub := b.client.PSubscribe(ctx, redisChannelPattern)
	// wait for the subscription confirmation so no publish is missed after Start returns
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("redis: psubscribe: %w", err)
	}
	b.pubsub = pubsub
	b.done = make(chan struct{})

	go b.pump(ctx, pubsub.Channel(), b.done)
	b.log.Info().Str("pattern", redisChannelPattern).Msg("redis broker subscribed")
	return nil
}

func (b *RedisBroker) pump(ctx context.Context, ch <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			group := strings.TrimPrefix(msg.Channel, redisChannelPrefix)
			b.local.Deliver(group, []byte(msg.Payload))
		}
	}
}

func (b *RedisBroker) Publish(ctx context.Context, group string, ev Event) error {
	frame, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, redisChannelPrefix+group, frame).Err()
}

func (b *RedisBroker) Subscribe(group string, sub Subscriber) func() {
	return b.local.Subscribe(group, sub)
}

func (b *RedisBroker) SubscriberCount() int {
	return b.local.SubscriberCount()
}

// Close stops the subscription pump. The Redis client is owned by the caller.
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	pubsub, done := b.pubsub, b.done
	b.pubsub = nil
	b.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}
