package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisFeedConfig configures the Redis Pub/Sub feed implementation.
type RedisFeedConfig struct {
	Client redis.UniversalClient
	// Prefix names the Pub/Sub channel family; one channel exists per
	// recipient. Defaults to "backendbus:notifications".
	Prefix string
	Buffer int
	Logger *log.Logger
}

// NewRedisFeed initialises a feed backed by Redis Pub/Sub so multiple API
// processes observe the same notification changes.
func NewRedisFeed(cfg RedisFeedConfig) (*RedisFeed, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = "backendbus:notifications"
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 32
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &RedisFeed{
		client: cfg.Client,
		prefix: prefix,
		buffer: cfg.Buffer,
		logger: logger,
	}, nil
}

type RedisFeed struct {
	client redis.UniversalClient
	prefix string
	buffer int
	logger *log.Logger
}

func (f *RedisFeed) channelName(recipientID uint) string {
	return fmt.Sprintf("%s:%d", f.prefix, recipientID)
}

func (f *RedisFeed) Publish(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, f.channelName(change.RecipientID()), payload).Err()
}

func (f *RedisFeed) Subscribe(recipientID uint) (Subscription, error) {
	pubsub := f.client.Subscribe(context.Background(), f.channelName(recipientID))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		ch:     make(chan Change, f.buffer),
	}
	go sub.loop(f.logger)
	return sub, nil
}

type redisSubscription struct {
	once   sync.Once
	pubsub *redis.PubSub
	ch     chan Change
}

func (s *redisSubscription) loop(logger *log.Logger) {
	for msg := range s.pubsub.Channel() {
		var change Change
		if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
			logger.Printf("realtime: dropping malformed feed payload: %v", err)
			continue
		}
		select {
		case s.ch <- change:
		default:
			// Slow consumer; drop rather than stall the Pub/Sub reader.
		}
	}
	close(s.ch)
}

func (s *redisSubscription) Changes() <-chan Change {
	return s.ch
}

func (s *redisSubscription) Close() {
	s.once.Do(func() {
		if err := s.pubsub.Close(); err != nil {
			log.Printf("realtime: closing redis subscription: %v", err)
		}
	})
}
