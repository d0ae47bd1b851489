package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/soltixdb/statseries/internal/config"
	"github.com/soltixdb/statseries/internal/utils"
)

// NewQueue creates a Queue based on configuration. An empty type disables
// publishing and returns a queue that drops every message.
func NewQueue(cfg config.QueueConfig) (Queue, error) {
	queueType := utils.QueueType(strings.ToLower(cfg.Type))
	if queueType == "" {
		queueType = utils.QueueTypeNone
	}

	switch queueType {
	case utils.QueueTypeNone:
		return Noop{}, nil

	case utils.QueueTypeNATS:
		return newNATSQueue(NATSConfig{
			URL:      cfg.URL,
			Username: cfg.Username,
			Password: cfg.Password,
		})

	case utils.QueueTypeRedis:
		return newRedisQueue(RedisConfig{
			URL:      cfg.URL,
			Password: cfg.Password,
			DB:       cfg.RedisDB,
			Stream:   cfg.RedisStream,
		})

	case utils.QueueTypeKafka:
		return newKafkaQueue(KafkaConfig{
			Brokers: cfg.KafkaBrokers,
		})

	case utils.QueueTypeMemory:
		return newMemoryQueue(), nil

	default:
		return nil, fmt.Errorf("unsupported queue type: %s (supported: none, nats, redis, kafka, memory)", queueType)
	}
}

// NewPublisher creates a Publisher based on configuration
func NewPublisher(cfg config.QueueConfig) (Publisher, error) {
	return NewQueue(cfg)
}

// NewSubscriber creates a Subscriber based on configuration
func NewSubscriber(cfg config.QueueConfig) (Subscriber, error) {
	return NewQueue(cfg)
}

// Noop accepts and discards everything
type Noop struct{}

func (Noop) Publish(_ context.Context, _ string, _ []byte) error { return nil }
func (Noop) Subscribe(_ string, _ MessageHandler) error          { return nil }
func (Noop) Unsubscribe(_ string) error                          { return nil }
func (Noop) Close() error                                        { return nil }
