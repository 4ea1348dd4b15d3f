// Package events mirrors committed operations to external subscribers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/iudanet/gophdocs/pkg/api"
)

// DefaultChannelPrefix is prepended to the document id to form a channel name
const DefaultChannelPrefix = "gophdocs:doc:"

// RedisPublisher publishes OPERATION messages on a per-document Redis channel
type RedisPublisher struct {
	client *redis.Client
	logger *slog.Logger
	prefix string
}

// NewRedisPublisher connects to addr and verifies the connection
func NewRedisPublisher(ctx context.Context, addr, prefix string, logger *slog.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	logger.Info("connected to redis", slog.String("addr", addr))
	return newRedisPublisher(client, prefix, logger), nil
}

func newRedisPublisher(client *redis.Client, prefix string, logger *slog.Logger) *RedisPublisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisPublisher{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// Channel returns the channel name for docID
func (p *RedisPublisher) Channel(docID string) string {
	return p.prefix + docID
}

// PublishOperation publishes msg on the channel of docID
func (p *RedisPublisher) PublishOperation(ctx context.Context, docID string, msg api.OperationMessage) error {
	payload, err := encodeOperation(docID, msg)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.Channel(docID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish operation for %s: %w", docID, err)
	}
	return nil
}

// Subscribe returns a subscription to the channel of docID
func (p *RedisPublisher) Subscribe(ctx context.Context, docID string) *redis.PubSub {
	return p.client.Subscribe(ctx, p.Channel(docID))
}

// Close closes the Redis client
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

func encodeOperation(docID string, msg api.OperationMessage) ([]byte, error) {
	msg.Type = api.MessageOperation
	msg.DocID = docID
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode operation: %w", err)
	}
	return payload, nil
}
