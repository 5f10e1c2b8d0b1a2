package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shuttleops/movesync/common/models"
)

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Client wraps redis.Client with the operations movesync needs
type Client struct {
	redis  *redis.Client
	logger Logger
}

// NewClient creates a new Redis client wrapper
func NewClient(redisClient *redis.Client, logger Logger) *Client {
	return &Client{
		redis:  redisClient,
		logger: logger,
	}
}

// GetUnderlying returns the underlying redis.Client for advanced operations
func (c *Client) GetUnderlying() *redis.Client {
	return c.redis
}

// Health pings the server
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

// Close closes the connection pool
func (c *Client) Close() error {
	return c.redis.Close()
}

// AddToStream adds a message to a capped Redis stream
func (c *Client) AddToStream(ctx context.Context, stream string, maxLen int64, values map[string]interface{}) (string, error) {
	id, err := c.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		c.logger.Error("redis XADD failed", "stream", stream, "error", err)
		return "", fmt.Errorf("failed to add to stream %s: %w", stream, err)
	}
	c.logger.Debug("redis XADD", "stream", stream, "id", id)
	return id, nil
}

// StreamPublisher appends transition events to a Redis stream
type StreamPublisher struct {
	client *Client
	stream string
	maxLen int64
}

// NewStreamPublisher creates a publisher writing to stream, keeping about maxLen entries
func NewStreamPublisher(client *Client, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// PublishTransition appends one event
func (p *StreamPublisher) PublishTransition(ctx context.Context, ev models.TransitionEvent) error {
	_, err := p.client.AddToStream(ctx, p.stream, p.maxLen, map[string]interface{}{
		"action":       ev.Action,
		"actor":        ev.Actor,
		"driver_id":    ev.DriverID,
		"carrier_code": ev.CarrierCode,
		"move_id":      ev.MoveID,
		"slot":         string(ev.Slot),
		"status":       ev.Status,
		"saga_step":    string(ev.Step),
		"warning":      ev.Warning,
		"at":           ev.At.UTC().Format(time.RFC3339Nano),
	})
	return err
}
