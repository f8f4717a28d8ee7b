// Package queue provides the redis-stream notification delivery queue.
// External delivery workers consume the stream; the engine only appends.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const defaultStream = "stagio:notifications"

// NotificationQueue appends notifications to a redis stream.
type NotificationQueue struct {
	client redis.UniversalClient
	stream string
	logger *slog.Logger
}

// NewNotificationQueue creates a queue over an existing redis client. An
// empty stream name selects the default stream.
func NewNotificationQueue(client redis.UniversalClient, stream string, logger *slog.Logger) *NotificationQueue {
	if stream == "" {
		stream = defaultStream
	}

	return &NotificationQueue{
		client: client,
		stream: stream,
		logger: logger,
	}
}

// Notify appends one notification entry to the stream. Implements
// notification.Notifier.
func (q *NotificationQueue) Notify(ctx context.Context, userID, kind, title, message, link string) error {
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{
			"user_id":   userID,
			"kind":      kind,
			"title":     title,
			"message":   message,
			"link":      link,
			"queued_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append notification to stream %s: %w", q.stream, err)
	}

	return nil
}

// HealthCheck verifies the redis connection.
func (q *NotificationQueue) HealthCheck(ctx context.Context) error {
	err := q.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// Close closes the underlying client.
func (q *NotificationQueue) Close() error {
	return q.client.Close()
}
