package cmd

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/stagio/stagio/pkg/notification"
	"github.com/stagio/stagio/pkg/queue"
)

// NewNotifier builds the notification channel. With a Redis URL deliveries
// go to the notification stream; without one they are logged only, which is
// what demo mode does.
func NewNotifier(redisURL string, logger *slog.Logger) notification.Notifier {
	if redisURL == "" {
		return notification.NewSlogNotifier(logger)
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to parse redis URL: %w", err))
	}

	return queue.NewNotificationQueue(redis.NewClient(opts), "", logger)
}
