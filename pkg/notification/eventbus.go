package notification

import (
	"context"
	"time"

	"github.com/stagio/stagio/pkg/eventbus"
	"github.com/stagio/stagio/pkg/events"
)

// EventBusNotifier publishes notifications on the event bus for downstream
// delivery workers (mail, in-app inbox).
type EventBusNotifier struct {
	bus eventbus.EventBus
}

// NewEventBusNotifier creates an event-bus backed notifier.
func NewEventBusNotifier(bus eventbus.EventBus) *EventBusNotifier {
	return &EventBusNotifier{bus: bus}
}

func (n *EventBusNotifier) Notify(ctx context.Context, userID, kind, title, message, link string) error {
	event := events.NotificationQueued{
		BaseEvent: events.BaseEvent{
			ID:        n.bus.GenerateID(),
			Type:      events.NotificationQueuedEvent,
			Timestamp: time.Now().UTC(),
		},
		UserID:  userID,
		Kind:    kind,
		Title:   title,
		Message: message,
		Link:    link,
	}

	return n.bus.Publish(ctx, userID, event)
}
