// Package events defines event types and structures for approval lifecycle
// notifications published on the event bus.
package events

import "time"

type EventType string

// Bus topic.
const Topic = "stagio.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const NotificationQueuedEvent EventType = "notification.queued"

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationQueued carries one user notification for downstream delivery
// (mail, in-app inbox). The engine treats publication as fire-and-forget.
type NotificationQueued struct {
	BaseEvent

	UserID  string `json:"user_id"`
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Link    string `json:"link,omitempty"`
}

func (n NotificationQueued) GetType() EventType {
	return NotificationQueuedEvent
}
