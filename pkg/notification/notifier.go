// Package notification defines the fire-and-forget notification gateway
// invoked on workflow state changes. Delivery failures are logged at the call
// site and never participate in the engine's transaction boundaries.
package notification

import (
	"context"
	"log/slog"
)

// Notification kinds emitted by the engine and decision service.
const (
	KindApprovalRequested = "approval.requested"
	KindApprovalDecided   = "approval.decided"
	KindApprovalReminder  = "approval.reminder"
	KindInstanceApproved  = "instance.approved"
	KindInstanceRejected  = "instance.rejected"
)

// Notifier is the notification gateway contract. Implementations deliver
// best-effort; a returned error means delivery failed, and callers only log it.
type Notifier interface {
	Notify(ctx context.Context, userID, kind, title, message, link string) error
}

// SlogNotifier writes notifications to the log. It is the fallback gateway
// for demo mode and tests.
type SlogNotifier struct {
	logger *slog.Logger
}

// NewSlogNotifier creates a log-backed notifier.
func NewSlogNotifier(logger *slog.Logger) *SlogNotifier {
	return &SlogNotifier{logger: logger}
}

func (n *SlogNotifier) Notify(ctx context.Context, userID, kind, title, message, link string) error {
	n.logger.InfoContext(ctx, "notification",
		"user_id", userID,
		"kind", kind,
		"title", title,
		"message", message,
		"link", link,
	)

	return nil
}
