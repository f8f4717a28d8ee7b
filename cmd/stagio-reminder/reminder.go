package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stagio/stagio/pkg/notification"
	"github.com/stagio/stagio/pkg/persistence"
)

type Reminder struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	notifier    notification.Notifier
	olderThan   time.Duration
	scheduler   *cron.Cron
}

func NewReminder(
	logger *slog.Logger,
	p persistence.Persistence,
	notifier notification.Notifier,
	olderThan time.Duration,
) *Reminder {
	return &Reminder{
		logger:      logger,
		persistence: p,
		notifier:    notifier,
		olderThan:   olderThan,
		scheduler:   cron.New(),
	}
}

// Start registers the run on the given cron schedule and starts the
// scheduler in its own goroutine.
func (r *Reminder) Start(ctx context.Context, schedule string) error {
	_, err := r.scheduler.AddFunc(schedule, func() {
		if err := r.Run(ctx); err != nil {
			r.logger.ErrorContext(ctx, "Reminder run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminder run: %w", err)
	}

	r.scheduler.Start()

	r.logger.InfoContext(ctx, "Reminder daemon started", "schedule", schedule)

	return nil
}

func (r *Reminder) Stop() {
	<-r.scheduler.Stop().Done()
}

// Run notifies the assignee of every approval request that has been pending
// longer than the configured age. Notification failures are logged per row
// and never abort the sweep.
func (r *Reminder) Run(ctx context.Context) error {
	pending, err := r.persistence.ApprovalRepository().PendingApprovals(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending approvals: %w", err)
	}

	cutoff := time.Now().Add(-r.olderThan)
	reminded := 0

	for _, approval := range pending {
		if approval.RequestTime.After(cutoff) {
			continue
		}

		err := r.notifier.Notify(ctx,
			approval.AssigneeID,
			notification.KindApprovalReminder,
			"Approval request still pending",
			fmt.Sprintf("An approval request assigned to you has been waiting since %s.",
				approval.RequestTime.Format(time.RFC822)),
			"/v1/approvals/"+approval.ID,
		)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to send reminder",
				"approval_id", approval.ID,
				"assignee_id", approval.AssigneeID,
				"error", err)

			continue
		}

		reminded++
	}

	r.logger.InfoContext(ctx, "Reminder run finished",
		"pending", len(pending),
		"reminded", reminded)

	return nil
}
