package main

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagio/stagio/pkg/models"
	"github.com/stagio/stagio/pkg/notification"
	"github.com/stagio/stagio/pkg/persistence/file"
)

type recordedReminder struct {
	userID string
	kind   string
	link   string
}

type recordingNotifier struct {
	failFor string
	sent    []recordedReminder
}

func (n *recordingNotifier) Notify(_ context.Context, userID, kind, _, _, link string) error {
	if userID == n.failFor {
		return errors.New("notification channel unavailable")
	}

	n.sent = append(n.sent, recordedReminder{userID: userID, kind: kind, link: link})

	return nil
}

func TestReminder_Run(t *testing.T) {
	ctx := t.Context()
	p := file.NewPersistence(t.TempDir())
	notifier := &recordingNotifier{}

	stale := time.Now().UTC().Add(-48 * time.Hour)
	responseTime := time.Now().UTC()
	approverID := "carol"

	approvals := []*models.Approval{
		{
			InstanceID:       "instance-1",
			StepID:           "step-1",
			ResponsibilityID: "resp-1",
			AssigneeID:       "alice",
			RequestorID:      "requestor-1",
			RequestTime:      stale,
		},
		{
			// Fresh request, not yet old enough for a reminder.
			InstanceID:       "instance-1",
			StepID:           "step-1",
			ResponsibilityID: "resp-1",
			AssigneeID:       "bob",
			RequestorID:      "requestor-1",
		},
		{
			InstanceID:       "instance-2",
			StepID:           "step-1",
			ResponsibilityID: "resp-1",
			AssigneeID:       "carol",
			RequestorID:      "requestor-1",
			RequestTime:      stale,
			Status:           models.ApprovalStatusApproved,
			ApproverID:       &approverID,
			ResponseTime:     &responseTime,
		},
	}
	require.NoError(t, p.ApprovalRepository().CreateBatch(ctx, approvals))

	reminder := NewReminder(slog.Default(), p, notifier, 24*time.Hour)

	err := reminder.Run(ctx)
	require.NoError(t, err)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "alice", notifier.sent[0].userID)
	assert.Equal(t, notification.KindApprovalReminder, notifier.sent[0].kind)
	assert.Equal(t, "/v1/approvals/"+approvals[0].ID, notifier.sent[0].link)
}

func TestReminder_Run_NotifyFailureSkipsRow(t *testing.T) {
	ctx := t.Context()
	p := file.NewPersistence(t.TempDir())
	notifier := &recordingNotifier{failFor: "alice"}

	stale := time.Now().UTC().Add(-48 * time.Hour)

	approvals := []*models.Approval{
		{
			InstanceID:       "instance-1",
			StepID:           "step-1",
			ResponsibilityID: "resp-1",
			AssigneeID:       "alice",
			RequestorID:      "requestor-1",
			RequestTime:      stale,
		},
		{
			InstanceID:       "instance-1",
			StepID:           "step-1",
			ResponsibilityID: "resp-2",
			AssigneeID:       "bob",
			RequestorID:      "requestor-1",
			RequestTime:      stale,
		},
	}
	require.NoError(t, p.ApprovalRepository().CreateBatch(ctx, approvals))

	reminder := NewReminder(slog.Default(), p, notifier, 24*time.Hour)

	err := reminder.Run(ctx)
	require.NoError(t, err)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "bob", notifier.sent[0].userID)
}
