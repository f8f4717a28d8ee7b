package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stagio/stagio/pkg/engine"
	"github.com/stagio/stagio/pkg/models"
	"github.com/stagio/stagio/pkg/notification"
	"github.com/stagio/stagio/pkg/otelhelper"
	"github.com/stagio/stagio/pkg/persistence"
	"github.com/stagio/stagio/pkg/resolver"
)

// Decision is the operation surface principals use to act on approvals.
// Every action re-resolves eligibility at decision time; nothing about
// authorization is cached on the approval row.
type Decision struct {
	persistence persistence.Persistence
	resolver    *resolver.Resolver
	engine      *engine.Engine
	notifier    notification.Notifier
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewDecision creates the decision service.
func NewDecision(p persistence.Persistence, r *resolver.Resolver, e *engine.Engine, n notification.Notifier, logger *slog.Logger) *Decision {
	return &Decision{
		persistence: p,
		resolver:    r,
		engine:      e,
		notifier:    n,
		logger:      logger,
		tracer:      otel.Tracer("stagio.decision"),
	}
}

// CheckPermissions computes what a principal may currently do with an
// approval. Eligibility comes from a fresh resolution of the approval's step;
// approve and reject are forced off once the row is decided, while commenting
// stays open afterwards.
func (d *Decision) CheckPermissions(ctx context.Context, approvalID, principalID string) (models.Capabilities, error) {
	approval, err := d.persistence.ApprovalRepository().ApprovalByID(ctx, approvalID)
	if err != nil {
		return models.Capabilities{}, err
	}

	return d.capabilitiesFor(ctx, approval, principalID)
}

func (d *Decision) capabilitiesFor(ctx context.Context, approval *models.Approval, principalID string) (models.Capabilities, error) {
	instance, err := d.persistence.InstanceRepository().InstanceByID(ctx, approval.InstanceID)
	if err != nil {
		return models.Capabilities{}, err
	}

	step, err := d.persistence.WorkflowRepository().StepByID(ctx, approval.StepID)
	if err != nil {
		return models.Capabilities{}, err
	}

	approvers, err := d.resolver.Resolve(ctx, step, instance.ResourceType, instance.ResourceID)
	if err != nil {
		return models.Capabilities{}, err
	}

	entry, found := matchApprover(approvers, approval, principalID)
	if !found {
		return models.Capabilities{}, nil
	}

	capabilities := models.Capabilities{
		CanApprove: entry.CanApprove,
		CanReject:  entry.CanReject,
		CanComment: entry.CanComment,
	}

	if approval.IsDecided() {
		capabilities.CanApprove = false
		capabilities.CanReject = false
	}

	return capabilities, nil
}

// matchApprover finds the resolution entry for a principal. When the
// principal appears under several responsibilities the entry behind the
// approval's own responsibility wins; otherwise the first match does.
func matchApprover(approvers []models.ResolvedApprover, approval *models.Approval, principalID string) (models.ResolvedApprover, bool) {
	var first *models.ResolvedApprover

	for i := range approvers {
		if approvers[i].PrincipalID != principalID {
			continue
		}

		if approvers[i].ResponsibilityID == approval.ResponsibilityID {
			return approvers[i], true
		}

		if first == nil {
			first = &approvers[i]
		}
	}

	if first == nil {
		return models.ResolvedApprover{}, false
	}

	return *first, true
}

// Approve records an approval decision. Permission and status checks fail
// atomically before any ledger mutation; notification and transition failures
// after a successful write are logged and swallowed.
func (d *Decision) Approve(ctx context.Context, approvalID, approverID string, comments *string) (*models.Approval, error) {
	return d.decide(ctx, approvalID, approverID, comments, models.ApprovalStatusApproved)
}

// Reject records a rejection decision, gated on the reject capability.
func (d *Decision) Reject(ctx context.Context, approvalID, approverID string, comments *string) (*models.Approval, error) {
	return d.decide(ctx, approvalID, approverID, comments, models.ApprovalStatusRejected)
}

func (d *Decision) decide(ctx context.Context, approvalID, approverID string, comments *string, status models.ApprovalStatus) (*models.Approval, error) {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "decision."+string(status),
		attribute.String(otelhelper.ApprovalIDKey, approvalID),
		attribute.String(otelhelper.PrincipalIDKey, approverID),
	)
	defer span.End()

	approval, err := d.persistence.ApprovalRepository().ApprovalByID(ctx, approvalID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if approval.IsDecided() {
		return nil, fmt.Errorf("approval %s: %w", approvalID, ErrAlreadyDecided)
	}

	capabilities, err := d.capabilitiesFor(ctx, approval, approverID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	allowed := capabilities.CanApprove
	if status == models.ApprovalStatusRejected {
		allowed = capabilities.CanReject
	}

	if !allowed {
		return nil, fmt.Errorf("principal %s on approval %s: %w", approverID, approvalID, ErrPermissionDenied)
	}

	now := time.Now().UTC()
	previous := approval.Status
	approval.Status = status
	approval.ApproverID = &approverID
	approval.ResponseTime = &now

	if comments != nil {
		approval.Comments = comments
	}

	updated, err := d.persistence.ApprovalRepository().RecordDecision(ctx, approval)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if !updated {
		return nil, fmt.Errorf("approval %s: %w", approvalID, ErrAlreadyDecided)
	}

	action := models.HistoryActionApproved
	if status == models.ApprovalStatusRejected {
		action = models.HistoryActionRejected
	}

	err = d.persistence.HistoryRepository().Append(ctx, &models.ApprovalHistory{
		ApprovalID:     approval.ID,
		InstanceID:     approval.InstanceID,
		Action:         action,
		PreviousStatus: previous,
		NewStatus:      status,
		ActorID:        approverID,
		Comments:       comments,
	})
	if err != nil {
		// The decision is already durable; the audit append is retried by
		// nothing, so surface the failure in logs without undoing anything.
		d.logger.ErrorContext(ctx, "failed to append decision history",
			"approval_id", approval.ID, "error", err)
	}

	d.notifyRequestor(ctx, approval, status)

	// Transition failures never undo the recorded decision. A later decision
	// or an explicit transition call re-evaluates the step.
	err = d.engine.Transition(ctx, approval.InstanceID)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to transition instance after decision",
			"instance_id", approval.InstanceID, "approval_id", approval.ID, "error", err)
	}

	return approval, nil
}

func (d *Decision) notifyRequestor(ctx context.Context, approval *models.Approval, status models.ApprovalStatus) {
	err := d.notifier.Notify(ctx, approval.RequestorID, notification.KindApprovalDecided,
		"Approval "+string(status),
		fmt.Sprintf("An approver marked your request %s.", status),
		"/approvals/"+approval.ID,
	)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to deliver decision notification",
			"user_id", approval.RequestorID, "approval_id", approval.ID, "error", err)
	}
}

// AddComment overwrites the approval's latest-comment field and appends a
// commented audit entry. Commenting stays allowed after a decision.
func (d *Decision) AddComment(ctx context.Context, approvalID, principalID, comments string) (*models.Approval, error) {
	approval, err := d.persistence.ApprovalRepository().ApprovalByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}

	capabilities, err := d.capabilitiesFor(ctx, approval, principalID)
	if err != nil {
		return nil, err
	}

	if !capabilities.CanComment {
		return nil, fmt.Errorf("principal %s on approval %s: %w", principalID, approvalID, ErrPermissionDenied)
	}

	err = d.persistence.ApprovalRepository().UpdateComments(ctx, approvalID, comments)
	if err != nil {
		return nil, err
	}

	approval.Comments = &comments

	err = d.persistence.HistoryRepository().Append(ctx, &models.ApprovalHistory{
		ApprovalID:     approval.ID,
		InstanceID:     approval.InstanceID,
		Action:         models.HistoryActionCommented,
		PreviousStatus: approval.Status,
		NewStatus:      approval.Status,
		ActorID:        principalID,
		Comments:       &comments,
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to append comment history",
			"approval_id", approval.ID, "error", err)
	}

	return approval, nil
}

// ListPendingFor returns the pending approvals a principal may currently
// decide on. Eligibility is recomputed per row against the live directory,
// which keeps the inbox correct under role changes at a linear resolution
// cost per pending row.
func (d *Decision) ListPendingFor(ctx context.Context, principalID string) ([]*models.Approval, error) {
	pending, err := d.persistence.ApprovalRepository().PendingApprovals(ctx)
	if err != nil {
		return nil, err
	}

	actionable := make([]*models.Approval, 0)

	for _, approval := range pending {
		capabilities, err := d.capabilitiesFor(ctx, approval, principalID)
		if err != nil {
			return nil, err
		}

		if capabilities.CanApprove || capabilities.CanReject {
			actionable = append(actionable, approval)
		}
	}

	return actionable, nil
}
