// Package engine owns the workflow instance lifecycle: idempotent creation,
// step-completion evaluation and the transition to the next step or a
// terminal state. The engine is request-triggered; every state change happens
// synchronously inside the caller's request.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stagio/stagio/pkg/models"
	"github.com/stagio/stagio/pkg/notification"
	"github.com/stagio/stagio/pkg/otelhelper"
	"github.com/stagio/stagio/pkg/persistence"
	"github.com/stagio/stagio/pkg/resolver"
)

// Engine-level errors surfaced to callers of CreateInstance.
var (
	// ErrWorkflowNotFound indicates the workflow definition does not exist.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

	// ErrWorkflowInactive indicates the workflow is not in active status and
	// cannot spawn instances.
	ErrWorkflowInactive = errors.New("workflow is not active")
)

// Engine drives workflow instances forward.
type Engine struct {
	persistence persistence.Persistence
	resolver    *resolver.Resolver
	notifier    notification.Notifier
	logger      *slog.Logger
	tracer      trace.Tracer

	// Per-instance locks serialize transition evaluation in-process. The
	// conditional step update in the instance repository guards the
	// cross-process race.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewEngine creates a workflow engine.
func NewEngine(p persistence.Persistence, r *resolver.Resolver, n notification.Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		persistence: p,
		resolver:    r,
		notifier:    n,
		logger:      logger,
		tracer:      otel.Tracer("stagio.engine"),
		locks:       make(map[string]*sync.Mutex),
	}
}

func (e *Engine) instanceLock(instanceID string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()

	lock, ok := e.locks[instanceID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[instanceID] = lock
	}

	return lock
}

// CreateInstance starts a workflow run for a resource. Creation is
// idempotent: when a non-terminal instance already exists for the resource it
// is returned unchanged.
func (e *Engine) CreateInstance(ctx context.Context, workflowID string, resourceType models.ResourceType, resourceID, createdBy string) (*models.WorkflowInstance, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.CreateInstance",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.ResourceIDKey, resourceID),
	)
	defer span.End()

	workflow, err := e.persistence.WorkflowRepository().WorkflowByID(ctx, workflowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if !workflow.IsActive() {
		otelhelper.SetError(span, ErrWorkflowInactive)

		return nil, fmt.Errorf("workflow %s: %w", workflowID, ErrWorkflowInactive)
	}

	existing, err := e.persistence.InstanceRepository().ActiveByResource(ctx, resourceType, resourceID)
	if err != nil && !persistence.IsInstanceNotFound(err) {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if existing != nil {
		return existing, nil
	}

	instance := &models.WorkflowInstance{
		WorkflowID:          workflow.ID,
		ResourceType:        resourceType,
		ResourceID:          resourceID,
		Status:              models.InstanceStatusPending,
		CurrentStepSequence: 1,
		CreatedBy:           createdBy,
	}

	err = e.persistence.InstanceRepository().Create(ctx, instance)
	if err != nil {
		// A concurrent creation may have won the race; fall back to a fetch.
		if persistence.IsInstanceAlreadyExists(err) {
			return e.persistence.InstanceRepository().ActiveByResource(ctx, resourceType, resourceID)
		}

		otelhelper.SetError(span, err)

		return nil, err
	}

	step := workflow.StepAt(1)
	if step == nil {
		// A workflow with no first step never progresses. The instance stays
		// pending with no approvals; it is not auto-approved.
		return instance, nil
	}

	err = e.openStep(ctx, instance, step)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	err = e.persistence.InstanceRepository().UpdateStatus(ctx, instance.ID, models.InstanceStatusInProgress)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	instance.Status = models.InstanceStatusInProgress

	return instance, nil
}

// openStep resolves the step's approvers, creates their pending ledger rows
// with created history entries, and notifies each assignee.
func (e *Engine) openStep(ctx context.Context, instance *models.WorkflowInstance, step *models.WorkflowStep) error {
	approvers, err := e.resolver.Resolve(ctx, step, instance.ResourceType, instance.ResourceID)
	if err != nil {
		return fmt.Errorf("failed to resolve approvers for step %s: %w", step.ID, err)
	}

	approvals := make([]*models.Approval, 0, len(approvers))

	for _, approver := range approvers {
		approvals = append(approvals, &models.Approval{
			InstanceID:       instance.ID,
			StepID:           step.ID,
			ResponsibilityID: approver.ResponsibilityID,
			AssigneeID:       approver.PrincipalID,
			RequestorID:      instance.CreatedBy,
			Status:           models.ApprovalStatusPending,
			Responsible:      approver.CanApprove,
		})
	}

	err = e.persistence.ApprovalRepository().CreateBatch(ctx, approvals)
	if err != nil {
		return fmt.Errorf("failed to create approvals for step %s: %w", step.ID, err)
	}

	for _, approval := range approvals {
		err = e.persistence.HistoryRepository().Append(ctx, &models.ApprovalHistory{
			ApprovalID:     approval.ID,
			InstanceID:     instance.ID,
			Action:         models.HistoryActionCreated,
			PreviousStatus: models.ApprovalStatusPending,
			NewStatus:      models.ApprovalStatusPending,
			ActorID:        instance.CreatedBy,
		})
		if err != nil {
			return fmt.Errorf("failed to append created history for approval %s: %w", approval.ID, err)
		}
	}

	for _, approval := range approvals {
		e.notify(ctx, approval.AssigneeID, notification.KindApprovalRequested,
			"Approval requested",
			fmt.Sprintf("A %s on step %q awaits your decision.", instance.ResourceType, step.Name),
			"/approvals/"+approval.ID,
		)
	}

	return nil
}

// Transition re-evaluates the current step of an instance and advances it,
// terminates it, or leaves it unchanged. Idempotent and safe to call any
// number of times; it never raises domain errors for no-op outcomes.
func (e *Engine) Transition(ctx context.Context, instanceID string) error {
	lock := e.instanceLock(instanceID)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.Transition",
		attribute.String(otelhelper.InstanceIDKey, instanceID),
	)
	defer span.End()

	instance, err := e.persistence.InstanceRepository().InstanceByID(ctx, instanceID)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	if instance.IsTerminal() {
		return nil
	}

	workflow, err := e.persistence.WorkflowRepository().WorkflowByID(ctx, instance.WorkflowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	step := workflow.StepAt(instance.CurrentStepSequence)
	if step == nil {
		return nil
	}

	approvals, err := e.persistence.ApprovalRepository().ApprovalsByStep(ctx, instance.ID, step.ID)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	if !stepComplete(step, approvals) {
		return nil
	}

	if anyRejected(approvals) {
		err = e.persistence.InstanceRepository().UpdateStatus(ctx, instance.ID, models.InstanceStatusRejected)
		if err != nil {
			otelhelper.SetError(span, err)

			return err
		}

		e.notify(ctx, instance.CreatedBy, notification.KindInstanceRejected,
			"Request rejected",
			fmt.Sprintf("Your %s request was rejected.", instance.ResourceType),
			"/instances/"+instance.ID,
		)

		return nil
	}

	next := workflow.StepAt(instance.CurrentStepSequence + 1)
	if next == nil {
		err = e.persistence.InstanceRepository().UpdateStatus(ctx, instance.ID, models.InstanceStatusApproved)
		if err != nil {
			otelhelper.SetError(span, err)

			return err
		}

		e.notify(ctx, instance.CreatedBy, notification.KindInstanceApproved,
			"Request approved",
			fmt.Sprintf("Your %s request was approved.", instance.ResourceType),
			"/instances/"+instance.ID,
		)

		return nil
	}

	advanced, err := e.persistence.InstanceRepository().AdvanceStep(ctx, instance.ID, instance.CurrentStepSequence, next.Sequence)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	// A concurrent transition already advanced the instance; the next step's
	// approvals were created by whoever won.
	if !advanced {
		return nil
	}

	instance.CurrentStepSequence = next.Sequence

	err = e.openStep(ctx, instance, next)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	return nil
}

// GetCurrentStep returns the active step an instance sits on with its ledger
// rows. The step is nil for terminal instances and for sequences without an
// active step.
func (e *Engine) GetCurrentStep(ctx context.Context, instanceID string) (*models.WorkflowStep, []*models.Approval, error) {
	instance, err := e.persistence.InstanceRepository().InstanceByID(ctx, instanceID)
	if err != nil {
		return nil, nil, err
	}

	workflow, err := e.persistence.WorkflowRepository().WorkflowByID(ctx, instance.WorkflowID)
	if err != nil {
		return nil, nil, err
	}

	step := workflow.StepAt(instance.CurrentStepSequence)
	if step == nil {
		return nil, []*models.Approval{}, nil
	}

	approvals, err := e.persistence.ApprovalRepository().ApprovalsByStep(ctx, instance.ID, step.ID)
	if err != nil {
		return nil, nil, err
	}

	return step, approvals, nil
}

// notify delivers best-effort. Failures are logged and never propagated; the
// notification channel must not corrupt the state transition.
func (e *Engine) notify(ctx context.Context, userID, kind, title, message, link string) {
	err := e.notifier.Notify(ctx, userID, kind, title, message, link)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to deliver notification",
			"user_id", userID, "kind", kind, "error", err)
	}
}

// stepComplete evaluates the step-completion policy over the current step's
// ledger rows:
//
//   - sequential: complete once any row is approved. A lone rejection never
//     completes the step, so an all-rejected sequential step stalls.
//   - parallel without requiresAll: same as sequential.
//   - parallel with requiresAll: complete when approved rows reach the count
//     of active responsibility records. The threshold counts responsibilities,
//     not resolved approver rows, so a responsibility that resolved to several
//     principals is satisfied by any one of them.
func stepComplete(step *models.WorkflowStep, approvals []*models.Approval) bool {
	approved := 0

	for _, approval := range approvals {
		if approval.Status == models.ApprovalStatusApproved {
			approved++
		}
	}

	if step.FlowType == models.FlowTypeParallel && step.RequiresAll {
		required := len(step.ActiveResponsibilities())

		return required > 0 && approved >= required
	}

	return approved >= 1
}

func anyRejected(approvals []*models.Approval) bool {
	for _, approval := range approvals {
		if approval.Status == models.ApprovalStatusRejected {
			return true
		}
	}

	return false
}
