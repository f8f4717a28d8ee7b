package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagio/stagio/pkg/log"
	"github.com/stagio/stagio/pkg/models"
	"github.com/stagio/stagio/pkg/notification"
	"github.com/stagio/stagio/pkg/persistence"
	"github.com/stagio/stagio/pkg/persistence/file"
	"github.com/stagio/stagio/pkg/resolver"
)

type fixture struct {
	persistence persistence.Persistence
	engine      *Engine
	workflow    *models.Workflow
}

// newFixture builds a two-step internship workflow over the file backend:
// step 1 is a sequential coordinator review, step 2 a parallel requires-all
// sign-off by a named director and the company representative.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := log.WithModule("engine-test")
	p := file.NewPersistence(t.TempDir())
	ctx := t.Context()

	directory := p.DirectoryRepository()

	principals := []*models.Principal{
		{ID: "user-coordinator", Name: "Coordinator", IsActive: true},
		{ID: "user-director", Name: "Director", IsActive: true},
		{ID: "user-company", Name: "Company Rep", IsActive: true},
	}
	for _, principal := range principals {
		require.NoError(t, directory.SavePrincipal(ctx, principal))
	}

	require.NoError(t, directory.SaveRoleAssignment(ctx, &models.RoleAssignment{
		RoleID: "coordinator", PrincipalID: "user-coordinator",
	}))
	require.NoError(t, directory.SaveRoleAssignment(ctx, &models.RoleAssignment{
		RoleID: "company-rep", PrincipalID: "user-company",
	}))

	workflow := &models.Workflow{
		Name:         "Internship Publication",
		ResourceType: models.ResourceTypeInternship,
		Status:       models.WorkflowStatusActive,
		Steps: []*models.WorkflowStep{
			{
				Sequence: 1,
				Name:     "Coordinator review",
				FlowType: models.FlowTypeSequential,
				IsActive: true,
				Responsibilities: []*models.StepResponsibility{
					{
						Type: models.ResponsibilityTypeRole, RoleID: "coordinator",
						CanApprove: true, CanReject: true, CanComment: true, IsActive: true,
					},
				},
			},
			{
				Sequence:    2,
				Name:        "Final sign-off",
				FlowType:    models.FlowTypeParallel,
				RequiresAll: true,
				IsActive:    true,
				Responsibilities: []*models.StepResponsibility{
					{
						Type: models.ResponsibilityTypeUser, PrincipalID: "user-director",
						CanApprove: true, CanReject: true, IsActive: true, Priority: 1,
					},
					{
						Type: models.ResponsibilityTypeRole, RoleID: "company-rep",
						CanApprove: true, CanReject: true, IsActive: true, Priority: 2,
					},
				},
			},
		},
	}
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	return &fixture{
		persistence: p,
		engine:      NewEngine(p, resolver.NewResolver(directory, logger), notification.NewSlogNotifier(logger), logger),
		workflow:    workflow,
	}
}

func (f *fixture) approve(t *testing.T, approval *models.Approval, approverID string) {
	t.Helper()

	now := time.Now().UTC()
	approval.Status = models.ApprovalStatusApproved
	approval.ApproverID = &approverID
	approval.ResponseTime = &now

	updated, err := f.persistence.ApprovalRepository().RecordDecision(t.Context(), approval)
	require.NoError(t, err)
	require.True(t, updated)
}

func (f *fixture) reject(t *testing.T, approval *models.Approval, approverID string) {
	t.Helper()

	now := time.Now().UTC()
	approval.Status = models.ApprovalStatusRejected
	approval.ApproverID = &approverID
	approval.ResponseTime = &now

	updated, err := f.persistence.ApprovalRepository().RecordDecision(t.Context(), approval)
	require.NoError(t, err)
	require.True(t, updated)
}

func TestEngine_CreateInstance(t *testing.T) {
	f := newFixture(t)

	instance, err := f.engine.CreateInstance(t.Context(), f.workflow.ID, models.ResourceTypeInternship, "internship-42", "user-recruiter")
	require.NoError(t, err)

	assert.Equal(t, models.InstanceStatusInProgress, instance.Status)
	assert.Equal(t, 1, instance.CurrentStepSequence)

	step, approvals, err := f.engine.GetCurrentStep(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, "Coordinator review", step.Name)
	require.Len(t, approvals, 1)
	assert.Equal(t, "user-coordinator", approvals[0].AssigneeID)
	assert.Equal(t, models.ApprovalStatusPending, approvals[0].Status)
	assert.True(t, approvals[0].Responsible)

	history, err := f.persistence.HistoryRepository().HistoryByInstance(t.Context(), instance.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.HistoryActionCreated, history[0].Action)
}

func TestEngine_CreateInstance_Idempotent(t *testing.T) {
	f := newFixture(t)

	first, err := f.engine.CreateInstance(t.Context(), f.workflow.ID, models.ResourceTypeInternship, "internship-42", "user-recruiter")
	require.NoError(t, err)

	second, err := f.engine.CreateInstance(t.Context(), f.workflow.ID, models.ResourceTypeInternship, "internship-42", "user-someone-else")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	// No duplicate step-1 rows were created.
	approvals, err := f.persistence.ApprovalRepository().ApprovalsByInstance(t.Context(), first.ID)
	require.NoError(t, err)
	assert.Len(t, approvals, 1)
}

func TestEngine_CreateInstance_WorkflowNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CreateInstance(t.Context(), "missing", models.ResourceTypeInternship, "internship-42", "user-recruiter")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestEngine_CreateInstance_InactiveWorkflow(t *testing.T) {
	f := newFixture(t)

	f.workflow.Status = models.WorkflowStatusArchived
	require.NoError(t, f.persistence.WorkflowRepository().Save(t.Context(), f.workflow))

	_, err := f.engine.CreateInstance(t.Context(), f.workflow.ID, models.ResourceTypeInternship, "internship-42", "user-recruiter")
	assert.ErrorIs(t, err, ErrWorkflowInactive)
}

func TestEngine_CreateInstance_NoFirstStepStaysPending(t *testing.T) {
	f := newFixture(t)

	empty := &models.Workflow{
		Name:         "Empty Process",
		ResourceType: models.ResourceTypeResume,
		Status:       models.WorkflowStatusActive,
	}
	require.NoError(t, f.persistence.WorkflowRepository().Save(t.Context(), empty))

	instance, err := f.engine.CreateInstance(t.Context(), empty.ID, models.ResourceTypeResume, "resume-1", "user-student")
	require.NoError(t, err)

	assert.Equal(t, models.InstanceStatusPending, instance.Status)

	approvals, err := f.persistence.ApprovalRepository().ApprovalsByInstance(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Empty(t, approvals)
}

func TestEngine_Transition_AdvancesAfterApproval(t *testing.T) {
	f := newFixture(t)

	instance, err := f.engine.CreateInstance(t.Context(), f.workflow.ID, models.ResourceTypeInternship, "internship-42", "user-recruiter")
	require.NoError(t, err)

	_, approvals, err := f.engine.GetCurrentStep(t.Context(), instance.ID)
	require.NoError(t, err)
	f.approve(t, approvals[0], "user-coordinator")

	require.NoError(t, f.engine.Transition(t.Context(), instance.ID))

	loaded, err := f.persistence.InstanceRepository().InstanceByID(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusInProgress, loaded.Status)
	assert.Equal(t, 2, loaded.CurrentStepSequence)

	step, approvals, err := f.engine.GetCurrentStep(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, "Final sign-off", step.Name)
	require.Len(t, approvals, 2)
	assert.Equal(t, "user-director", approvals[0].AssigneeID)
	assert.Equal(t, "user-company", approvals[1].AssigneeID)
}

func TestEngine_Transition_ApprovesOnLastStep(t *testing.T) {
	f := newFixture(t)

	instance, err := f.engine.CreateInstance(t.Context(), f.workflow.ID, models.ResourceTypeInternship, "internship-42", "user-recruiter")
	require.NoError(t, err)

	_, approvals, err := f.engine.GetCurrentStep(t.Context(), instance.ID)
	require.NoError(t, err)
	f.approve(t, approvals[0], "user-coordinator")
	require.NoError(t, f.engine.Transition(t.Context(), instance.ID))

	// Requires-all: one sign-off is not enough.
	_, approvals, err = f.engine.GetCurrentStep(t.Context(), instance.ID)
	require.NoError(t, err)
	f.approve(t, approvals[0], "user-director")
	require.NoError(t, f.engine.Transition(t.Context(), instance.ID))

	loaded, err := f.persistence.InstanceRepository().InstanceByID(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusInProgress, loaded.Status)

	f.approve(t, approvals[1], "user-company")
	require.NoError(t, f.engine.Transition(t.Context(), instance.ID))

	loaded, err = f.persistence.InstanceRepository().InstanceByID(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusApproved, loaded.Status)
	assert.NotNil(t, loaded.CompletedAt)
}

func TestEngine_Transition_RejectionShortCircuit(t *testing.T) {
	f := newFixture(t)

	instance, err := f.engine.CreateInstance(t.Context(), f.workflow.ID, models.ResourceTypeInternship, "internship-42", "user-recruiter")
	require.NoError(t, err)

	_, approvals, err := f.engine.GetCurrentStep(t.Context(), instance.ID)
	require.NoError(t, err)
	f.approve(t, approvals[0], "user-coordinator")
	require.NoError(t, f.engine.Transition(t.Context(), instance.ID))

	// Step 2: the director approves, the company representative rejects. The
	// step is complete and the rejection wins over advancing.
	_, approvals, err = f.engine.GetCurrentStep(t.Context(), instance.ID)
	require.NoError(t, err)
	f.approve(t, approvals[0], "user-director")
	f.reject(t, approvals[1], "user-company")
	require.NoError(t, f.engine.Transition(t.Context(), instance.ID))

	loaded, err := f.persistence.InstanceRepository().InstanceByID(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusRejected, loaded.Status)
	assert.Equal(t, 2, loaded.CurrentStepSequence)
}

func TestEngine_Transition_SequentialRejectionStalls(t *testing.T) {
	f := newFixture(t)

	instance, err := f.engine.CreateInstance(t.Context(), f.workflow.ID, models.ResourceTypeInternship, "internship-42", "user-recruiter")
	require.NoError(t, err)

	_, approvals, err := f.engine.GetCurrentStep(t.Context(), instance.ID)
	require.NoError(t, err)
	f.reject(t, approvals[0], "user-coordinator")

	require.NoError(t, f.engine.Transition(t.Context(), instance.ID))

	// A lone rejection never completes a sequential step, so the instance
	// stays in progress at step 1.
	loaded, err := f.persistence.InstanceRepository().InstanceByID(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusInProgress, loaded.Status)
	assert.Equal(t, 1, loaded.CurrentStepSequence)
}

func TestEngine_Transition_TerminalInstanceIsNoOp(t *testing.T) {
	f := newFixture(t)

	instance, err := f.engine.CreateInstance(t.Context(), f.workflow.ID, models.ResourceTypeInternship, "internship-42", "user-recruiter")
	require.NoError(t, err)

	require.NoError(t, f.persistence.InstanceRepository().UpdateStatus(t.Context(), instance.ID, models.InstanceStatusRejected))

	historyBefore, err := f.persistence.HistoryRepository().HistoryByInstance(t.Context(), instance.ID)
	require.NoError(t, err)

	require.NoError(t, f.engine.Transition(t.Context(), instance.ID))

	loaded, err := f.persistence.InstanceRepository().InstanceByID(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusRejected, loaded.Status)

	historyAfter, err := f.persistence.HistoryRepository().HistoryByInstance(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Len(t, historyAfter, len(historyBefore))
}

func TestEngine_Transition_PendingStepIsNoOp(t *testing.T) {
	f := newFixture(t)

	instance, err := f.engine.CreateInstance(t.Context(), f.workflow.ID, models.ResourceTypeInternship, "internship-42", "user-recruiter")
	require.NoError(t, err)

	require.NoError(t, f.engine.Transition(t.Context(), instance.ID))
	require.NoError(t, f.engine.Transition(t.Context(), instance.ID))

	loaded, err := f.persistence.InstanceRepository().InstanceByID(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.CurrentStepSequence)
}

func TestEngine_RequiresAllCountsResponsibilitiesNotRows(t *testing.T) {
	f := newFixture(t)

	// One responsibility resolves to two principals; requires-all is satisfied
	// by either of them because the threshold counts responsibilities.
	require.NoError(t, f.persistence.DirectoryRepository().SaveRoleAssignment(t.Context(), &models.RoleAssignment{
		RoleID: "panel", PrincipalID: "user-director",
	}))
	require.NoError(t, f.persistence.DirectoryRepository().SaveRoleAssignment(t.Context(), &models.RoleAssignment{
		RoleID: "panel", PrincipalID: "user-company",
	}))

	workflow := &models.Workflow{
		Name:         "Panel Review",
		ResourceType: models.ResourceTypeResume,
		Status:       models.WorkflowStatusActive,
		Steps: []*models.WorkflowStep{
			{
				Sequence:    1,
				Name:        "Panel",
				FlowType:    models.FlowTypeParallel,
				RequiresAll: true,
				IsActive:    true,
				Responsibilities: []*models.StepResponsibility{
					{
						Type: models.ResponsibilityTypeRole, RoleID: "panel",
						CanApprove: true, CanReject: true, IsActive: true,
					},
				},
			},
		},
	}
	require.NoError(t, f.persistence.WorkflowRepository().Save(t.Context(), workflow))

	instance, err := f.engine.CreateInstance(t.Context(), workflow.ID, models.ResourceTypeResume, "resume-1", "user-student")
	require.NoError(t, err)

	_, approvals, err := f.engine.GetCurrentStep(t.Context(), instance.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 2)

	f.approve(t, approvals[0], approvals[0].AssigneeID)
	require.NoError(t, f.engine.Transition(t.Context(), instance.ID))

	loaded, err := f.persistence.InstanceRepository().InstanceByID(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusApproved, loaded.Status)
}
