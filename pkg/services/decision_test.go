package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagio/stagio/pkg/engine"
	"github.com/stagio/stagio/pkg/log"
	"github.com/stagio/stagio/pkg/models"
	"github.com/stagio/stagio/pkg/notification"
	"github.com/stagio/stagio/pkg/persistence"
	"github.com/stagio/stagio/pkg/persistence/file"
	"github.com/stagio/stagio/pkg/resolver"
)

type fixture struct {
	persistence persistence.Persistence
	decisions   *Decision
	instance    *models.WorkflowInstance
	approvals   []*models.Approval
}

// newFixture stands up a running instance on a two-step workflow: step 1 is a
// sequential coordinator review, step 2 a parallel requires-all director
// sign-off. The returned approvals are the pending step-1 rows.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := log.WithModule("decision-test")
	p := file.NewPersistence(t.TempDir())
	ctx := t.Context()

	directory := p.DirectoryRepository()

	principals := []*models.Principal{
		{ID: "user-coordinator", Name: "Coordinator", IsActive: true},
		{ID: "user-director", Name: "Director", IsActive: true},
		{ID: "user-outsider", Name: "Outsider", IsActive: true},
	}
	for _, principal := range principals {
		require.NoError(t, directory.SavePrincipal(ctx, principal))
	}

	require.NoError(t, directory.SaveRoleAssignment(ctx, &models.RoleAssignment{
		RoleID: "coordinator", PrincipalID: "user-coordinator",
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
				Name:        "Director sign-off",
				FlowType:    models.FlowTypeParallel,
				RequiresAll: true,
				IsActive:    true,
				Responsibilities: []*models.StepResponsibility{
					{
						Type: models.ResponsibilityTypeUser, PrincipalID: "user-director",
						CanApprove: true, CanReject: true, IsActive: true,
					},
				},
			},
		},
	}
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	approverResolver := resolver.NewResolver(directory, logger)
	notifier := notification.NewSlogNotifier(logger)
	workflowEngine := engine.NewEngine(p, approverResolver, notifier, logger)

	instance, err := workflowEngine.CreateInstance(ctx, workflow.ID, models.ResourceTypeInternship, "internship-42", "user-recruiter")
	require.NoError(t, err)

	_, approvals, err := workflowEngine.GetCurrentStep(ctx, instance.ID)
	require.NoError(t, err)
	require.NotEmpty(t, approvals)

	return &fixture{
		persistence: p,
		decisions:   NewDecision(p, approverResolver, workflowEngine, notifier, logger),
		instance:    instance,
		approvals:   approvals,
	}
}

func TestDecision_CheckPermissions(t *testing.T) {
	f := newFixture(t)

	capabilities, err := f.decisions.CheckPermissions(t.Context(), f.approvals[0].ID, "user-coordinator")
	require.NoError(t, err)
	assert.True(t, capabilities.CanApprove)
	assert.True(t, capabilities.CanReject)
	assert.True(t, capabilities.CanComment)
}

func TestDecision_CheckPermissions_UnresolvedPrincipal(t *testing.T) {
	f := newFixture(t)

	capabilities, err := f.decisions.CheckPermissions(t.Context(), f.approvals[0].ID, "user-outsider")
	require.NoError(t, err)
	assert.Equal(t, models.Capabilities{}, capabilities)
}

func TestDecision_CheckPermissions_DecidedForcesOffApproveReject(t *testing.T) {
	f := newFixture(t)

	_, err := f.decisions.Approve(t.Context(), f.approvals[0].ID, "user-coordinator", nil)
	require.NoError(t, err)

	capabilities, err := f.decisions.CheckPermissions(t.Context(), f.approvals[0].ID, "user-coordinator")
	require.NoError(t, err)
	assert.False(t, capabilities.CanApprove)
	assert.False(t, capabilities.CanReject)
	assert.True(t, capabilities.CanComment)
}

func TestDecision_CheckPermissions_ApprovalNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.decisions.CheckPermissions(t.Context(), "missing", "user-coordinator")
	assert.True(t, persistence.IsApprovalNotFound(err))
}

func TestDecision_Approve(t *testing.T) {
	f := newFixture(t)

	comments := "offer looks good"

	approval, err := f.decisions.Approve(t.Context(), f.approvals[0].ID, "user-coordinator", &comments)
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalStatusApproved, approval.Status)
	require.NotNil(t, approval.ApproverID)
	assert.Equal(t, "user-coordinator", *approval.ApproverID)
	assert.NotNil(t, approval.ResponseTime)

	// The decision triggered a transition onto step 2.
	instance, err := f.persistence.InstanceRepository().InstanceByID(t.Context(), f.instance.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, instance.CurrentStepSequence)

	history, err := f.persistence.HistoryRepository().HistoryByApproval(t.Context(), approval.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.HistoryActionCreated, history[0].Action)
	assert.Equal(t, models.HistoryActionApproved, history[1].Action)
	assert.Equal(t, models.ApprovalStatusPending, history[1].PreviousStatus)
}

func TestDecision_Reject(t *testing.T) {
	f := newFixture(t)

	approval, err := f.decisions.Reject(t.Context(), f.approvals[0].ID, "user-coordinator", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalStatusRejected, approval.Status)

	// A lone rejection on a sequential step does not complete it.
	instance, err := f.persistence.InstanceRepository().InstanceByID(t.Context(), f.instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusInProgress, instance.Status)
	assert.Equal(t, 1, instance.CurrentStepSequence)
}

func TestDecision_Approve_PermissionDenied(t *testing.T) {
	f := newFixture(t)

	_, err := f.decisions.Approve(t.Context(), f.approvals[0].ID, "user-outsider", nil)
	assert.True(t, IsPermissionDenied(err))

	loaded, err := f.persistence.ApprovalRepository().ApprovalByID(t.Context(), f.approvals[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusPending, loaded.Status)
}

func TestDecision_Approve_AlreadyDecided(t *testing.T) {
	f := newFixture(t)

	_, err := f.decisions.Approve(t.Context(), f.approvals[0].ID, "user-coordinator", nil)
	require.NoError(t, err)

	_, err = f.decisions.Approve(t.Context(), f.approvals[0].ID, "user-coordinator", nil)
	assert.True(t, IsAlreadyDecided(err))

	_, err = f.decisions.Reject(t.Context(), f.approvals[0].ID, "user-coordinator", nil)
	assert.True(t, IsAlreadyDecided(err))
}

func TestDecision_AlreadyDecidedWinsOverPermission(t *testing.T) {
	f := newFixture(t)

	_, err := f.decisions.Approve(t.Context(), f.approvals[0].ID, "user-coordinator", nil)
	require.NoError(t, err)

	// Even a principal who could never act gets the already-decided answer
	// for a terminal row.
	_, err = f.decisions.Approve(t.Context(), f.approvals[0].ID, "user-outsider", nil)
	assert.True(t, IsAlreadyDecided(err))
}

func TestDecision_AddComment(t *testing.T) {
	f := newFixture(t)

	approval, err := f.decisions.AddComment(t.Context(), f.approvals[0].ID, "user-coordinator", "needs a clearer job description")
	require.NoError(t, err)

	require.NotNil(t, approval.Comments)
	assert.Equal(t, "needs a clearer job description", *approval.Comments)

	history, err := f.persistence.HistoryRepository().HistoryByApproval(t.Context(), approval.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.HistoryActionCommented, history[1].Action)
	assert.Equal(t, history[1].PreviousStatus, history[1].NewStatus)
}

func TestDecision_AddComment_AfterDecision(t *testing.T) {
	f := newFixture(t)

	_, err := f.decisions.Approve(t.Context(), f.approvals[0].ID, "user-coordinator", nil)
	require.NoError(t, err)

	approval, err := f.decisions.AddComment(t.Context(), f.approvals[0].ID, "user-coordinator", "for the record")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, approval.Status)

	history, err := f.persistence.HistoryRepository().HistoryByApproval(t.Context(), approval.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.HistoryActionCommented, history[2].Action)
	assert.Equal(t, models.ApprovalStatusApproved, history[2].NewStatus)
}

func TestDecision_AddComment_PermissionDenied(t *testing.T) {
	f := newFixture(t)

	_, err := f.decisions.AddComment(t.Context(), f.approvals[0].ID, "user-outsider", "drive-by remark")
	assert.True(t, IsPermissionDenied(err))
}

func TestDecision_ListPendingFor(t *testing.T) {
	f := newFixture(t)

	pending, err := f.decisions.ListPendingFor(t.Context(), "user-coordinator")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, f.approvals[0].ID, pending[0].ID)

	pending, err = f.decisions.ListPendingFor(t.Context(), "user-outsider")
	require.NoError(t, err)
	assert.Empty(t, pending)

	// After the coordinator approves, the director's step-2 row is pending.
	_, err = f.decisions.Approve(t.Context(), f.approvals[0].ID, "user-coordinator", nil)
	require.NoError(t, err)

	pending, err = f.decisions.ListPendingFor(t.Context(), "user-coordinator")
	require.NoError(t, err)
	assert.Empty(t, pending)

	pending, err = f.decisions.ListPendingFor(t.Context(), "user-director")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "user-director", pending[0].AssigneeID)
}

func TestDecision_ListPendingFor_ReflectsDirectoryChanges(t *testing.T) {
	f := newFixture(t)

	// Granting the role after the rows were created makes them actionable;
	// eligibility is re-resolved per call, never cached.
	require.NoError(t, f.persistence.DirectoryRepository().SaveRoleAssignment(t.Context(), &models.RoleAssignment{
		RoleID: "coordinator", PrincipalID: "user-outsider",
	}))

	pending, err := f.decisions.ListPendingFor(t.Context(), "user-outsider")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
