package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagio/stagio/pkg/log"
	"github.com/stagio/stagio/pkg/models"
	"github.com/stagio/stagio/pkg/persistence"
	"github.com/stagio/stagio/pkg/persistence/file"
)

func newTestResolver(t *testing.T) (*Resolver, persistence.DirectoryRepository) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	directory := p.DirectoryRepository()
	ctx := t.Context()

	principals := []*models.Principal{
		{ID: "user-alice", Name: "Alice", IsActive: true},
		{ID: "user-bob", Name: "Bob", IsActive: true},
		{ID: "user-carol", Name: "Carol", IsActive: false},
		{ID: "user-dave", Name: "Dave", IsActive: true},
	}
	for _, principal := range principals {
		require.NoError(t, directory.SavePrincipal(ctx, principal))
	}

	require.NoError(t, directory.SaveOrganization(ctx, &models.Organization{
		ID: "org-acme", Name: "ACME", Kind: models.OrganizationKindCompany,
	}))
	require.NoError(t, directory.SaveMember(ctx, &models.OrganizationMember{
		OrganizationID: "org-acme", PrincipalID: "user-alice", IsDirector: true,
	}))
	require.NoError(t, directory.SaveMember(ctx, &models.OrganizationMember{
		OrganizationID: "org-acme", PrincipalID: "user-dave",
	}))

	require.NoError(t, directory.SaveRoleAssignment(ctx, &models.RoleAssignment{
		RoleID: "coordinator", PrincipalID: "user-bob",
	}))

	require.NoError(t, directory.SaveResourceOwner(ctx, &models.ResourceOwner{
		ResourceType: models.ResourceTypeInternship, ResourceID: "internship-42", OrganizationID: "org-acme",
	}))

	return NewResolver(directory, log.WithModule("resolver-test")), directory
}

func stepWith(responsibilities ...*models.StepResponsibility) *models.WorkflowStep {
	return &models.WorkflowStep{
		ID:               "step-1",
		Sequence:         1,
		Name:             "Review",
		FlowType:         models.FlowTypeSequential,
		IsActive:         true,
		Responsibilities: responsibilities,
	}
}

func TestResolver_ExplicitRole(t *testing.T) {
	resolver, _ := newTestResolver(t)

	step := stepWith(&models.StepResponsibility{
		ID: "resp-1", Type: models.ResponsibilityTypeRole, RoleID: "coordinator",
		CanApprove: true, CanReject: true, IsActive: true,
	})

	approvers, err := resolver.Resolve(t.Context(), step, models.ResourceTypeResume, "resume-1")
	require.NoError(t, err)

	require.Len(t, approvers, 1)
	assert.Equal(t, "user-bob", approvers[0].PrincipalID)
	assert.Equal(t, "resp-1", approvers[0].ResponsibilityID)
	assert.True(t, approvers[0].CanApprove)
}

func TestResolver_ContextualRole_Internship(t *testing.T) {
	resolver, _ := newTestResolver(t)

	step := stepWith(&models.StepResponsibility{
		ID: "resp-1", Type: models.ResponsibilityTypeRole,
		CanApprove: true, IsActive: true,
	})

	approvers, err := resolver.Resolve(t.Context(), step, models.ResourceTypeInternship, "internship-42")
	require.NoError(t, err)

	// The empty role id resolves to the hiring company's members.
	require.Len(t, approvers, 2)
	assert.Equal(t, "user-alice", approvers[0].PrincipalID)
	assert.Equal(t, "user-dave", approvers[1].PrincipalID)
}

func TestResolver_ContextualRole_NonInternshipResolvesEmpty(t *testing.T) {
	resolver, _ := newTestResolver(t)

	step := stepWith(&models.StepResponsibility{
		ID: "resp-1", Type: models.ResponsibilityTypeRole,
		CanApprove: true, IsActive: true,
	})

	approvers, err := resolver.Resolve(t.Context(), step, models.ResourceTypeResume, "resume-1")
	require.NoError(t, err)
	assert.Empty(t, approvers)
}

func TestResolver_ContextualRole_UnmappedResourceResolvesEmpty(t *testing.T) {
	resolver, _ := newTestResolver(t)

	step := stepWith(&models.StepResponsibility{
		ID: "resp-1", Type: models.ResponsibilityTypeRole,
		CanApprove: true, IsActive: true,
	})

	approvers, err := resolver.Resolve(t.Context(), step, models.ResourceTypeInternship, "internship-unmapped")
	require.NoError(t, err)
	assert.Empty(t, approvers)
}

func TestResolver_User(t *testing.T) {
	resolver, _ := newTestResolver(t)

	step := stepWith(&models.StepResponsibility{
		ID: "resp-1", Type: models.ResponsibilityTypeUser, PrincipalID: "user-alice",
		CanApprove: true, CanComment: true, IsActive: true,
	})

	approvers, err := resolver.Resolve(t.Context(), step, models.ResourceTypeResume, "resume-1")
	require.NoError(t, err)

	require.Len(t, approvers, 1)
	assert.Equal(t, "user-alice", approvers[0].PrincipalID)
	assert.True(t, approvers[0].CanComment)
}

func TestResolver_User_InactiveResolvesEmpty(t *testing.T) {
	resolver, _ := newTestResolver(t)

	step := stepWith(&models.StepResponsibility{
		ID: "resp-1", Type: models.ResponsibilityTypeUser, PrincipalID: "user-carol",
		CanApprove: true, IsActive: true,
	})

	approvers, err := resolver.Resolve(t.Context(), step, models.ResourceTypeResume, "resume-1")
	require.NoError(t, err)
	assert.Empty(t, approvers)
}

func TestResolver_User_MissingResolvesEmpty(t *testing.T) {
	resolver, _ := newTestResolver(t)

	step := stepWith(&models.StepResponsibility{
		ID: "resp-1", Type: models.ResponsibilityTypeUser, PrincipalID: "user-nobody",
		CanApprove: true, IsActive: true,
	})

	approvers, err := resolver.Resolve(t.Context(), step, models.ResourceTypeResume, "resume-1")
	require.NoError(t, err)
	assert.Empty(t, approvers)
}

func TestResolver_DirectorPool(t *testing.T) {
	resolver, _ := newTestResolver(t)

	step := stepWith(&models.StepResponsibility{
		ID: "resp-1", Type: models.ResponsibilityTypeDirectorPool,
		CanApprove: true, CanReject: true, IsActive: true,
	})

	approvers, err := resolver.Resolve(t.Context(), step, models.ResourceTypeInternship, "internship-42")
	require.NoError(t, err)

	require.Len(t, approvers, 1)
	assert.Equal(t, "user-alice", approvers[0].PrincipalID)
}

func TestResolver_NoDeduplicationAcrossResponsibilities(t *testing.T) {
	resolver, directory := newTestResolver(t)

	require.NoError(t, directory.SaveRoleAssignment(t.Context(), &models.RoleAssignment{
		RoleID: "reviewer", PrincipalID: "user-alice",
	}))

	step := stepWith(
		&models.StepResponsibility{
			ID: "resp-role", Type: models.ResponsibilityTypeRole, RoleID: "reviewer",
			CanApprove: true, IsActive: true, Priority: 1,
		},
		&models.StepResponsibility{
			ID: "resp-user", Type: models.ResponsibilityTypeUser, PrincipalID: "user-alice",
			CanComment: true, IsActive: true, Priority: 2,
		},
	)

	approvers, err := resolver.Resolve(t.Context(), step, models.ResourceTypeResume, "resume-1")
	require.NoError(t, err)

	// Alice appears once per responsibility, each with that responsibility's
	// capabilities.
	require.Len(t, approvers, 2)
	assert.Equal(t, "resp-role", approvers[0].ResponsibilityID)
	assert.True(t, approvers[0].CanApprove)
	assert.Equal(t, "resp-user", approvers[1].ResponsibilityID)
	assert.False(t, approvers[1].CanApprove)
	assert.True(t, approvers[1].CanComment)
}

func TestResolver_SkipsInactiveResponsibilities(t *testing.T) {
	resolver, _ := newTestResolver(t)

	step := stepWith(&models.StepResponsibility{
		ID: "resp-1", Type: models.ResponsibilityTypeUser, PrincipalID: "user-alice",
		CanApprove: true, IsActive: false,
	})

	approvers, err := resolver.Resolve(t.Context(), step, models.ResourceTypeResume, "resume-1")
	require.NoError(t, err)
	assert.Empty(t, approvers)
}
