package file

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagio/stagio/pkg/models"
	"github.com/stagio/stagio/pkg/persistence"
)

func testWorkflow() *models.Workflow {
	return &models.Workflow{
		Name:         "Internship Publication",
		Description:  "Approval before an internship offer goes live",
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
						Type:       models.ResponsibilityTypeRole,
						RoleID:     "coordinator",
						CanApprove: true,
						CanReject:  true,
						CanComment: true,
						IsActive:   true,
					},
				},
			},
		},
	}
}

func TestNewPersistence_StripsFileScheme(t *testing.T) {
	p := NewPersistence("file:///tmp/stagio-test")
	assert.Equal(t, "/tmp/stagio-test", p.root)
}

func TestWorkflowRepository_Save(t *testing.T) {
	p := NewPersistence(t.TempDir())

	workflow := testWorkflow()

	err := p.WorkflowRepository().Save(t.Context(), workflow)
	require.NoError(t, err)

	assert.NotEmpty(t, workflow.ID)
	assert.NotEmpty(t, workflow.Steps[0].ID)
	assert.Equal(t, workflow.ID, workflow.Steps[0].WorkflowID)
	assert.Equal(t, workflow.Steps[0].ID, workflow.Steps[0].Responsibilities[0].StepID)
	assert.False(t, workflow.CreatedAt.IsZero())

	assert.FileExists(t, filepath.Join(p.root, "workflows", workflow.ID+".json"))
}

func TestWorkflowRepository_WorkflowByID(t *testing.T) {
	p := NewPersistence(t.TempDir())

	workflow := testWorkflow()
	require.NoError(t, p.WorkflowRepository().Save(t.Context(), workflow))

	loaded, err := p.WorkflowRepository().WorkflowByID(t.Context(), workflow.ID)
	require.NoError(t, err)

	assert.Equal(t, workflow.Name, loaded.Name)
	require.Len(t, loaded.Steps, 1)
	assert.Equal(t, models.FlowTypeSequential, loaded.Steps[0].FlowType)
}

func TestWorkflowRepository_WorkflowByID_NotFound(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.WorkflowRepository().WorkflowByID(t.Context(), "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRepository_StepByID(t *testing.T) {
	p := NewPersistence(t.TempDir())

	workflow := testWorkflow()
	require.NoError(t, p.WorkflowRepository().Save(t.Context(), workflow))

	step, err := p.WorkflowRepository().StepByID(t.Context(), workflow.Steps[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Coordinator review", step.Name)

	_, err = p.WorkflowRepository().StepByID(t.Context(), "missing")
	assert.True(t, persistence.IsStepNotFound(err))
}

func TestWorkflowRepository_Workflows(t *testing.T) {
	p := NewPersistence(t.TempDir())

	workflows, err := p.WorkflowRepository().Workflows(t.Context())
	require.NoError(t, err)
	assert.Empty(t, workflows)

	require.NoError(t, p.WorkflowRepository().Save(t.Context(), testWorkflow()))

	second := testWorkflow()
	second.Name = "Resume Validation"
	second.ResourceType = models.ResourceTypeResume
	require.NoError(t, p.WorkflowRepository().Save(t.Context(), second))

	workflows, err = p.WorkflowRepository().Workflows(t.Context())
	require.NoError(t, err)
	assert.Len(t, workflows, 2)
}
