// Package persistence provides the data storage abstraction layer for
// workflow definitions, instances, approvals and the principal directory.
package persistence

import (
	"context"

	"github.com/stagio/stagio/pkg/models"
)

// Persistence groups the repositories a storage backend must provide.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	InstanceRepository() InstanceRepository
	ApprovalRepository() ApprovalRepository
	HistoryRepository() HistoryRepository
	DirectoryRepository() DirectoryRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository reads workflow definitions. The engine never mutates
// definitions; Save exists for seed loading and the demo-mode mirror.
type WorkflowRepository interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	StepByID(ctx context.Context, stepID string) (*models.WorkflowStep, error)
}

// InstanceRepository owns workflow instance rows.
type InstanceRepository interface {
	Create(ctx context.Context, instance *models.WorkflowInstance) error
	InstanceByID(ctx context.Context, id string) (*models.WorkflowInstance, error)

	// ActiveByResource returns the non-terminal instance for a resource, or
	// ErrInstanceNotFound when none exists.
	ActiveByResource(ctx context.Context, resourceType models.ResourceType, resourceID string) (*models.WorkflowInstance, error)

	// AdvanceStep increments the current step sequence with a conditional
	// update. It returns false when the instance was not at fromSequence,
	// which means a concurrent transition already advanced it.
	AdvanceStep(ctx context.Context, instanceID string, fromSequence, toSequence int) (bool, error)

	UpdateStatus(ctx context.Context, instanceID string, status models.InstanceStatus) error
}

// ApprovalRepository owns the approval ledger rows.
type ApprovalRepository interface {
	CreateBatch(ctx context.Context, approvals []*models.Approval) error
	ApprovalByID(ctx context.Context, id string) (*models.Approval, error)
	ApprovalsByStep(ctx context.Context, instanceID, stepID string) ([]*models.Approval, error)
	ApprovalsByInstance(ctx context.Context, instanceID string) ([]*models.Approval, error)

	// PendingApprovals returns every pending row system-wide. The pending
	// inbox recomputes eligibility per row on top of this.
	PendingApprovals(ctx context.Context) ([]*models.Approval, error)

	// RecordDecision persists a terminal decision. The update is conditional
	// on the row still being pending; false means another decision won.
	RecordDecision(ctx context.Context, approval *models.Approval) (bool, error)

	// UpdateComments overwrites the latest-comment field only.
	UpdateComments(ctx context.Context, approvalID, comments string) error
}

// HistoryRepository is the append-only audit log. Rows are never updated
// or deleted.
type HistoryRepository interface {
	Append(ctx context.Context, entry *models.ApprovalHistory) error
	HistoryByInstance(ctx context.Context, instanceID string) ([]*models.ApprovalHistory, error)
	HistoryByApproval(ctx context.Context, approvalID string) ([]*models.ApprovalHistory, error)
}

// DirectoryRepository exposes the principal directory and the organization
// context provider used by approver resolution.
type DirectoryRepository interface {
	PrincipalByID(ctx context.Context, id string) (*models.Principal, error)
	PrincipalsByRole(ctx context.Context, roleID string) ([]*models.Principal, error)
	OrganizationMembers(ctx context.Context, organizationID string) ([]*models.Principal, error)
	Directors(ctx context.Context, organizationID string) ([]*models.Principal, error)

	// OrganizationForResource returns the owning organization id for a
	// resource, or ErrOrganizationNotFound when the resource is unmapped.
	OrganizationForResource(ctx context.Context, resourceType models.ResourceType, resourceID string) (string, error)

	SavePrincipal(ctx context.Context, principal *models.Principal) error
	SaveOrganization(ctx context.Context, organization *models.Organization) error
	SaveMember(ctx context.Context, member *models.OrganizationMember) error
	SaveRoleAssignment(ctx context.Context, assignment *models.RoleAssignment) error
	SaveResourceOwner(ctx context.Context, owner *models.ResourceOwner) error
}
