package models

import "time"

// InstanceStatus represents the lifecycle state of a workflow instance.
type InstanceStatus string

const (
	InstanceStatusPending    InstanceStatus = "pending"
	InstanceStatusInProgress InstanceStatus = "in_progress"
	InstanceStatusApproved   InstanceStatus = "approved"
	InstanceStatusRejected   InstanceStatus = "rejected"
)

// WorkflowInstance is one run of a workflow bound to a specific resource.
// At most one non-terminal instance exists per (ResourceType, ResourceID);
// creation is idempotent against that constraint. CurrentStepSequence starts
// at 1 and only ever increases.
type WorkflowInstance struct {
	ID                  string         `json:"id"`
	WorkflowID          string         `json:"workflow_id"`
	ResourceType        ResourceType   `json:"resource_type"`
	ResourceID          string         `json:"resource_id"`
	Status              InstanceStatus `json:"status"`
	CurrentStepSequence int            `json:"current_step_sequence"`
	CreatedBy           string         `json:"created_by"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	CompletedAt         *time.Time     `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the instance reached a final state.
func (i *WorkflowInstance) IsTerminal() bool {
	return i.Status == InstanceStatusApproved || i.Status == InstanceStatusRejected
}
