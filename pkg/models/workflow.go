// Package models defines the core domain models for the approval workflow engine.
package models

import "time"

// ResourceType identifies the kind of resource a workflow gates.
type ResourceType string

const (
	ResourceTypeInternship ResourceType = "internship"
	ResourceTypeResume     ResourceType = "resume"
)

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, cannot spawn instances
	WorkflowStatusActive   WorkflowStatus = "active"   // Current, may spawn instances
	WorkflowStatusArchived WorkflowStatus = "archived" // Historical, cannot spawn instances
)

// FlowType governs how many decisions a step needs before it completes.
type FlowType string

const (
	FlowTypeSequential FlowType = "sequential"
	FlowTypeParallel   FlowType = "parallel"
)

// ResponsibilityType declares how a step responsibility resolves to principals.
type ResponsibilityType string

const (
	ResponsibilityTypeRole         ResponsibilityType = "role"
	ResponsibilityTypeUser         ResponsibilityType = "user"
	ResponsibilityTypeDirectorPool ResponsibilityType = "director_pool"
)

// Workflow is a named approval process definition bound to one resource type.
// Definitions are read-only to the engine; only active workflows spawn instances.
type Workflow struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"          validate:"required,min=3"`
	Description  string          `json:"description"`
	ResourceType ResourceType    `json:"resource_type" validate:"required,oneof=internship resume"`
	Status       WorkflowStatus  `json:"status"        validate:"required,oneof=draft active archived"`
	Steps        []*WorkflowStep `json:"steps"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// IsActive reports whether the workflow may spawn new instances.
func (w *Workflow) IsActive() bool {
	return w.Status == WorkflowStatusActive
}

// StepAt returns the active step at the given sequence, or nil when the
// workflow has no active step there.
func (w *Workflow) StepAt(sequence int) *WorkflowStep {
	for _, step := range w.Steps {
		if step.Sequence == sequence && step.IsActive {
			return step
		}
	}

	return nil
}

// WorkflowStep is one ordered stage of a workflow. Sequence is unique and
// positive within a workflow and defines step order.
type WorkflowStep struct {
	ID               string                `json:"id"`
	WorkflowID       string                `json:"workflow_id"`
	Sequence         int                   `json:"sequence"  validate:"required,min=1"`
	Name             string                `json:"name"      validate:"required"`
	FlowType         FlowType              `json:"flow_type" validate:"required,oneof=sequential parallel"`
	RequiresAll      bool                  `json:"requires_all"` // Meaningful only for parallel steps
	IsActive         bool                  `json:"is_active"`
	Responsibilities []*StepResponsibility `json:"responsibilities"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// ActiveResponsibilities returns the step's active responsibilities ordered
// by priority. Priority is an ordering hint only; it never affects completion.
func (s *WorkflowStep) ActiveResponsibilities() []*StepResponsibility {
	active := make([]*StepResponsibility, 0, len(s.Responsibilities))

	for _, responsibility := range s.Responsibilities {
		if responsibility.IsActive {
			active = append(active, responsibility)
		}
	}

	for i := 1; i < len(active); i++ {
		for j := i; j > 0 && active[j-1].Priority > active[j].Priority; j-- {
			active[j-1], active[j] = active[j], active[j-1]
		}
	}

	return active
}

// StepResponsibility describes which principals are eligible to decide on a
// step, and with which capabilities. A role responsibility with an empty
// RoleID resolves contextually from the resource's owning organization.
type StepResponsibility struct {
	ID          string             `json:"id"`
	StepID      string             `json:"step_id"`
	Type        ResponsibilityType `json:"type" validate:"required,oneof=role user director_pool"`
	RoleID      string             `json:"role_id,omitempty"`      // Only for type=role, optional
	PrincipalID string             `json:"principal_id,omitempty"` // Only for type=user
	CanApprove  bool               `json:"can_approve"`
	CanReject   bool               `json:"can_reject"`
	CanComment  bool               `json:"can_comment"`
	Priority    int                `json:"priority"`
	IsActive    bool               `json:"is_active"`
}
