// Package web provides HTTP request and response types for the approval API.
package web

import "github.com/stagio/stagio/pkg/models"

// CreateInstanceRequest represents the request body for starting an approval
// workflow for a resource.
type CreateInstanceRequest struct {
	WorkflowID   string `json:"workflow_id"   validate:"required"`
	ResourceType string `json:"resource_type" validate:"required,oneof=internship resume"`
	ResourceID   string `json:"resource_id"   validate:"required"`
	CreatedBy    string `json:"created_by"    validate:"required"`
}

// DecisionRequest represents the request body for approving or rejecting an
// approval request.
type DecisionRequest struct {
	ApproverID string  `json:"approver_id" validate:"required"`
	Comments   *string `json:"comments,omitempty"`
}

// CommentRequest represents the request body for commenting on an approval
// request without deciding it.
type CommentRequest struct {
	PrincipalID string `json:"principal_id" validate:"required"`
	Comments    string `json:"comments"     validate:"required"`
}

// InstanceResponse bundles an instance with its current step and the step's
// approval rows.
type InstanceResponse struct {
	Instance    *models.WorkflowInstance `json:"instance"`
	CurrentStep *models.WorkflowStep     `json:"current_step,omitempty"`
	Approvals   []*models.Approval       `json:"approvals,omitempty"`
}
