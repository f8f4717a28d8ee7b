package models

import "time"

// ApprovalStatus represents the decision state of one approval row.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// HistoryAction identifies the kind of event an audit row records.
type HistoryAction string

const (
	HistoryActionCreated   HistoryAction = "created"
	HistoryActionApproved  HistoryAction = "approved"
	HistoryActionRejected  HistoryAction = "rejected"
	HistoryActionCommented HistoryAction = "commented"
)

// Approval is one resolved approver's pending or decided task for a step
// entry. One row is created per resolved approver at the moment their step
// becomes current; the same principal can hold several rows for one step when
// overlapping responsibilities both resolve to them. Status is terminal once
// approved or rejected. Comments holds only the latest comment text; the
// durable comment trail lives in ApprovalHistory.
type Approval struct {
	ID               string         `json:"id"`
	InstanceID       string         `json:"instance_id"`
	StepID           string         `json:"step_id"`
	ResponsibilityID string         `json:"responsibility_id"`
	AssigneeID       string         `json:"assignee_id"` // Principal resolved at step entry
	RequestorID      string         `json:"requestor_id"`
	Status           ApprovalStatus `json:"status"`
	Responsible      bool           `json:"responsible"` // Mirrors CanApprove at resolution time
	ApproverID       *string        `json:"approver_id,omitempty"`
	RequestTime      time.Time      `json:"request_time"`
	ResponseTime     *time.Time     `json:"response_time,omitempty"`
	Comments         *string        `json:"comments,omitempty"`
}

// IsDecided reports whether the approval reached a terminal status.
func (a *Approval) IsDecided() bool {
	return a.Status == ApprovalStatusApproved || a.Status == ApprovalStatusRejected
}

// ApprovalHistory is one append-only audit row. Rows are never mutated or
// deleted; for commented actions PreviousStatus equals NewStatus.
type ApprovalHistory struct {
	ID             string         `json:"id"`
	ApprovalID     string         `json:"approval_id"`
	InstanceID     string         `json:"instance_id"`
	Action         HistoryAction  `json:"action"`
	PreviousStatus ApprovalStatus `json:"previous_status"`
	NewStatus      ApprovalStatus `json:"new_status"`
	ActorID        string         `json:"actor_id"`
	Comments       *string        `json:"comments,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Capabilities is the per-principal outcome of a permission check.
type Capabilities struct {
	CanApprove bool `json:"can_approve"`
	CanReject  bool `json:"can_reject"`
	CanComment bool `json:"can_comment"`
}

// ResolvedApprover is one eligibility entry produced by the approver
// resolver. Entries are not deduplicated across responsibilities.
type ResolvedApprover struct {
	PrincipalID      string `json:"principal_id"`
	ResponsibilityID string `json:"responsibility_id"`
	CanApprove       bool   `json:"can_approve"`
	CanReject        bool   `json:"can_reject"`
	CanComment       bool   `json:"can_comment"`
}
