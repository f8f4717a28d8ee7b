// Package services provides the decision surface of the approval workflow
// engine and its standardized error types.
package services

import (
	"errors"

	"github.com/stagio/stagio/pkg/engine"
	"github.com/stagio/stagio/pkg/persistence"
)

// Caller-visible errors of the decision surface. All are synchronous; none
// are retried internally.
var (
	// ErrWorkflowNotFound is returned by instance creation for an unknown workflow.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

	// ErrWorkflowInactive is returned by instance creation for a non-active workflow.
	ErrWorkflowInactive = engine.ErrWorkflowInactive

	// ErrApprovalNotFound is returned when an approval row does not exist.
	ErrApprovalNotFound = persistence.ErrApprovalNotFound

	// ErrPermissionDenied is returned when the principal is not resolved as
	// eligible, or lacks the specific capability for the action.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAlreadyDecided is returned when the approval is no longer pending.
	ErrAlreadyDecided = errors.New("approval already decided")
)

// IsWorkflowNotFound checks for an unknown workflow on instance creation.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsWorkflowInactive checks for a non-active workflow on instance creation.
func IsWorkflowInactive(err error) bool {
	return errors.Is(err, ErrWorkflowInactive)
}

// IsApprovalNotFound checks for a missing approval row.
func IsApprovalNotFound(err error) bool {
	return errors.Is(err, ErrApprovalNotFound)
}

// IsPermissionDenied checks for an authorization failure.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsAlreadyDecided checks for a decision on a terminal approval row.
func IsAlreadyDecided(err error) bool {
	return errors.Is(err, ErrAlreadyDecided)
}
