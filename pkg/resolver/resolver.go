// Package resolver computes the set of principals eligible to act on a
// workflow step. Resolution is a pure function of the step definition, the
// resource and the directory at call time; results are never cached, so
// organizational changes take effect immediately.
package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stagio/stagio/pkg/models"
	"github.com/stagio/stagio/pkg/persistence"
)

// Resolver resolves step responsibilities to concrete eligibility entries.
type Resolver struct {
	directory persistence.DirectoryRepository
	logger    *slog.Logger
}

// NewResolver creates a resolver over the given directory.
func NewResolver(directory persistence.DirectoryRepository, logger *slog.Logger) *Resolver {
	return &Resolver{
		directory: directory,
		logger:    logger,
	}
}

// Resolve returns one eligibility entry per (responsibility, principal)
// pair, in responsibility priority order. Principals resolved by several
// responsibilities appear once per responsibility; entries are not
// deduplicated, so the ledger creates one approval row per entry.
func (r *Resolver) Resolve(ctx context.Context, step *models.WorkflowStep, resourceType models.ResourceType, resourceID string) ([]models.ResolvedApprover, error) {
	approvers := make([]models.ResolvedApprover, 0)

	for _, responsibility := range step.ActiveResponsibilities() {
		principals, err := r.resolveResponsibility(ctx, responsibility, resourceType, resourceID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve responsibility %s: %w", responsibility.ID, err)
		}

		for _, principal := range principals {
			approvers = append(approvers, models.ResolvedApprover{
				PrincipalID:      principal.ID,
				ResponsibilityID: responsibility.ID,
				CanApprove:       responsibility.CanApprove,
				CanReject:        responsibility.CanReject,
				CanComment:       responsibility.CanComment,
			})
		}
	}

	return approvers, nil
}

func (r *Resolver) resolveResponsibility(ctx context.Context, responsibility *models.StepResponsibility, resourceType models.ResourceType, resourceID string) ([]*models.Principal, error) {
	switch responsibility.Type {
	case models.ResponsibilityTypeRole:
		return r.resolveRole(ctx, responsibility, resourceType, resourceID)
	case models.ResponsibilityTypeUser:
		return r.resolveUser(ctx, responsibility)
	case models.ResponsibilityTypeDirectorPool:
		return r.resolveDirectorPool(ctx, resourceType, resourceID)
	default:
		r.logger.WarnContext(ctx, "unknown responsibility type",
			"responsibility_id", responsibility.ID, "type", responsibility.Type)

		return nil, nil
	}
}

func (r *Resolver) resolveRole(ctx context.Context, responsibility *models.StepResponsibility, resourceType models.ResourceType, resourceID string) ([]*models.Principal, error) {
	if responsibility.RoleID != "" {
		return r.directory.PrincipalsByRole(ctx, responsibility.RoleID)
	}

	// A role responsibility without an explicit role id means "whoever
	// represents the counterparty organization for this resource". Only
	// internships have such an organization (the hiring company); for other
	// resource types the entry resolves empty and the step can stall with no
	// eligible approvers.
	if resourceType != models.ResourceTypeInternship {
		return nil, nil
	}

	organizationID, err := r.directory.OrganizationForResource(ctx, resourceType, resourceID)
	if err != nil {
		if persistence.IsOrganizationNotFound(err) {
			return nil, nil
		}

		return nil, err
	}

	return r.directory.OrganizationMembers(ctx, organizationID)
}

func (r *Resolver) resolveUser(ctx context.Context, responsibility *models.StepResponsibility) ([]*models.Principal, error) {
	if responsibility.PrincipalID == "" {
		return nil, nil
	}

	principal, err := r.directory.PrincipalByID(ctx, responsibility.PrincipalID)
	if err != nil {
		if persistence.IsPrincipalNotFound(err) {
			return nil, nil
		}

		return nil, err
	}

	if !principal.IsActive {
		return nil, nil
	}

	return []*models.Principal{principal}, nil
}

func (r *Resolver) resolveDirectorPool(ctx context.Context, resourceType models.ResourceType, resourceID string) ([]*models.Principal, error) {
	// The pool is scoped to the resource's owning organization. Without an
	// organization context the pool resolves empty.
	organizationID, err := r.directory.OrganizationForResource(ctx, resourceType, resourceID)
	if err != nil {
		if persistence.IsOrganizationNotFound(err) {
			return nil, nil
		}

		return nil, err
	}

	return r.directory.Directors(ctx, organizationID)
}
