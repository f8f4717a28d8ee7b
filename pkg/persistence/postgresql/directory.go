package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stagio/stagio/pkg/models"
	"github.com/stagio/stagio/pkg/persistence"
)

// DirectoryRepository handles the principal directory and organization
// context lookups backing approver resolution.
type DirectoryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// PrincipalByID returns a principal by id.
func (r *DirectoryRepository) PrincipalByID(ctx context.Context, id string) (*models.Principal, error) {
	principal := &models.Principal{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(email, ''), is_active, created_at
		FROM principals
		WHERE id = $1
	`, id).Scan(&principal.ID, &principal.Name, &principal.Email, &principal.IsActive, &principal.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrPrincipalNotFound
		}

		return nil, fmt.Errorf("failed to scan principal: %w", err)
	}

	return principal, nil
}

// PrincipalsByRole returns the active principals currently assigned a role.
func (r *DirectoryRepository) PrincipalsByRole(ctx context.Context, roleID string) ([]*models.Principal, error) {
	return r.queryPrincipals(ctx, `
		SELECT p.id, p.name, COALESCE(p.email, ''), p.is_active, p.created_at
		FROM principals p
		JOIN role_assignments ra ON ra.principal_id = p.id
		WHERE ra.role_id = $1 AND p.is_active
		ORDER BY p.id
	`, roleID)
}

// OrganizationMembers returns the active members of an organization.
func (r *DirectoryRepository) OrganizationMembers(ctx context.Context, organizationID string) ([]*models.Principal, error) {
	return r.queryPrincipals(ctx, `
		SELECT p.id, p.name, COALESCE(p.email, ''), p.is_active, p.created_at
		FROM principals p
		JOIN organization_members om ON om.principal_id = p.id
		WHERE om.organization_id = $1 AND p.is_active
		ORDER BY p.id
	`, organizationID)
}

// Directors returns the active directors of an organization.
func (r *DirectoryRepository) Directors(ctx context.Context, organizationID string) ([]*models.Principal, error) {
	return r.queryPrincipals(ctx, `
		SELECT p.id, p.name, COALESCE(p.email, ''), p.is_active, p.created_at
		FROM principals p
		JOIN organization_members om ON om.principal_id = p.id
		WHERE om.organization_id = $1 AND om.is_director AND p.is_active
		ORDER BY p.id
	`, organizationID)
}

// OrganizationForResource returns the owning organization of a resource.
func (r *DirectoryRepository) OrganizationForResource(ctx context.Context, resourceType models.ResourceType, resourceID string) (string, error) {
	var organizationID string

	err := r.db.QueryRowContext(ctx, `
		SELECT organization_id
		FROM resource_owners
		WHERE resource_type = $1 AND resource_id = $2
	`, resourceType, resourceID).Scan(&organizationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", persistence.ErrOrganizationNotFound
		}

		return "", fmt.Errorf("failed to scan resource owner: %w", err)
	}

	return organizationID, nil
}

func (r *DirectoryRepository) queryPrincipals(ctx context.Context, query string, args ...any) ([]*models.Principal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query principals: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	principals := make([]*models.Principal, 0)

	for rows.Next() {
		principal := &models.Principal{}

		err := rows.Scan(&principal.ID, &principal.Name, &principal.Email, &principal.IsActive, &principal.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan principal: %w", err)
		}

		principals = append(principals, principal)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating principals: %w", err)
	}

	return principals, nil
}

// SavePrincipal upserts a directory principal.
func (r *DirectoryRepository) SavePrincipal(ctx context.Context, principal *models.Principal) error {
	if principal.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate principal ID: %w", err)
		}

		principal.ID = id.String()
	}

	if principal.CreatedAt.IsZero() {
		principal.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO principals (id, name, email, is_active, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , email = EXCLUDED.email
		  , is_active = EXCLUDED.is_active
	`, principal.ID, principal.Name, principal.Email, principal.IsActive, principal.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save principal: %w", err)
	}

	return nil
}

// SaveOrganization upserts an organization.
func (r *DirectoryRepository) SaveOrganization(ctx context.Context, organization *models.Organization) error {
	if organization.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate organization ID: %w", err)
		}

		organization.ID = id.String()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , kind = EXCLUDED.kind
	`, organization.ID, organization.Name, organization.Kind)
	if err != nil {
		return fmt.Errorf("failed to save organization: %w", err)
	}

	return nil
}

// SaveMember upserts an organization membership.
func (r *DirectoryRepository) SaveMember(ctx context.Context, member *models.OrganizationMember) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organization_members (organization_id, principal_id, is_director)
		VALUES ($1, $2, $3)
		ON CONFLICT (organization_id, principal_id) DO UPDATE SET
			is_director = EXCLUDED.is_director
	`, member.OrganizationID, member.PrincipalID, member.IsDirector)
	if err != nil {
		return fmt.Errorf("failed to save organization member: %w", err)
	}

	return nil
}

// SaveRoleAssignment upserts a role assignment.
func (r *DirectoryRepository) SaveRoleAssignment(ctx context.Context, assignment *models.RoleAssignment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO role_assignments (role_id, principal_id)
		VALUES ($1, $2)
		ON CONFLICT (role_id, principal_id) DO NOTHING
	`, assignment.RoleID, assignment.PrincipalID)
	if err != nil {
		return fmt.Errorf("failed to save role assignment: %w", err)
	}

	return nil
}

// SaveResourceOwner upserts the owning organization of a resource.
func (r *DirectoryRepository) SaveResourceOwner(ctx context.Context, owner *models.ResourceOwner) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO resource_owners (resource_type, resource_id, organization_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (resource_type, resource_id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id
	`, owner.ResourceType, owner.ResourceID, owner.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to save resource owner: %w", err)
	}

	return nil
}
