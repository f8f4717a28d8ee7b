package file

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/stagio/stagio/pkg/models"
	"github.com/stagio/stagio/pkg/persistence"
)

const (
	principalsCollection    = "directory/principals"
	organizationsCollection = "directory/organizations"
	membersCollection       = "directory/members"
	rolesCollection         = "directory/role_assignments"
	resourcesCollection     = "directory/resource_owners"
)

// DirectoryRepository stores the principal directory: principals,
// organizations, memberships, role assignments and resource ownership.
type DirectoryRepository struct {
	persistence *Persistence
}

func (r *DirectoryRepository) PrincipalByID(ctx context.Context, id string) (*models.Principal, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.principalByID(id)
}

func (r *DirectoryRepository) principalByID(id string) (*models.Principal, error) {
	principal := &models.Principal{}

	err := r.persistence.readDocument(principalsCollection, id, principal)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrPrincipalNotFound
		}

		return nil, fmt.Errorf("failed to read principal %s: %w", id, err)
	}

	return principal, nil
}

func (r *DirectoryRepository) PrincipalsByRole(ctx context.Context, roleID string) ([]*models.Principal, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	principals := make([]*models.Principal, 0)

	err := r.persistence.readCollection(rolesCollection, func(id string) error {
		assignment := &models.RoleAssignment{}

		err := r.persistence.readDocument(rolesCollection, id, assignment)
		if err != nil {
			return fmt.Errorf("failed to read role assignment %s: %w", id, err)
		}

		if assignment.RoleID != roleID {
			return nil
		}

		principal, err := r.principalByID(assignment.PrincipalID)
		if err != nil {
			if persistence.IsPrincipalNotFound(err) {
				return nil
			}

			return err
		}

		if principal.IsActive {
			principals = append(principals, principal)
		}

		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	sortPrincipals(principals)

	return principals, nil
}

func (r *DirectoryRepository) OrganizationMembers(ctx context.Context, organizationID string) ([]*models.Principal, error) {
	return r.members(organizationID, false)
}

func (r *DirectoryRepository) Directors(ctx context.Context, organizationID string) ([]*models.Principal, error) {
	return r.members(organizationID, true)
}

func (r *DirectoryRepository) members(organizationID string, directorsOnly bool) ([]*models.Principal, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	principals := make([]*models.Principal, 0)

	err := r.persistence.readCollection(membersCollection, func(id string) error {
		member := &models.OrganizationMember{}

		err := r.persistence.readDocument(membersCollection, id, member)
		if err != nil {
			return fmt.Errorf("failed to read member %s: %w", id, err)
		}

		if member.OrganizationID != organizationID {
			return nil
		}

		if directorsOnly && !member.IsDirector {
			return nil
		}

		principal, err := r.principalByID(member.PrincipalID)
		if err != nil {
			if persistence.IsPrincipalNotFound(err) {
				return nil
			}

			return err
		}

		if principal.IsActive {
			principals = append(principals, principal)
		}

		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	sortPrincipals(principals)

	return principals, nil
}

func (r *DirectoryRepository) OrganizationForResource(ctx context.Context, resourceType models.ResourceType, resourceID string) (string, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	owner := &models.ResourceOwner{}

	err := r.persistence.readDocument(resourcesCollection, resourceKey(resourceType, resourceID), owner)
	if err != nil {
		if os.IsNotExist(err) {
			return "", persistence.ErrOrganizationNotFound
		}

		return "", fmt.Errorf("failed to read resource owner: %w", err)
	}

	return owner.OrganizationID, nil
}

func (r *DirectoryRepository) SavePrincipal(ctx context.Context, principal *models.Principal) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

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

	return r.persistence.writeDocument(principalsCollection, principal.ID, principal)
}

func (r *DirectoryRepository) SaveOrganization(ctx context.Context, organization *models.Organization) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if organization.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate organization ID: %w", err)
		}

		organization.ID = id.String()
	}

	return r.persistence.writeDocument(organizationsCollection, organization.ID, organization)
}

func (r *DirectoryRepository) SaveMember(ctx context.Context, member *models.OrganizationMember) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	return r.persistence.writeDocument(membersCollection, member.OrganizationID+"_"+member.PrincipalID, member)
}

func (r *DirectoryRepository) SaveRoleAssignment(ctx context.Context, assignment *models.RoleAssignment) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	return r.persistence.writeDocument(rolesCollection, assignment.RoleID+"_"+assignment.PrincipalID, assignment)
}

func (r *DirectoryRepository) SaveResourceOwner(ctx context.Context, owner *models.ResourceOwner) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	return r.persistence.writeDocument(resourcesCollection, resourceKey(owner.ResourceType, owner.ResourceID), owner)
}

func resourceKey(resourceType models.ResourceType, resourceID string) string {
	return string(resourceType) + "_" + resourceID
}

func sortPrincipals(principals []*models.Principal) {
	sort.Slice(principals, func(i, j int) bool {
		return principals[i].ID < principals[j].ID
	})
}
