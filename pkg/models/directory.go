package models

import "time"

// OrganizationKind distinguishes the two organization families in the portal.
type OrganizationKind string

const (
	OrganizationKindUniversity OrganizationKind = "university"
	OrganizationKindCompany    OrganizationKind = "company"
)

// Principal is an account that can act on approvals.
type Principal struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"  validate:"required"`
	Email     string    `json:"email" validate:"omitempty,email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Organization is a university or company that owns resources and principals.
type Organization struct {
	ID   string           `json:"id"`
	Name string           `json:"name" validate:"required"`
	Kind OrganizationKind `json:"kind" validate:"required,oneof=university company"`
}

// OrganizationMember links a principal to an organization. Directors are
// members flagged IsDirector; the director pool responsibility resolves them.
type OrganizationMember struct {
	OrganizationID string `json:"organization_id"`
	PrincipalID    string `json:"principal_id"`
	IsDirector     bool   `json:"is_director"`
}

// RoleAssignment grants a named role to a principal. Role-type
// responsibilities with an explicit role id resolve through these.
type RoleAssignment struct {
	RoleID      string `json:"role_id"`
	PrincipalID string `json:"principal_id"`
}

// ResourceOwner maps a gated resource to its owning organization. This is the
// record behind the organization context provider: a resume belongs to the
// student's university, an internship to the posting company.
type ResourceOwner struct {
	ResourceType   ResourceType `json:"resource_type"`
	ResourceID     string       `json:"resource_id"`
	OrganizationID string       `json:"organization_id"`
}
