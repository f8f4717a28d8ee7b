// Package definition loads workflow and directory seed documents from disk
// and registers them with the persistence layer. Seed files are validated
// against a JSON schema before anything is written, so a malformed document
// never leaves the store half-populated.
package definition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/stagio/stagio/pkg/models"
	"github.com/stagio/stagio/pkg/persistence"
)

var ErrInvalidSeed = errors.New("invalid seed document")

type Loader struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

func NewLoader(p persistence.Persistence, logger *slog.Logger) *Loader {
	return &Loader{
		persistence: p,
		logger:      logger.With("module", "definition"),
	}
}

type seedWorkflows struct {
	Workflows []seedWorkflow `json:"workflows"`
}

type seedWorkflow struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	ResourceType string     `json:"resource_type"`
	Status       string     `json:"status"`
	Steps        []seedStep `json:"steps"`
}

type seedStep struct {
	ID               string               `json:"id"`
	Sequence         int                  `json:"sequence"`
	Name             string               `json:"name"`
	FlowType         string               `json:"flow_type"`
	RequiresAll      bool                 `json:"requires_all"`
	IsActive         *bool                `json:"is_active"`
	Responsibilities []seedResponsibility `json:"responsibilities"`
}

type seedResponsibility struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	RoleID      string `json:"role_id"`
	PrincipalID string `json:"principal_id"`
	CanApprove  bool   `json:"can_approve"`
	CanReject   bool   `json:"can_reject"`
	CanComment  bool   `json:"can_comment"`
	Priority    int    `json:"priority"`
	IsActive    *bool  `json:"is_active"`
}

type seedDirectory struct {
	Principals []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		IsActive *bool  `json:"is_active"`
	} `json:"principals"`
	Organizations []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Kind string `json:"kind"`
	} `json:"organizations"`
	Members []struct {
		OrganizationID string `json:"organization_id"`
		PrincipalID    string `json:"principal_id"`
		IsDirector     bool   `json:"is_director"`
	} `json:"members"`
	RoleAssignments []struct {
		RoleID      string `json:"role_id"`
		PrincipalID string `json:"principal_id"`
	} `json:"role_assignments"`
	ResourceOwners []struct {
		ResourceType   string `json:"resource_type"`
		ResourceID     string `json:"resource_id"`
		OrganizationID string `json:"organization_id"`
	} `json:"resource_owners"`
}

// LoadDirectory reads every seed document it recognizes under dir. Missing
// files are skipped; present ones must validate.
func (l *Loader) LoadDirectory(ctx context.Context, dir string) error {
	workflowsPath := filepath.Join(dir, "workflows.json")
	if _, err := os.Stat(workflowsPath); err == nil {
		if err := l.LoadWorkflows(ctx, workflowsPath); err != nil {
			return err
		}
	}

	directoryPath := filepath.Join(dir, "directory.json")
	if _, err := os.Stat(directoryPath); err == nil {
		if err := l.LoadPrincipalDirectory(ctx, directoryPath); err != nil {
			return err
		}
	}

	return nil
}

// LoadWorkflows reads a workflow seed file, validates it and saves every
// workflow it contains. IDs are generated when the document omits them.
func (l *Loader) LoadWorkflows(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read workflow seed %s: %w", path, err)
	}

	if err := validate(workflowsSchema, data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	var seed seedWorkflows
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse workflow seed %s: %w", path, err)
	}

	repo := l.persistence.WorkflowRepository()

	for _, sw := range seed.Workflows {
		workflow := buildWorkflow(sw)

		if err := repo.Save(ctx, workflow); err != nil {
			return fmt.Errorf("failed to save workflow %s: %w", workflow.Name, err)
		}

		l.logger.InfoContext(ctx, "Workflow loaded",
			"workflow_id", workflow.ID,
			"name", workflow.Name,
			"steps", len(workflow.Steps))
	}

	return nil
}

// LoadPrincipalDirectory reads a directory seed file and saves principals,
// organizations, memberships, role assignments and resource owners.
func (l *Loader) LoadPrincipalDirectory(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read directory seed %s: %w", path, err)
	}

	if err := validate(directorySchema, data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	var seed seedDirectory
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse directory seed %s: %w", path, err)
	}

	repo := l.persistence.DirectoryRepository()

	for _, p := range seed.Principals {
		principal := &models.Principal{
			ID:        p.ID,
			Name:      p.Name,
			Email:     p.Email,
			IsActive:  boolOr(p.IsActive, true),
			CreatedAt: time.Now().UTC(),
		}

		if err := repo.SavePrincipal(ctx, principal); err != nil {
			return fmt.Errorf("failed to save principal %s: %w", principal.ID, err)
		}
	}

	for _, org := range seed.Organizations {
		organization := &models.Organization{
			ID:   org.ID,
			Name: org.Name,
			Kind: models.OrganizationKind(org.Kind),
		}

		if err := repo.SaveOrganization(ctx, organization); err != nil {
			return fmt.Errorf("failed to save organization %s: %w", org.ID, err)
		}
	}

	for _, m := range seed.Members {
		member := &models.OrganizationMember{
			OrganizationID: m.OrganizationID,
			PrincipalID:    m.PrincipalID,
			IsDirector:     m.IsDirector,
		}

		if err := repo.SaveMember(ctx, member); err != nil {
			return fmt.Errorf("failed to save member %s of %s: %w", m.PrincipalID, m.OrganizationID, err)
		}
	}

	for _, ra := range seed.RoleAssignments {
		assignment := &models.RoleAssignment{
			RoleID:      ra.RoleID,
			PrincipalID: ra.PrincipalID,
		}

		if err := repo.SaveRoleAssignment(ctx, assignment); err != nil {
			return fmt.Errorf("failed to save role assignment %s for %s: %w", ra.RoleID, ra.PrincipalID, err)
		}
	}

	for _, ro := range seed.ResourceOwners {
		owner := &models.ResourceOwner{
			ResourceType:   models.ResourceType(ro.ResourceType),
			ResourceID:     ro.ResourceID,
			OrganizationID: ro.OrganizationID,
		}

		if err := repo.SaveResourceOwner(ctx, owner); err != nil {
			return fmt.Errorf("failed to save resource owner %s/%s: %w", ro.ResourceType, ro.ResourceID, err)
		}
	}

	l.logger.InfoContext(ctx, "Directory loaded",
		"principals", len(seed.Principals),
		"organizations", len(seed.Organizations))

	return nil
}

func buildWorkflow(sw seedWorkflow) *models.Workflow {
	now := time.Now().UTC()

	workflow := &models.Workflow{
		ID:           orNewID(sw.ID),
		Name:         sw.Name,
		Description:  sw.Description,
		ResourceType: models.ResourceType(sw.ResourceType),
		Status:       models.WorkflowStatus(sw.Status),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	for _, ss := range sw.Steps {
		step := &models.WorkflowStep{
			ID:          orNewID(ss.ID),
			WorkflowID:  workflow.ID,
			Sequence:    ss.Sequence,
			Name:        ss.Name,
			FlowType:    models.FlowType(ss.FlowType),
			RequiresAll: ss.RequiresAll,
			IsActive:    boolOr(ss.IsActive, true),
			CreatedAt:   now,
		}

		for _, sr := range ss.Responsibilities {
			step.Responsibilities = append(step.Responsibilities, &models.StepResponsibility{
				ID:          orNewID(sr.ID),
				StepID:      step.ID,
				Type:        models.ResponsibilityType(sr.Type),
				RoleID:      sr.RoleID,
				PrincipalID: sr.PrincipalID,
				CanApprove:  sr.CanApprove,
				CanReject:   sr.CanReject,
				CanComment:  sr.CanComment,
				Priority:    sr.Priority,
				IsActive:    boolOr(sr.IsActive, true),
			})
		}

		workflow.Steps = append(workflow.Steps, step)
	}

	return workflow
}

func validate(schema string, document []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(document),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidSeed, strings.Join(messages, "; "))
}

func orNewID(id string) string {
	if id != "" {
		return id
	}

	return uuid.Must(uuid.NewV7()).String()
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}

	return *v
}
