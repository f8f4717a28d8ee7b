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

// WorkflowRepository handles workflow definition database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// Workflows returns all workflow definitions with their steps and
// responsibilities loaded.
func (r *WorkflowRepository) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , resource_type
		  , status
		  , created_at
		  , updated_at
		FROM workflows
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow := &models.Workflow{}

		err := rows.Scan(
			&workflow.ID,
			&workflow.Name,
			&workflow.Description,
			&workflow.ResourceType,
			&workflow.Status,
			&workflow.CreatedAt,
			&workflow.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	for _, workflow := range workflows {
		err = r.loadSteps(ctx, workflow)
		if err != nil {
			return nil, err
		}
	}

	return workflows, nil
}

// WorkflowByID returns a workflow definition with steps and responsibilities.
func (r *WorkflowRepository) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , resource_type
		  , status
		  , created_at
		  , updated_at
		FROM workflows
		WHERE id = $1
	`

	workflow := &models.Workflow{}

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Description,
		&workflow.ResourceType,
		&workflow.Status,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	err = r.loadSteps(ctx, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *WorkflowRepository) loadSteps(ctx context.Context, workflow *models.Workflow) error {
	query := `
		SELECT
			id
		  , workflow_id
		  , sequence
		  , name
		  , flow_type
		  , requires_all
		  , is_active
		  , created_at
		  , updated_at
		FROM workflow_steps
		WHERE workflow_id = $1
		ORDER BY sequence
	`

	rows, err := r.db.QueryContext(ctx, query, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow steps: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflow.Steps = make([]*models.WorkflowStep, 0)

	for rows.Next() {
		step := &models.WorkflowStep{}

		err := rows.Scan(
			&step.ID,
			&step.WorkflowID,
			&step.Sequence,
			&step.Name,
			&step.FlowType,
			&step.RequiresAll,
			&step.IsActive,
			&step.CreatedAt,
			&step.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to scan workflow step: %w", err)
		}

		workflow.Steps = append(workflow.Steps, step)
	}

	err = rows.Err()
	if err != nil {
		return fmt.Errorf("error iterating workflow steps: %w", err)
	}

	for _, step := range workflow.Steps {
		err = r.loadResponsibilities(ctx, step)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *WorkflowRepository) loadResponsibilities(ctx context.Context, step *models.WorkflowStep) error {
	query := `
		SELECT
			id
		  , step_id
		  , responsibility_type
		  , COALESCE(role_id, '')
		  , COALESCE(principal_id, '')
		  , can_approve
		  , can_reject
		  , can_comment
		  , priority
		  , is_active
		FROM workflow_step_responsibilities
		WHERE step_id = $1
		ORDER BY priority, id
	`

	rows, err := r.db.QueryContext(ctx, query, step.ID)
	if err != nil {
		return fmt.Errorf("failed to query step responsibilities: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	step.Responsibilities = make([]*models.StepResponsibility, 0)

	for rows.Next() {
		responsibility := &models.StepResponsibility{}

		err := rows.Scan(
			&responsibility.ID,
			&responsibility.StepID,
			&responsibility.Type,
			&responsibility.RoleID,
			&responsibility.PrincipalID,
			&responsibility.CanApprove,
			&responsibility.CanReject,
			&responsibility.CanComment,
			&responsibility.Priority,
			&responsibility.IsActive,
		)
		if err != nil {
			return fmt.Errorf("failed to scan responsibility: %w", err)
		}

		step.Responsibilities = append(step.Responsibilities, responsibility)
	}

	err = rows.Err()
	if err != nil {
		return fmt.Errorf("error iterating responsibilities: %w", err)
	}

	return nil
}

// Save upserts a workflow definition with its steps and responsibilities in
// one transaction. Used by seed loading only; the engine never writes here.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflows (id, name, description, resource_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , description = EXCLUDED.description
		  , resource_type = EXCLUDED.resource_type
		  , status = EXCLUDED.status
		  , updated_at = EXCLUDED.updated_at
	`, workflow.ID, workflow.Name, workflow.Description, workflow.ResourceType, workflow.Status, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	for _, step := range workflow.Steps {
		if step.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("failed to generate step ID: %w", err)
			}

			step.ID = id.String()
		}

		step.WorkflowID = workflow.ID

		if step.CreatedAt.IsZero() {
			step.CreatedAt = now
		}

		step.UpdatedAt = now

		_, err = tx.ExecContext(ctx, `
			INSERT INTO workflow_steps (id, workflow_id, sequence, name, flow_type, requires_all, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				sequence = EXCLUDED.sequence
			  , name = EXCLUDED.name
			  , flow_type = EXCLUDED.flow_type
			  , requires_all = EXCLUDED.requires_all
			  , is_active = EXCLUDED.is_active
			  , updated_at = EXCLUDED.updated_at
		`, step.ID, step.WorkflowID, step.Sequence, step.Name, step.FlowType, step.RequiresAll, step.IsActive, step.CreatedAt, step.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to save workflow step: %w", err)
		}

		for _, responsibility := range step.Responsibilities {
			if responsibility.ID == "" {
				id, err := uuid.NewV7()
				if err != nil {
					return fmt.Errorf("failed to generate responsibility ID: %w", err)
				}

				responsibility.ID = id.String()
			}

			responsibility.StepID = step.ID

			_, err = tx.ExecContext(ctx, `
				INSERT INTO workflow_step_responsibilities (id, step_id, responsibility_type, role_id, principal_id, can_approve, can_reject, can_comment, priority, is_active)
				VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10)
				ON CONFLICT (id) DO UPDATE SET
					responsibility_type = EXCLUDED.responsibility_type
				  , role_id = EXCLUDED.role_id
				  , principal_id = EXCLUDED.principal_id
				  , can_approve = EXCLUDED.can_approve
				  , can_reject = EXCLUDED.can_reject
				  , can_comment = EXCLUDED.can_comment
				  , priority = EXCLUDED.priority
				  , is_active = EXCLUDED.is_active
			`, responsibility.ID, responsibility.StepID, responsibility.Type, responsibility.RoleID, responsibility.PrincipalID,
				responsibility.CanApprove, responsibility.CanReject, responsibility.CanComment, responsibility.Priority, responsibility.IsActive)
			if err != nil {
				return fmt.Errorf("failed to save responsibility: %w", err)
			}
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit workflow save: %w", err)
	}

	return nil
}

// StepByID returns one step with its responsibilities.
func (r *WorkflowRepository) StepByID(ctx context.Context, stepID string) (*models.WorkflowStep, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , sequence
		  , name
		  , flow_type
		  , requires_all
		  , is_active
		  , created_at
		  , updated_at
		FROM workflow_steps
		WHERE id = $1
	`

	step := &models.WorkflowStep{}

	err := r.db.QueryRowContext(ctx, query, stepID).Scan(
		&step.ID,
		&step.WorkflowID,
		&step.Sequence,
		&step.Name,
		&step.FlowType,
		&step.RequiresAll,
		&step.IsActive,
		&step.CreatedAt,
		&step.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrStepNotFound
		}

		return nil, fmt.Errorf("failed to scan workflow step: %w", err)
	}

	err = r.loadResponsibilities(ctx, step)
	if err != nil {
		return nil, err
	}

	return step, nil
}
