package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stagio/stagio/pkg/models"
	"github.com/stagio/stagio/pkg/persistence"
)

const uniqueViolation = "23505"

// InstanceRepository handles workflow instance database operations.
type InstanceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// Create inserts a new instance. The partial unique index on
// (resource_type, resource_id) for non-terminal rows enforces the
// one-active-instance invariant; a violation surfaces as
// ErrInstanceAlreadyExists so callers can fall back to a fetch.
func (r *InstanceRepository) Create(ctx context.Context, instance *models.WorkflowInstance) error {
	now := time.Now().UTC()

	if instance.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate instance ID: %w", err)
		}

		instance.ID = id.String()
	}

	if instance.CreatedAt.IsZero() {
		instance.CreatedAt = now
	}

	instance.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workflow_instances (id, workflow_id, resource_type, resource_id, status, current_step_sequence, created_by, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, instance.ID, instance.WorkflowID, instance.ResourceType, instance.ResourceID, instance.Status,
		instance.CurrentStepSequence, instance.CreatedBy, instance.CreatedAt, instance.UpdatedAt, instance.CompletedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewInstanceError("Create", instance.ID, persistence.ErrInstanceAlreadyExists)
		}

		return persistence.NewInstanceError("Create", instance.ID, err)
	}

	return nil
}

const instanceColumns = `
			id
		  , workflow_id
		  , resource_type
		  , resource_id
		  , status
		  , current_step_sequence
		  , created_by
		  , created_at
		  , updated_at
		  , completed_at
`

func (r *InstanceRepository) scanInstance(row *sql.Row) (*models.WorkflowInstance, error) {
	instance := &models.WorkflowInstance{}

	err := row.Scan(
		&instance.ID,
		&instance.WorkflowID,
		&instance.ResourceType,
		&instance.ResourceID,
		&instance.Status,
		&instance.CurrentStepSequence,
		&instance.CreatedBy,
		&instance.CreatedAt,
		&instance.UpdatedAt,
		&instance.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	return instance, nil
}

// InstanceByID returns an instance by its ID.
func (r *InstanceRepository) InstanceByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+instanceColumns+`
		FROM workflow_instances
		WHERE id = $1
	`, id)

	instance, err := r.scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrInstanceNotFound
		}

		return nil, fmt.Errorf("failed to scan instance: %w", err)
	}

	return instance, nil
}

// ActiveByResource returns the non-terminal instance for a resource.
func (r *InstanceRepository) ActiveByResource(ctx context.Context, resourceType models.ResourceType, resourceID string) (*models.WorkflowInstance, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+instanceColumns+`
		FROM workflow_instances
		WHERE resource_type = $1 AND resource_id = $2 AND status IN ('pending', 'in_progress')
	`, resourceType, resourceID)

	instance, err := r.scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrInstanceNotFound
		}

		return nil, fmt.Errorf("failed to scan instance: %w", err)
	}

	return instance, nil
}

// AdvanceStep performs the conditional step increment. The WHERE clause on
// current_step_sequence makes concurrent transitions race safely: only one
// caller observes a rows-affected count of 1.
func (r *InstanceRepository) AdvanceStep(ctx context.Context, instanceID string, fromSequence, toSequence int) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE workflow_instances
		SET current_step_sequence = $1
		  , updated_at = $2
		WHERE id = $3
		  AND current_step_sequence = $4
		  AND status IN ('pending', 'in_progress')
	`, toSequence, time.Now().UTC(), instanceID, fromSequence)
	if err != nil {
		return false, persistence.NewInstanceError("AdvanceStep", instanceID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, persistence.NewInstanceError("AdvanceStep", instanceID, err)
	}

	return affected == 1, nil
}

// UpdateStatus sets the instance status, stamping completed_at on terminal
// transitions.
func (r *InstanceRepository) UpdateStatus(ctx context.Context, instanceID string, status models.InstanceStatus) error {
	now := time.Now().UTC()

	var completedAt *time.Time
	if status == models.InstanceStatusApproved || status == models.InstanceStatusRejected {
		completedAt = &now
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE workflow_instances
		SET status = $1
		  , updated_at = $2
		  , completed_at = COALESCE(completed_at, $3)
		WHERE id = $4
	`, status, now, completedAt, instanceID)
	if err != nil {
		return persistence.NewInstanceError("UpdateStatus", instanceID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewInstanceError("UpdateStatus", instanceID, err)
	}

	if affected == 0 {
		return persistence.NewInstanceError("UpdateStatus", instanceID, persistence.ErrInstanceNotFound)
	}

	return nil
}
