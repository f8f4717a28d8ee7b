package file

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/stagio/stagio/pkg/models"
	"github.com/stagio/stagio/pkg/persistence"
)

const instancesCollection = "instances"

// InstanceRepository stores workflow instances, one document per instance.
type InstanceRepository struct {
	persistence *Persistence
}

func (r *InstanceRepository) Create(ctx context.Context, instance *models.WorkflowInstance) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	existing, err := r.activeByResource(instance.ResourceType, instance.ResourceID)
	if err != nil && !persistence.IsInstanceNotFound(err) {
		return persistence.NewInstanceError("Create", instance.ID, err)
	}

	if existing != nil {
		return persistence.NewInstanceError("Create", instance.ID, persistence.ErrInstanceAlreadyExists)
	}

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

	return r.persistence.writeDocument(instancesCollection, instance.ID, instance)
}

func (r *InstanceRepository) InstanceByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.instanceByID(id)
}

func (r *InstanceRepository) instanceByID(id string) (*models.WorkflowInstance, error) {
	instance := &models.WorkflowInstance{}

	err := r.persistence.readDocument(instancesCollection, id, instance)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrInstanceNotFound
		}

		return nil, fmt.Errorf("failed to read instance %s: %w", id, err)
	}

	return instance, nil
}

func (r *InstanceRepository) ActiveByResource(ctx context.Context, resourceType models.ResourceType, resourceID string) (*models.WorkflowInstance, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.activeByResource(resourceType, resourceID)
}

func (r *InstanceRepository) activeByResource(resourceType models.ResourceType, resourceID string) (*models.WorkflowInstance, error) {
	var found *models.WorkflowInstance

	err := r.persistence.readCollection(instancesCollection, func(id string) error {
		instance, err := r.instanceByID(id)
		if err != nil {
			return err
		}

		if instance.ResourceType == resourceType && instance.ResourceID == resourceID && !instance.IsTerminal() {
			found = instance
		}

		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	if found == nil {
		return nil, persistence.ErrInstanceNotFound
	}

	return found, nil
}

func (r *InstanceRepository) AdvanceStep(ctx context.Context, instanceID string, fromSequence, toSequence int) (bool, error) {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	instance, err := r.instanceByID(instanceID)
	if err != nil {
		return false, persistence.NewInstanceError("AdvanceStep", instanceID, err)
	}

	if instance.CurrentStepSequence != fromSequence || instance.IsTerminal() {
		return false, nil
	}

	instance.CurrentStepSequence = toSequence
	instance.UpdatedAt = time.Now().UTC()

	err = r.persistence.writeDocument(instancesCollection, instance.ID, instance)
	if err != nil {
		return false, persistence.NewInstanceError("AdvanceStep", instanceID, err)
	}

	return true, nil
}

func (r *InstanceRepository) UpdateStatus(ctx context.Context, instanceID string, status models.InstanceStatus) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	instance, err := r.instanceByID(instanceID)
	if err != nil {
		return persistence.NewInstanceError("UpdateStatus", instanceID, err)
	}

	now := time.Now().UTC()
	instance.Status = status
	instance.UpdatedAt = now

	if instance.IsTerminal() && instance.CompletedAt == nil {
		instance.CompletedAt = &now
	}

	err = r.persistence.writeDocument(instancesCollection, instance.ID, instance)
	if err != nil {
		return persistence.NewInstanceError("UpdateStatus", instanceID, err)
	}

	return nil
}
