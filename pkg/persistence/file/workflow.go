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

const workflowsCollection = "workflows"

// WorkflowRepository stores workflow definitions as one document per
// workflow, steps and responsibilities embedded.
type WorkflowRepository struct {
	persistence *Persistence
}

func (r *WorkflowRepository) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	workflows := make([]*models.Workflow, 0)

	err := r.persistence.readCollection(workflowsCollection, func(id string) error {
		workflow := &models.Workflow{}

		err := r.persistence.readDocument(workflowsCollection, id, workflow)
		if err != nil {
			return fmt.Errorf("failed to read workflow %s: %w", id, err)
		}

		workflows = append(workflows, workflow)

		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return workflows, nil
		}

		return nil, err
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (r *WorkflowRepository) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.workflowByID(id)
}

func (r *WorkflowRepository) workflowByID(id string) (*models.Workflow, error) {
	workflow := &models.Workflow{}

	err := r.persistence.readDocument(workflowsCollection, id, workflow)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to read workflow %s: %w", id, err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

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

	for _, step := range workflow.Steps {
		if step.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("failed to generate step ID: %w", err)
			}

			step.ID = id.String()
		}

		step.WorkflowID = workflow.ID

		for _, responsibility := range step.Responsibilities {
			if responsibility.ID == "" {
				id, err := uuid.NewV7()
				if err != nil {
					return fmt.Errorf("failed to generate responsibility ID: %w", err)
				}

				responsibility.ID = id.String()
			}

			responsibility.StepID = step.ID
		}
	}

	return r.persistence.writeDocument(workflowsCollection, workflow.ID, workflow)
}

func (r *WorkflowRepository) StepByID(ctx context.Context, stepID string) (*models.WorkflowStep, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	var found *models.WorkflowStep

	err := r.persistence.readCollection(workflowsCollection, func(id string) error {
		workflow := &models.Workflow{}

		err := r.persistence.readDocument(workflowsCollection, id, workflow)
		if err != nil {
			return fmt.Errorf("failed to read workflow %s: %w", id, err)
		}

		for _, step := range workflow.Steps {
			if step.ID == stepID {
				found = step

				return nil
			}
		}

		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	if found == nil {
		return nil, persistence.ErrStepNotFound
	}

	return found, nil
}
