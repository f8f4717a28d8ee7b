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

const approvalsCollection = "approvals"

// ApprovalRepository stores approval ledger rows, one document per row.
type ApprovalRepository struct {
	persistence *Persistence
}

func (r *ApprovalRepository) CreateBatch(ctx context.Context, approvals []*models.Approval) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	now := time.Now().UTC()

	for _, approval := range approvals {
		if approval.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("failed to generate approval ID: %w", err)
			}

			approval.ID = id.String()
		}

		if approval.RequestTime.IsZero() {
			approval.RequestTime = now
		}

		if approval.Status == "" {
			approval.Status = models.ApprovalStatusPending
		}

		err := r.persistence.writeDocument(approvalsCollection, approval.ID, approval)
		if err != nil {
			return persistence.NewApprovalError("CreateBatch", approval.ID, err)
		}
	}

	return nil
}

func (r *ApprovalRepository) ApprovalByID(ctx context.Context, id string) (*models.Approval, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.approvalByID(id)
}

func (r *ApprovalRepository) approvalByID(id string) (*models.Approval, error) {
	approval := &models.Approval{}

	err := r.persistence.readDocument(approvalsCollection, id, approval)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrApprovalNotFound
		}

		return nil, fmt.Errorf("failed to read approval %s: %w", id, err)
	}

	return approval, nil
}

func (r *ApprovalRepository) ApprovalsByStep(ctx context.Context, instanceID, stepID string) ([]*models.Approval, error) {
	return r.filter(func(a *models.Approval) bool {
		return a.InstanceID == instanceID && a.StepID == stepID
	})
}

func (r *ApprovalRepository) ApprovalsByInstance(ctx context.Context, instanceID string) ([]*models.Approval, error) {
	return r.filter(func(a *models.Approval) bool {
		return a.InstanceID == instanceID
	})
}

func (r *ApprovalRepository) PendingApprovals(ctx context.Context) ([]*models.Approval, error) {
	return r.filter(func(a *models.Approval) bool {
		return a.Status == models.ApprovalStatusPending
	})
}

func (r *ApprovalRepository) filter(keep func(*models.Approval) bool) ([]*models.Approval, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	approvals := make([]*models.Approval, 0)

	err := r.persistence.readCollection(approvalsCollection, func(id string) error {
		approval, err := r.approvalByID(id)
		if err != nil {
			return err
		}

		if keep(approval) {
			approvals = append(approvals, approval)
		}

		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	sort.Slice(approvals, func(i, j int) bool {
		if approvals[i].RequestTime.Equal(approvals[j].RequestTime) {
			return approvals[i].ID < approvals[j].ID
		}

		return approvals[i].RequestTime.Before(approvals[j].RequestTime)
	})

	return approvals, nil
}

func (r *ApprovalRepository) RecordDecision(ctx context.Context, approval *models.Approval) (bool, error) {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	current, err := r.approvalByID(approval.ID)
	if err != nil {
		return false, persistence.NewApprovalError("RecordDecision", approval.ID, err)
	}

	if current.Status != models.ApprovalStatusPending {
		return false, nil
	}

	err = r.persistence.writeDocument(approvalsCollection, approval.ID, approval)
	if err != nil {
		return false, persistence.NewApprovalError("RecordDecision", approval.ID, err)
	}

	return true, nil
}

func (r *ApprovalRepository) UpdateComments(ctx context.Context, approvalID, comments string) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	approval, err := r.approvalByID(approvalID)
	if err != nil {
		return persistence.NewApprovalError("UpdateComments", approvalID, err)
	}

	approval.Comments = &comments

	err = r.persistence.writeDocument(approvalsCollection, approval.ID, approval)
	if err != nil {
		return persistence.NewApprovalError("UpdateComments", approvalID, err)
	}

	return nil
}
