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

// ApprovalRepository handles approval ledger database operations.
type ApprovalRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// CreateBatch inserts all rows in one transaction so a step entry either
// gets its full approver set or none of it.
func (r *ApprovalRepository) CreateBatch(ctx context.Context, approvals []*models.Approval) error {
	if len(approvals) == 0 {
		return nil
	}

	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

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

		_, err = tx.ExecContext(ctx, `
			INSERT INTO workflow_approvals (id, instance_id, step_id, responsibility_id, assignee_id, requestor_id, status, responsible, approver_id, request_time, response_time, comments)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, approval.ID, approval.InstanceID, approval.StepID, approval.ResponsibilityID, approval.AssigneeID,
			approval.RequestorID, approval.Status, approval.Responsible, approval.ApproverID,
			approval.RequestTime, approval.ResponseTime, approval.Comments)
		if err != nil {
			return persistence.NewApprovalError("CreateBatch", approval.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit approval batch: %w", err)
	}

	return nil
}

const approvalColumns = `
			id
		  , instance_id
		  , step_id
		  , responsibility_id
		  , assignee_id
		  , requestor_id
		  , status
		  , responsible
		  , approver_id
		  , request_time
		  , response_time
		  , comments
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApproval(row rowScanner) (*models.Approval, error) {
	approval := &models.Approval{}

	err := row.Scan(
		&approval.ID,
		&approval.InstanceID,
		&approval.StepID,
		&approval.ResponsibilityID,
		&approval.AssigneeID,
		&approval.RequestorID,
		&approval.Status,
		&approval.Responsible,
		&approval.ApproverID,
		&approval.RequestTime,
		&approval.ResponseTime,
		&approval.Comments,
	)
	if err != nil {
		return nil, err
	}

	return approval, nil
}

// ApprovalByID returns an approval row by its ID.
func (r *ApprovalRepository) ApprovalByID(ctx context.Context, id string) (*models.Approval, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+approvalColumns+`
		FROM workflow_approvals
		WHERE id = $1
	`, id)

	approval, err := scanApproval(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrApprovalNotFound
		}

		return nil, fmt.Errorf("failed to scan approval: %w", err)
	}

	return approval, nil
}

// ApprovalsByStep returns every ledger row for one step entry of an instance.
func (r *ApprovalRepository) ApprovalsByStep(ctx context.Context, instanceID, stepID string) ([]*models.Approval, error) {
	return r.queryApprovals(ctx, `
		SELECT `+approvalColumns+`
		FROM workflow_approvals
		WHERE instance_id = $1 AND step_id = $2
		ORDER BY request_time, id
	`, instanceID, stepID)
}

// ApprovalsByInstance returns every ledger row of an instance.
func (r *ApprovalRepository) ApprovalsByInstance(ctx context.Context, instanceID string) ([]*models.Approval, error) {
	return r.queryApprovals(ctx, `
		SELECT `+approvalColumns+`
		FROM workflow_approvals
		WHERE instance_id = $1
		ORDER BY request_time, id
	`, instanceID)
}

// PendingApprovals returns every pending row system-wide.
func (r *ApprovalRepository) PendingApprovals(ctx context.Context) ([]*models.Approval, error) {
	return r.queryApprovals(ctx, `
		SELECT `+approvalColumns+`
		FROM workflow_approvals
		WHERE status = 'pending'
		ORDER BY request_time, id
	`)
}

func (r *ApprovalRepository) queryApprovals(ctx context.Context, query string, args ...any) ([]*models.Approval, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvals: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	approvals := make([]*models.Approval, 0)

	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}

		approvals = append(approvals, approval)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating approvals: %w", err)
	}

	return approvals, nil
}

// RecordDecision persists a terminal decision, conditional on the row still
// being pending. Racing decisions lose by affecting zero rows.
func (r *ApprovalRepository) RecordDecision(ctx context.Context, approval *models.Approval) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE workflow_approvals
		SET status = $1
		  , approver_id = $2
		  , response_time = $3
		  , comments = $4
		WHERE id = $5 AND status = 'pending'
	`, approval.Status, approval.ApproverID, approval.ResponseTime, approval.Comments, approval.ID)
	if err != nil {
		return false, persistence.NewApprovalError("RecordDecision", approval.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, persistence.NewApprovalError("RecordDecision", approval.ID, err)
	}

	return affected == 1, nil
}

// UpdateComments overwrites the latest-comment field. The audit trail keeps
// every comment; this column only mirrors the newest one.
func (r *ApprovalRepository) UpdateComments(ctx context.Context, approvalID, comments string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE workflow_approvals
		SET comments = $1
		WHERE id = $2
	`, comments, approvalID)
	if err != nil {
		return persistence.NewApprovalError("UpdateComments", approvalID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewApprovalError("UpdateComments", approvalID, err)
	}

	if affected == 0 {
		return persistence.NewApprovalError("UpdateComments", approvalID, persistence.ErrApprovalNotFound)
	}

	return nil
}
