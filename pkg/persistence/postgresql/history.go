package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stagio/stagio/pkg/models"
)

// HistoryRepository handles the append-only audit trail. There is no update
// or delete path.
type HistoryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// Append inserts one audit entry.
func (r *HistoryRepository) Append(ctx context.Context, entry *models.ApprovalHistory) error {
	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate history ID: %w", err)
		}

		entry.ID = id.String()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workflow_approval_history (id, approval_id, instance_id, action, previous_status, new_status, actor_id, comments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.ApprovalID, entry.InstanceID, entry.Action, entry.PreviousStatus, entry.NewStatus,
		entry.ActorID, entry.Comments, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}

	return nil
}

// HistoryByInstance returns the audit trail of an instance in order.
func (r *HistoryRepository) HistoryByInstance(ctx context.Context, instanceID string) ([]*models.ApprovalHistory, error) {
	return r.queryHistory(ctx, `
		SELECT
			id
		  , approval_id
		  , instance_id
		  , action
		  , previous_status
		  , new_status
		  , actor_id
		  , comments
		  , created_at
		FROM workflow_approval_history
		WHERE instance_id = $1
		ORDER BY created_at, id
	`, instanceID)
}

// HistoryByApproval returns the audit trail of one approval row in order.
func (r *HistoryRepository) HistoryByApproval(ctx context.Context, approvalID string) ([]*models.ApprovalHistory, error) {
	return r.queryHistory(ctx, `
		SELECT
			id
		  , approval_id
		  , instance_id
		  , action
		  , previous_status
		  , new_status
		  , actor_id
		  , comments
		  , created_at
		FROM workflow_approval_history
		WHERE approval_id = $1
		ORDER BY created_at, id
	`, approvalID)
}

func (r *HistoryRepository) queryHistory(ctx context.Context, query string, args ...any) ([]*models.ApprovalHistory, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.ApprovalHistory, 0)

	for rows.Next() {
		entry := &models.ApprovalHistory{}

		err := rows.Scan(
			&entry.ID,
			&entry.ApprovalID,
			&entry.InstanceID,
			&entry.Action,
			&entry.PreviousStatus,
			&entry.NewStatus,
			&entry.ActorID,
			&entry.Comments,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return entries, nil
}
