package file

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/stagio/stagio/pkg/models"
)

const historyCollection = "approval_history"

// HistoryRepository stores audit entries, one document per entry. Documents
// are only ever created, never rewritten.
type HistoryRepository struct {
	persistence *Persistence
}

func (r *HistoryRepository) Append(ctx context.Context, entry *models.ApprovalHistory) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

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

	return r.persistence.writeDocument(historyCollection, entry.ID, entry)
}

func (r *HistoryRepository) HistoryByInstance(ctx context.Context, instanceID string) ([]*models.ApprovalHistory, error) {
	return r.filter(func(e *models.ApprovalHistory) bool {
		return e.InstanceID == instanceID
	})
}

func (r *HistoryRepository) HistoryByApproval(ctx context.Context, approvalID string) ([]*models.ApprovalHistory, error) {
	return r.filter(func(e *models.ApprovalHistory) bool {
		return e.ApprovalID == approvalID
	})
}

func (r *HistoryRepository) filter(keep func(*models.ApprovalHistory) bool) ([]*models.ApprovalHistory, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	entries := make([]*models.ApprovalHistory, 0)

	err := r.persistence.readCollection(historyCollection, func(id string) error {
		entry := &models.ApprovalHistory{}

		err := r.persistence.readDocument(historyCollection, id, entry)
		if err != nil {
			return fmt.Errorf("failed to read history entry %s: %w", id, err)
		}

		if keep(entry) {
			entries = append(entries, entry)
		}

		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}

		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	return entries, nil
}
