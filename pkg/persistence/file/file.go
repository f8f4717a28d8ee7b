// Package file provides the file-based persistence implementation backing the
// portal's demo mode. Every logical table is mirrored as a directory of JSON
// documents under a common root.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/stagio/stagio/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root string

	// Coarse lock shared by all repositories. Conditional updates on
	// instances and approvals rely on it for read-modify-write atomicity.
	mu sync.RWMutex

	workflowRepo  *WorkflowRepository
	instanceRepo  *InstanceRepository
	approvalRepo  *ApprovalRepository
	historyRepo   *HistoryRepository
	directoryRepo *DirectoryRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. A "file://" prefix is stripped so database URLs work unchanged.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.workflowRepo = &WorkflowRepository{persistence: p}
	p.instanceRepo = &InstanceRepository{persistence: p}
	p.approvalRepo = &ApprovalRepository{persistence: p}
	p.historyRepo = &HistoryRepository{persistence: p}
	p.directoryRepo = &DirectoryRepository{persistence: p}

	return p
}

// Close performs any necessary cleanup. Nothing to clean up for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) InstanceRepository() persistence.InstanceRepository {
	return p.instanceRepo
}

func (p *Persistence) ApprovalRepository() persistence.ApprovalRepository {
	return p.approvalRepo
}

func (p *Persistence) HistoryRepository() persistence.HistoryRepository {
	return p.historyRepo
}

func (p *Persistence) DirectoryRepository() persistence.DirectoryRepository {
	return p.directoryRepo
}

// writeDocument marshals v into <root>/<collection>/<id>.json, creating the
// collection directory on first use. Callers hold the persistence lock.
func (p *Persistence) writeDocument(collection, id string, v any) error {
	dir := filepath.Join(p.root, collection)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", collection, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s document: %w", collection, err)
	}

	err = os.WriteFile(filepath.Join(dir, id+".json"), data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write %s document: %w", collection, err)
	}

	return nil
}

// readDocument unmarshals <root>/<collection>/<id>.json into v. It returns
// os.ErrNotExist when the document is missing.
func (p *Persistence) readDocument(collection, id string, v any) error {
	data, err := os.ReadFile(filepath.Join(p.root, collection, id+".json"))
	if err != nil {
		return err
	}

	err = json.Unmarshal(data, v)
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s document: %w", collection, err)
	}

	return nil
}

// readCollection calls visit for every document id in a collection.
func (p *Persistence) readCollection(collection string, visit func(id string) error) error {
	root := os.DirFS(filepath.Join(p.root, collection))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return fmt.Errorf("failed to list %s documents: %w", collection, err)
	}

	for _, name := range jsonFiles {
		err := visit(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return err
		}
	}

	return nil
}
