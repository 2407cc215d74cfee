// Package file provides file-based persistence implementation for workflows, instances and approvals.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/hrflow/hrflow/pkg/persistence"
)

const (
	workflowsDir      = "workflows"
	instancesDir      = "instances"
	pendingActionsDir = "pending_actions"
	auditDir          = "audit"
)

var errInvalidID = errors.New("id contains invalid characters")

// Persistence implements the persistence.Persistence interface using the file system.
// Documents live under <root>/<tenant>/<collection>/<id>.json. A single lock serializes
// writes so the compare-and-set operations hold within one process.
type Persistence struct {
	root string
	mu   sync.RWMutex

	workflowRepo      *WorkflowRepository
	instanceRepo      *InstanceRepository
	pendingActionRepo *PendingActionRepository
	auditRepo         *AuditRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	fp := &Persistence{root: strings.Replace(root, "file://", "", 1)}

	fp.workflowRepo = &WorkflowRepository{fp: fp}
	fp.instanceRepo = &InstanceRepository{fp: fp}
	fp.pendingActionRepo = &PendingActionRepository{fp: fp}
	fp.auditRepo = &AuditRepository{fp: fp}

	return fp
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists or can be created.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(fp.root, 0750); err != nil {
		return fmt.Errorf("file persistence root %s unavailable: %w", fp.root, err)
	}

	return nil
}

// WorkflowRepository returns the workflow repository implementation for file persistence.
func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

// InstanceRepository returns the instance repository implementation for file persistence.
func (fp *Persistence) InstanceRepository() persistence.InstanceRepository {
	return fp.instanceRepo
}

// PendingActionRepository returns the pending action repository implementation for file persistence.
func (fp *Persistence) PendingActionRepository() persistence.PendingActionRepository {
	return fp.pendingActionRepo
}

// AuditRepository returns the audit repository implementation for file persistence.
func (fp *Persistence) AuditRepository() persistence.AuditRepository {
	return fp.auditRepo
}

// validateID rejects ids that could escape the storage root.
func validateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", errInvalidID, id)
	}

	return nil
}

func (fp *Persistence) dir(tenantID, collection string) (string, error) {
	if err := validateID(tenantID); err != nil {
		return "", fmt.Errorf("tenant: %w", err)
	}

	return filepath.Join(fp.root, tenantID, collection), nil
}

func (fp *Persistence) path(tenantID, collection, id string) (string, error) {
	dir, err := fp.dir(tenantID, collection)
	if err != nil {
		return "", err
	}

	if err := validateID(id); err != nil {
		return "", err
	}

	return filepath.Join(dir, id+".json"), nil
}

// readDocument loads a JSON document. found is false when the file does not exist.
func readDocument(path string, v any) (bool, error) {
	body, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return true, nil
}

// writeDocument replaces a JSON document via a temporary file and rename.
func writeDocument(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return os.Rename(tmp, path)
}

// readCollection decodes every document of a directory, ordered by file name.
func readCollection[T any](dir string) ([]*T, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	out := make([]*T, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		var doc T
		if _, err := readDocument(filepath.Join(dir, entry.Name()), &doc); err != nil {
			return nil, err
		}

		out = append(out, &doc)
	}

	return out, nil
}
