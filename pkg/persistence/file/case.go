package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dukex/casegate/pkg/models"
	"github.com/dukex/casegate/pkg/persistence"
)

// CaseRepository stores each case as cases/<id>.json under root. A process
// wide mutex makes every check-and-apply atomic; it does not protect against
// a second process writing the same directory.
type CaseRepository struct {
	root string
	mu   sync.Mutex
}

// NewCaseRepository creates a new case repository.
func NewCaseRepository(root string) *CaseRepository {
	return &CaseRepository{root: root}
}

func (r *CaseRepository) dir() string {
	return filepath.Join(r.root, "cases")
}

func (r *CaseRepository) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("invalid case id %q", id)
	}

	return filepath.Join(r.dir(), id+".json"), nil
}

// Create stores a new case.
func (r *CaseRepository) Create(_ context.Context, c *models.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	filePath, err := r.path(c.ID)
	if err != nil {
		return persistence.NewCaseError("Create", c.ID, err)
	}

	if _, err := os.Stat(filePath); err == nil {
		return persistence.NewCaseError("Create", c.ID, persistence.ErrCaseAlreadyExists)
	}

	return r.write(c)
}

// GetByID retrieves a case by its ID from the file system.
func (r *CaseRepository) GetByID(_ context.Context, id string) (*models.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.read(id)
}

// List returns filtered and paginated cases with in-memory operations.
func (r *CaseRepository) List(_ context.Context, opts persistence.ListCasesOptions) (*persistence.CaseListResult, error) {
	if err := opts.Normalize(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	jsonFiles, err := fs.Glob(os.DirFS(r.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list case files: %w", err)
	}

	cases := make([]*models.Case, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		c, err := r.read(strings.TrimSuffix(file, ".json"))
		if err != nil {
			if errors.Is(err, persistence.ErrCaseNotFound) {
				continue
			}

			return nil, err
		}

		cases = append(cases, c)
	}

	return persistence.Page(cases, opts), nil
}

// Apply checks update against the stored case and writes the result.
func (r *CaseRepository) Apply(_ context.Context, id string, update *models.CaseUpdate) (*models.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.read(id)
	if err != nil {
		return nil, err
	}

	if err := update.CheckAndApply(c, time.Now().UTC()); err != nil {
		return nil, persistence.NewCaseError("Apply", id, err)
	}

	if err := r.write(c); err != nil {
		return nil, err
	}

	return c, nil
}

func (r *CaseRepository) read(id string) (*models.Case, error) {
	filePath, err := r.path(id)
	if err != nil {
		return nil, persistence.NewCaseError("GetByID", id, err)
	}

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewCaseError("GetByID", id, persistence.ErrCaseNotFound)
		}

		return nil, fmt.Errorf("failed to fetch case %s: %w", id, err)
	}

	var c models.Case

	err = json.Unmarshal(body, &c)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal case %s: %w", id, err)
	}

	return &c, nil
}

// write replaces the case file through a rename so readers never see a partial document.
func (r *CaseRepository) write(c *models.Case) error {
	err := os.MkdirAll(r.dir(), 0o750)
	if err != nil {
		return fmt.Errorf("failed to create cases directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal case %s: %w", c.ID, err)
	}

	filePath, err := r.path(c.ID)
	if err != nil {
		return persistence.NewCaseError("Save", c.ID, err)
	}

	tmp, err := os.CreateTemp(r.dir(), c.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for case %s: %w", c.ID, err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write case %s: %w", c.ID, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to close case %s: %w", c.ID, err)
	}

	if err := os.Rename(tmp.Name(), filePath); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to save case %s: %w", c.ID, err)
	}

	return nil
}
