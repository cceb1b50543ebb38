// Package file provides a file-based case store: one JSON document per case.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/dukex/casegate/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root     string
	caseRepo *CaseRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:     cleanRoot,
		caseRepo: NewCaseRepository(cleanRoot),
	}
}

// CaseRepository returns the case repository implementation for file persistence.
func (fp *Persistence) CaseRepository() persistence.CaseRepository {
	return fp.caseRepo
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}
