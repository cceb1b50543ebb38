package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/casegate/pkg/persistence"
	"github.com/dukex/casegate/pkg/persistence/file"
	"github.com/dukex/casegate/pkg/testutil"
)

func TestCaseRepository(t *testing.T) {
	testutil.RunCaseRepositorySuite(t, func(t *testing.T) persistence.CaseRepository {
		t.Helper()

		return file.NewPersistence("file://" + t.TempDir()).CaseRepository()
	})
}

func TestPersistence_HealthCheck(t *testing.T) {
	root := t.TempDir()

	p := file.NewPersistence(root)
	require.NoError(t, p.HealthCheck(context.Background()))
	require.NoError(t, p.Close(context.Background()))

	missing := file.NewPersistence(filepath.Join(root, "missing"))
	assert.ErrorIs(t, missing.HealthCheck(context.Background()), os.ErrNotExist)
}

func TestCaseRepository_RejectsPathIDs(t *testing.T) {
	repo := file.NewCaseRepository(t.TempDir())

	_, err := repo.GetByID(context.Background(), "../etc/passwd")
	require.Error(t, err)
	assert.NotErrorIs(t, err, persistence.ErrCaseNotFound)

	c := testutil.CreateTestCase(testutil.WithID("a/b"))
	require.Error(t, repo.Create(context.Background(), c))
}

func TestCaseRepository_ListEmptyDirectory(t *testing.T) {
	repo := file.NewCaseRepository(t.TempDir())

	result, err := repo.List(context.Background(), persistence.ListCasesOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Cases)
	assert.Zero(t, result.TotalCount)
}
