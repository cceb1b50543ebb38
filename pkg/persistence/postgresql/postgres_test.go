package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/dukex/casegate/pkg/models"
	"github.com/dukex/casegate/pkg/persistence"
	"github.com/dukex/casegate/pkg/persistence/postgresql"
	"github.com/dukex/casegate/pkg/testutil"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Children first, parents last
	for _, table := range []string{"case_history", "cases", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("casegate_test"),
			postgres.WithUsername("casegate"),
			postgres.WithPassword("casegate"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	for _, table := range []string{"cases", "case_history", "schema_migrations"} {
		var exists bool

		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestCaseRepository(t *testing.T) {
	testutil.RunCaseRepositorySuite(t, func(t *testing.T) persistence.CaseRepository {
		t.Helper()

		p, _, _ := setupTestDB(t)

		return p.CaseRepository()
	})
}

func TestCaseRepository_HistoryIsAppendOnly(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)
	repo := p.CaseRepository()

	c := testutil.CreateTestCase()
	require.NoError(t, repo.Create(ctx, c))

	for _, status := range []string{"first", "second"} {
		_, err := repo.Apply(ctx, c.ID, &models.CaseUpdate{
			History: []models.HistoryEntry{{Actor: "alice", EventType: models.EventStageRevised, Detail: status}},
		})
		require.NoError(t, err)
	}

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		_ = db.Close()
	}()

	rows, err := db.QueryContext(ctx, "SELECT seq, detail FROM case_history WHERE case_id = $1 ORDER BY seq", c.ID)
	require.NoError(t, err)

	defer func() {
		_ = rows.Close()
	}()

	var details []string

	for rows.Next() {
		var (
			seq    int
			detail string
		)

		require.NoError(t, rows.Scan(&seq, &detail))
		assert.Equal(t, len(details), seq)

		details = append(details, detail)
	}

	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"", "first", "second"}, details)
}
