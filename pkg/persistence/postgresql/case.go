package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/dukex/casegate/pkg/models"
	"github.com/dukex/casegate/pkg/persistence"
)

const uniqueViolation = "23505"

const selectCase = `
	SELECT
		id
	  , title
	  , description
	  , owner
	  , status
	  , stages
	  , artifacts
	  , version
	  , created_at
	  , updated_at
	FROM cases
`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

// CaseRepository handles case-related database operations. Conditional
// updates lock the case row with SELECT ... FOR UPDATE for the whole
// check-and-apply transaction.
type CaseRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCaseRepository creates a new case repository.
func NewCaseRepository(db *sql.DB, logger *slog.Logger) *CaseRepository {
	return &CaseRepository{db: db, logger: logger}
}

// Create inserts a case and its initial history.
func (r *CaseRepository) Create(ctx context.Context, c *models.Case) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		stages, artifacts, err := encodeCase(c)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO cases (id, title, description, owner, status, stages, artifacts, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, c.ID, c.Title, c.Description, c.Owner, c.Status, stages, artifacts, c.Version, c.CreatedAt, c.UpdatedAt)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				return persistence.NewCaseError("Create", c.ID, persistence.ErrCaseAlreadyExists)
			}

			return fmt.Errorf("failed to insert case %s: %w", c.ID, err)
		}

		return insertHistory(ctx, tx, c.ID, 0, c.History)
	})
}

// GetByID loads a case with its full history.
func (r *CaseRepository) GetByID(ctx context.Context, id string) (*models.Case, error) {
	return r.load(ctx, r.db, id, false)
}

// List returns filtered and paginated cases.
func (r *CaseRepository) List(ctx context.Context, opts persistence.ListCasesOptions) (*persistence.CaseListResult, error) {
	if err := opts.Normalize(); err != nil {
		return nil, err
	}

	var (
		conditions []string
		args       []any
	)

	if opts.Owner != "" {
		args = append(args, opts.Owner)
		conditions = append(conditions, fmt.Sprintf("owner = $%d", len(args)))
	}

	if opts.Status != "" {
		args = append(args, opts.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	if !opts.UpdatedBefore.IsZero() {
		args = append(args, opts.UpdatedBefore)
		conditions = append(conditions, fmt.Sprintf("updated_at < $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var totalCount int64

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cases"+where, args...).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count cases: %w", err)
	}

	// SortBy and SortOrder are allowlisted by Normalize.
	query := fmt.Sprintf("%s%s ORDER BY %s %s, id LIMIT $%d OFFSET $%d",
		selectCase, where, opts.SortBy, strings.ToUpper(opts.SortOrder), len(args)+1, len(args)+2)

	rows, err := r.db.QueryContext(ctx, query, append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	cases := make([]*models.Case, 0)

	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}

		cases = append(cases, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cases: %w", err)
	}

	for _, c := range cases {
		c.History, err = loadHistory(ctx, r.db, c.ID)
		if err != nil {
			return nil, err
		}
	}

	return &persistence.CaseListResult{
		Cases:       cases,
		TotalCount:  totalCount,
		HasNextPage: int64(opts.Offset+len(cases)) < totalCount,
	}, nil
}

// Apply locks the case row, checks update and writes the result in one transaction.
func (r *CaseRepository) Apply(ctx context.Context, id string, update *models.CaseUpdate) (*models.Case, error) {
	var result *models.Case

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		c, err := r.load(ctx, tx, id, true)
		if err != nil {
			return err
		}

		before := len(c.History)

		if err := update.CheckAndApply(c, time.Now().UTC()); err != nil {
			return persistence.NewCaseError("Apply", id, err)
		}

		stages, artifacts, err := encodeCase(c)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE cases
			SET status = $2, stages = $3, artifacts = $4, version = $5, updated_at = $6
			WHERE id = $1
		`, c.ID, c.Status, stages, artifacts, c.Version, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update case %s: %w", id, err)
		}

		if err := insertHistory(ctx, tx, c.ID, before, c.History[before:]); err != nil {
			return err
		}

		result = c

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *CaseRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.ErrorContext(ctx, "failed to rollback transaction", "error", rbErr)
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *CaseRepository) load(ctx context.Context, q querier, id string, forUpdate bool) (*models.Case, error) {
	query := selectCase + " WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}

	c, err := scanCase(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewCaseError("GetByID", id, persistence.ErrCaseNotFound)
		}

		return nil, fmt.Errorf("failed to scan case %s: %w", id, err)
	}

	c.History, err = loadHistory(ctx, q, id)
	if err != nil {
		return nil, err
	}

	return c, nil
}

func scanCase(row scanner) (*models.Case, error) {
	var (
		c         models.Case
		stages    []byte
		artifacts []byte
	)

	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Owner, &c.Status, &stages, &artifacts,
		&c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(stages, &c.Stages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stages: %w", err)
	}

	if err := json.Unmarshal(artifacts, &c.Artifacts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal artifacts: %w", err)
	}

	return &c, nil
}

func encodeCase(c *models.Case) ([]byte, []byte, error) {
	stages := c.Stages
	if stages == nil {
		stages = map[models.Stage]models.CaseStatus{}
	}

	stagesJSON, err := json.Marshal(stages)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal stages: %w", err)
	}

	artifacts := c.Artifacts
	if artifacts == nil {
		artifacts = map[models.Stage]*models.Artifact{}
	}

	artifactsJSON, err := json.Marshal(artifacts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal artifacts: %w", err)
	}

	return stagesJSON, artifactsJSON, nil
}

func loadHistory(ctx context.Context, q querier, caseID string) ([]models.HistoryEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT occurred_at, actor, event_type, stage, from_status, to_status, detail
		FROM case_history
		WHERE case_id = $1
		ORDER BY seq
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for case %s: %w", caseID, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	history := make([]models.HistoryEntry, 0)

	for rows.Next() {
		var entry models.HistoryEntry

		err := rows.Scan(&entry.Timestamp, &entry.Actor, &entry.EventType, &entry.Stage,
			&entry.FromStatus, &entry.ToStatus, &entry.Detail)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		history = append(history, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return history, nil
}

func insertHistory(ctx context.Context, q querier, caseID string, firstSeq int, entries []models.HistoryEntry) error {
	for i, entry := range entries {
		_, err := q.ExecContext(ctx, `
			INSERT INTO case_history (case_id, seq, occurred_at, actor, event_type, stage, from_status, to_status, detail)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, caseID, firstSeq+i, entry.Timestamp, entry.Actor, entry.EventType, entry.Stage,
			entry.FromStatus, entry.ToStatus, entry.Detail)
		if err != nil {
			return fmt.Errorf("failed to insert history entry for case %s: %w", caseID, err)
		}
	}

	return nil
}
