package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dukex/casegate/pkg/models"
	"github.com/dukex/casegate/pkg/persistence"
)

// maxTxRetries bounds how often Apply re-runs after a concurrent write
// invalidated its WATCH.
const maxTxRetries = 50

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// CaseRepository stores each case under <prefix>:case:<id> and indexes ids in
// the <prefix>:cases set.
type CaseRepository struct {
	client redis.UniversalClient
	logger *slog.Logger
	prefix string
}

// NewCaseRepository creates a new case repository.
func NewCaseRepository(client redis.UniversalClient, logger *slog.Logger, prefix string) *CaseRepository {
	return &CaseRepository{client: client, logger: logger, prefix: prefix}
}

func (r *CaseRepository) caseKey(id string) string {
	return r.prefix + ":case:" + id
}

func (r *CaseRepository) indexKey() string {
	return r.prefix + ":cases"
}

// Create stores a new case unless its key already exists.
func (r *CaseRepository) Create(ctx context.Context, c *models.Case) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal case %s: %w", c.ID, err)
	}

	key := r.caseKey(c.ID)

	return r.watch(ctx, key, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to check case %s: %w", c.ID, err)
		}

		if exists > 0 {
			return persistence.NewCaseError("Create", c.ID, persistence.ErrCaseAlreadyExists)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, r.indexKey(), c.ID)

			return nil
		})

		return err
	})
}

// GetByID loads a case.
func (r *CaseRepository) GetByID(ctx context.Context, id string) (*models.Case, error) {
	return r.get(ctx, r.client, id)
}

// List loads every indexed case and pages them in memory.
func (r *CaseRepository) List(ctx context.Context, opts persistence.ListCasesOptions) (*persistence.CaseListResult, error) {
	if err := opts.Normalize(); err != nil {
		return nil, err
	}

	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list case ids: %w", err)
	}

	if len(ids) == 0 {
		return persistence.Page(nil, opts), nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.caseKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load cases: %w", err)
	}

	cases := make([]*models.Case, 0, len(values))

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			r.logger.WarnContext(ctx, "Indexed case has no document", "case_id", ids[i])

			continue
		}

		var c models.Case
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("failed to unmarshal case %s: %w", ids[i], err)
		}

		cases = append(cases, &c)
	}

	return persistence.Page(cases, opts), nil
}

// Apply runs check-and-apply inside WATCH/MULTI, retrying when another writer
// touched the key between the read and the EXEC.
func (r *CaseRepository) Apply(ctx context.Context, id string, update *models.CaseUpdate) (*models.Case, error) {
	key := r.caseKey(id)

	var result *models.Case

	err := r.watch(ctx, key, func(tx *redis.Tx) error {
		c, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := update.CheckAndApply(c, time.Now().UTC()); err != nil {
			return persistence.NewCaseError("Apply", id, err)
		}

		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal case %s: %w", id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)

			return nil
		})
		if err != nil {
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

func (r *CaseRepository) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for range maxTxRetries {
		err := r.client.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return err
	}

	return fmt.Errorf("transaction on %s kept conflicting: %w", key, redis.TxFailedErr)
}

func (r *CaseRepository) get(ctx context.Context, cmd getter, id string) (*models.Case, error) {
	raw, err := cmd.Get(ctx, r.caseKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.NewCaseError("GetByID", id, persistence.ErrCaseNotFound)
		}

		return nil, fmt.Errorf("failed to fetch case %s: %w", id, err)
	}

	var c models.Case
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal case %s: %w", id, err)
	}

	return &c, nil
}
