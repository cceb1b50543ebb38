// Package redis provides a Redis case store: one JSON document per case key
// with optimistic WATCH/MULTI transactions for conditional updates.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dukex/casegate/pkg/persistence"
)

const defaultPrefix = "casegate"

// Persistence implements the persistence layer for Redis.
type Persistence struct {
	client   redis.UniversalClient
	logger   *slog.Logger
	caseRepo *CaseRepository
}

// NewPersistence connects to the redis:// URL and verifies the connection.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	opts, err := redis.ParseURL(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return NewPersistenceWithClient(client, logger, defaultPrefix), nil
}

// NewPersistenceWithClient wraps an existing client; keys are namespaced by prefix.
func NewPersistenceWithClient(client redis.UniversalClient, logger *slog.Logger, prefix string) *Persistence {
	return &Persistence{
		client:   client,
		logger:   logger,
		caseRepo: NewCaseRepository(client, logger, prefix),
	}
}

// CaseRepository returns the Redis case repository.
func (p *Persistence) CaseRepository() persistence.CaseRepository {
	return p.caseRepo
}

// HealthCheck pings the server.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	return nil
}

// Close closes the client.
func (p *Persistence) Close(_ context.Context) error {
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	return nil
}
