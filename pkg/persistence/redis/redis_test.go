package redis_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dukex/casegate/pkg/persistence"
	"github.com/dukex/casegate/pkg/persistence/redis"
	"github.com/dukex/casegate/pkg/testutil"
)

var redisURL string

func setupRedis(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}

	if redisURL != "" {
		return redisURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	redisURL = fmt.Sprintf("redis://%s:%s/0", host, port.Port())

	return redisURL
}

func TestCaseRepository(t *testing.T) {
	testutil.RunCaseRepositorySuite(t, func(t *testing.T) persistence.CaseRepository {
		t.Helper()

		opts, err := goredis.ParseURL(setupRedis(t))
		require.NoError(t, err)

		client := goredis.NewClient(opts)
		prefix := "casegate-test-" + t.Name()

		t.Cleanup(func() {
			ctx := context.Background()

			keys, err := client.Keys(ctx, prefix+":*").Result()
			if err == nil && len(keys) > 0 {
				_ = client.Del(ctx, keys...).Err()
			}

			_ = client.Close()
		})

		return redis.NewPersistenceWithClient(client, slog.Default(), prefix).CaseRepository()
	})
}

func TestNewPersistence(t *testing.T) {
	url := setupRedis(t)
	ctx := context.Background()

	p, err := redis.NewPersistence(ctx, slog.Default(), url)
	require.NoError(t, err)
	require.NoError(t, p.HealthCheck(ctx))
	require.NoError(t, p.Close(ctx))

	_, err = redis.NewPersistence(ctx, slog.Default(), "not-a-url")
	require.Error(t, err)
}
