package cleanup_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/chaosbench/chaosbench/pkg/archive"
	"github.com/chaosbench/chaosbench/pkg/cleanup"
	"github.com/chaosbench/chaosbench/pkg/config"
)

func newTestClient(t *testing.T) *archive.Client {
	t.Helper()
	ctx := context.Background()

	if host := os.Getenv("CHAOSBENCH_DB_HOST"); host != "" {
		cfg := config.DatabaseConfig{
			Host:            host,
			Port:            5432,
			User:            envOr("CHAOSBENCH_DB_USER", "test"),
			Password:        envOr("CHAOSBENCH_DB_PASSWORD", "test"),
			Name:            envOr("CHAOSBENCH_DB_NAME", "test"),
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Hour,
		}
		client, err := archive.Open(ctx, cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		return client
	}

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	client, err := archive.Open(ctx, config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "test",
		Password:        "test",
		Name:            "test",
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestServicePrunesRunsOlderThanRetention(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Append(ctx, archive.Record{
		Name:      "old-run",
		StartedAt: time.Now().AddDate(0, 0, -400),
		StoppedAt: time.Now().AddDate(0, 0, -400),
		PassCount: 1,
		FailCount: 0,
		Report:    "# old-run\n",
	}))
	require.NoError(t, client.Append(ctx, archive.Record{
		Name:      "recent-run",
		StartedAt: time.Now(),
		StoppedAt: time.Now(),
		PassCount: 1,
		FailCount: 0,
		Report:    "# recent-run\n",
	}))

	svc := cleanup.NewService(config.RetentionConfig{
		RunRetentionDays: 365,
		CleanupInterval:  time.Hour,
	}, client)

	ctx2, cancel := context.WithCancel(ctx)
	svc.Start(ctx2)
	svc.Stop()
	cancel()

	recent, err := client.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "recent-run", recent[0].Name)
}

func TestServicePreservesRunsWithinRetention(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Append(ctx, archive.Record{
		Name:      "within-window",
		StartedAt: time.Now().AddDate(0, 0, -30),
		StoppedAt: time.Now().AddDate(0, 0, -30),
		PassCount: 1,
		FailCount: 0,
		Report:    "# within-window\n",
	}))

	svc := cleanup.NewService(config.RetentionConfig{
		RunRetentionDays: 90,
		CleanupInterval:  time.Hour,
	}, client)

	ctx2, cancel := context.WithCancel(ctx)
	svc.Start(ctx2)
	svc.Stop()
	cancel()

	recent, err := client.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "within-window", recent[0].Name)
}
