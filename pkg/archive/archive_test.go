package archive_test

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
	"github.com/chaosbench/chaosbench/pkg/config"
)

// newTestClient opens an archive.Client from the CHAOSBENCH_DB_*
// environment variables when CHAOSBENCH_DB_HOST is set, otherwise spins up a testcontainers
// Postgres instance, mirroring the teacher's test/database.NewTestClient.
func newTestClient(t *testing.T) *archive.Client {
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

func TestAppendAndRecent(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	rec := archive.Record{
		Name:      "chaos-reboot",
		StartedAt: time.Now().Add(-time.Minute),
		StoppedAt: time.Now(),
		PassCount: 2,
		FailCount: 1,
		Report:    "# chaos-reboot\n",
	}
	require.NoError(t, client.Append(ctx, rec))

	recent, err := client.Recent(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, recent)
	assert.Equal(t, "chaos-reboot", recent[0].Name)
	assert.Equal(t, 2, recent[0].PassCount)
	assert.Equal(t, 1, recent[0].FailCount)
}

func TestByName(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Append(ctx, archive.Record{
		Name:      "by-name-target",
		StartedAt: time.Now(),
		StoppedAt: time.Now(),
		PassCount: 1,
		FailCount: 0,
		Report:    "# by-name-target\n",
	}))

	runs, err := client.ByName(ctx, "by-name-target", 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "by-name-target", runs[0].Name)
}

func TestHealth(t *testing.T) {
	client := newTestClient(t)
	status, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status.Status)
}
