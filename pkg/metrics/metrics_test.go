package metrics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaosbench/chaosbench/pkg/metrics"
)

func TestIncrementsAreNoOpsBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		metrics.IncAgentsRegistered(context.Background())
		metrics.IncScenariosStarted(context.Background())
		metrics.IncScenariosStopped(context.Background())
	})
}

func TestInitInstallsCountersAndShutdownSucceeds(t *testing.T) {
	ctx := context.Background()
	shutdown, err := metrics.Init(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(ctx) })

	assert.NotPanics(t, func() {
		metrics.IncAgentsRegistered(ctx)
		metrics.IncScenariosStarted(ctx)
		metrics.IncScenariosStopped(ctx)
	})
}
