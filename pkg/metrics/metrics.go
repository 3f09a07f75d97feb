// Package metrics exposes a handful of otel counters for coordinator
// activity (agent registrations, scenario starts/stops), grounded on
// kadirpekel-hector's pkg/observability nil-safe counter-field pattern
// but backed directly by the otel metric API instead of a Prometheus
// registry, since ChaosBench has no HTTP metrics-scrape surface of its own.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "chaosbench/coordinator"

var (
	agentsRegistered metric.Int64Counter
	scenariosStarted metric.Int64Counter
	scenariosStopped metric.Int64Counter
)

// Init installs a periodic stdout-exporting MeterProvider as the otel
// global and creates this package's counters against it. Returns a
// shutdown func to flush and stop the exporter. Safe to call once, at
// coordinator startup; counters are nil-safe and stay inert if Init is
// never called.
func Init(_ context.Context) (shutdown func(context.Context) error, err error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithoutTimestamps())
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter(meterName)

	agentsRegistered, err = meter.Int64Counter("chaosbench.agents.registered",
		metric.WithDescription("Agent registrations accepted"))
	if err != nil {
		return nil, err
	}
	scenariosStarted, err = meter.Int64Counter("chaosbench.scenarios.started",
		metric.WithDescription("Scenarios started"))
	if err != nil {
		return nil, err
	}
	scenariosStopped, err = meter.Int64Counter("chaosbench.scenarios.stopped",
		metric.WithDescription("Scenarios stopped"))
	if err != nil {
		return nil, err
	}

	return provider.Shutdown, nil
}

// IncAgentsRegistered records one accepted agent registration.
func IncAgentsRegistered(ctx context.Context) {
	if agentsRegistered == nil {
		return
	}
	agentsRegistered.Add(ctx, 1)
}

// IncScenariosStarted records one scenario start.
func IncScenariosStarted(ctx context.Context) {
	if scenariosStarted == nil {
		return
	}
	scenariosStarted.Add(ctx, 1)
}

// IncScenariosStopped records one scenario stop.
func IncScenariosStopped(ctx context.Context) {
	if scenariosStopped == nil {
		return
	}
	scenariosStopped.Add(ctx, 1)
}
