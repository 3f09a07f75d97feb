package config

import "time"

// Config is the coordinator's bootstrap configuration: network listen
// addresses, state persistence, the scenario directory scanned at
// startup, and the optional Slack integration. Loaded from
// coordinator.toml (see loader.go).
type Config struct {
	// Listen is the coordinator's HTTP/websocket bind address
	// (agent control channel, user channel, proxy, artifact routes).
	Listen string `toml:"listen"`

	// StatePath is where the store's JSON snapshot is persisted.
	StatePath string `toml:"state_path"`

	// ScenarioDir is scanned at startup for *.yaml file-scenarios; each is
	// registered as a test-scenario under its file stem.
	ScenarioDir string `toml:"scenario_dir"`

	// ArtifactDir is the per-agent workspace root for uploaded artifacts,
	// owned by the coordinator.
	ArtifactDir string `toml:"artifact_dir"`

	// ProxyClientTimeout bounds the coordinator's outbound HTTP round
	// trip to remote_server (pkg/proxy.Handler.Client).
	ProxyClientTimeout time.Duration `toml:"proxy_client_timeout"`

	// Database is the run-history archive's connection config
	// (pkg/archive), TOML table `[database]`.
	Database DatabaseConfig `toml:"database"`

	// Slack is the optional report-ready notification target, TOML table
	// `[slack]`.
	Slack SlackConfig `toml:"slack"`

	// Retention configures pkg/cleanup's background pruning of the run
	// history archive, TOML table `[retention]`.
	Retention RetentionConfig `toml:"retention"`

	configDir string
}

// RetentionConfig bounds how long completed scenario runs stay in the
// archive, adapted from the teacher's RetentionConfig (session/event
// retention) to a single archive-pruning policy.
type RetentionConfig struct {
	RunRetentionDays int           `toml:"run_retention_days"`
	CleanupInterval  time.Duration `toml:"cleanup_interval"`
}

// DatabaseConfig configures the pgx connection pool backing the run
// history archive (pkg/archive), mirroring the teacher's
// database.Config/LoadConfigFromEnv shape but sourced from TOML instead
// of environment variables.
type DatabaseConfig struct {
	Host            string        `toml:"host"`
	Port            int           `toml:"port"`
	User            string        `toml:"user"`
	Password        string        `toml:"password"`
	Name            string        `toml:"name"`
	SSLMode         string        `toml:"ssl_mode"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

// SlackConfig configures the optional post-scenario-stop notification.
type SlackConfig struct {
	Enabled      bool   `toml:"enabled"`
	TokenEnv     string `toml:"token_env"`
	Channel      string `toml:"channel"`
	DashboardURL string `toml:"dashboard_url"`
}

// ConfigDir returns the directory coordinator.toml was loaded from.
// ScenarioDir and ArtifactDir are not resolved against it.
func (c *Config) ConfigDir() string {
	return c.configDir
}
