package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/chaosbench/chaosbench/pkg/scenario"
)

// DefaultConfig returns the coordinator's built-in defaults, merged under
// whatever coordinator.toml supplies (mirroring the teacher's
// built-in-then-override merge order in config.load, generalized here to
// a single bootstrap document instead of several component maps).
func DefaultConfig() *Config {
	return &Config{
		Listen:             ":8443",
		StatePath:          "./database.db",
		ScenarioDir:        "./scenarios",
		ArtifactDir:        "./artifacts",
		ProxyClientTimeout: 30 * time.Second,
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "chaosbench",
			Name:            "chaosbench",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
		},
		Retention: RetentionConfig{
			RunRetentionDays: 90,
			CleanupInterval:  time.Hour,
		},
	}
}

// LoadBootstrap reads path as a coordinator.toml document, expands
// environment variable references the same way scenario YAML does
// (ExpandEnv), merges it over DefaultConfig, and validates the result.
func LoadBootstrap(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewLoadError(path, err)
	}
	data = ExpandEnv(data)

	cfg := DefaultConfig()
	loaded := &Config{}
	if _, err := toml.Decode(string(data), loaded); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidTOML, err))
	}
	if err := mergo.Merge(cfg, loaded, mergo.WithOverride); err != nil {
		return nil, NewLoadError(path, err)
	}
	cfg.configDir = filepath.Dir(path)

	if err := ValidateBootstrap(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadScenarioFile reads a single scenario document from disk, expanding
// environment variables before YAML decoding. A scenario with no declared
// name takes the file's stem.
func LoadScenarioFile(path string) (scenario.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scenario.Scenario{}, NewLoadError(path, err)
	}
	data = ExpandEnv(data)

	var sc scenario.Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return scenario.Scenario{}, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}
	if sc.Name == "" {
		sc.Name = scenarioStem(path)
	}

	if err := ValidateScenario(sc); err != nil {
		return scenario.Scenario{}, err
	}
	return sc, nil
}

// LoadScenarioDir scans dir for *.yaml/*.yml documents and loads each,
// keyed by file stem, for registration as test-scenarios at startup.
func LoadScenarioDir(dir string) (map[string]scenario.Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]scenario.Scenario{}, nil
		}
		return nil, NewLoadError(dir, err)
	}

	out := make(map[string]scenario.Scenario, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		sc, err := LoadScenarioFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out[scenarioStem(name)] = sc
	}
	return out, nil
}

func scenarioStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
}
