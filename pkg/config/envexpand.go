package config

import "os"

// ExpandEnv expands environment variables in TOML/YAML content using Go's
// standard library. Supports both ${VAR} and $VAR syntax (standard
// shell-style).
//
// Examples:
//   - ${SLACK_BOT_TOKEN} → value of SLACK_BOT_TOKEN, so a scenario document
//     or coordinator.toml never has to carry a secret in plain text
//   - ${DB_HOST}:${DB_PORT} → hostname:port with both variables expanded
//
// Missing variables expand to empty string. Validation should catch
// required fields that are empty.
func ExpandEnv(data []byte) []byte {
	expanded := os.ExpandEnv(string(data))
	return []byte(expanded)
}
