package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/chaosbench/chaosbench/pkg/scenario"
)

var validate = validator.New()

// bootstrapShape mirrors Config's externally-required fields with
// validator tags; Config itself carries an unexported configDir field
// that validator would otherwise choke on reflecting into.
type bootstrapShape struct {
	Listen      string `validate:"required"`
	StatePath   string `validate:"required"`
	ScenarioDir string `validate:"required"`
	ArtifactDir string `validate:"required"`
}

// ValidateBootstrap checks a loaded Config's required fields, adapted
// from the teacher's config.validate single entry point.
func ValidateBootstrap(cfg *Config) error {
	shape := bootstrapShape{
		Listen:      cfg.Listen,
		StatePath:   cfg.StatePath,
		ScenarioDir: cfg.ScenarioDir,
		ArtifactDir: cfg.ArtifactDir,
	}
	if err := validate.Struct(shape); err != nil {
		return NewValidationError("bootstrap", cfg.Listen, "", fmt.Errorf("%w: %v", ErrValidationFailed, err))
	}
	if cfg.Slack.Enabled && cfg.Slack.TokenEnv == "" {
		return NewValidationError("bootstrap", "slack", "token_env", ErrMissingRequiredField)
	}
	return nil
}

// sceneShape/scenarioShape mirror scenario.Scene/scenario.Scenario's
// required fields for validator, same reasoning as bootstrapShape: the
// scenario package stays free of a validator dependency since it's
// shared by every component, not just config loading.
type sceneShape struct {
	Name   string `validate:"required"`
	Phases int    `validate:"gte=1"`
}

type scenarioShape struct {
	Name   string `validate:"required"`
	Scenes int    `validate:"gte=1"`
}

// ValidateScenario checks a loaded scenario document's required shape: a
// name, at least one scene, and at least one phase per scene. Deeper
// invariants (scene_id ordering, retries_budget defaulting) are the
// compiler's (pkg/compiler) concern, not the loader's.
func ValidateScenario(sc scenario.Scenario) error {
	if err := validate.Struct(scenarioShape{Name: sc.Name, Scenes: len(sc.Scenes)}); err != nil {
		return NewValidationError("scenario", sc.Name, "", fmt.Errorf("%w: %v", ErrValidationFailed, err))
	}
	for _, scn := range sc.Scenes {
		if err := validate.Struct(sceneShape{Name: scn.Name, Phases: len(scn.Phases)}); err != nil {
			return NewValidationError("scene", scn.Name, "", fmt.Errorf("%w: %v", ErrValidationFailed, err))
		}
	}
	return nil
}
