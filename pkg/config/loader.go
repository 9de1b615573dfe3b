package config

import (
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Load reads config.yaml from configDir, merges it onto the built-in
// defaults (user values override, per dario.cat/mergo.WithOverride),
// and validates the result. A missing file is not an error — the
// built-in defaults are a complete, valid configuration on their own.
func Load(configDir string) (*Config, error) {
	cfg := defaults()

	path := filepath.Join(configDir, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := validate(&cfg); err != nil {
				return nil, err
			}
			return &cfg, nil
		}
		return nil, NewLoadError(path, err)
	}

	var userCfg Config
	if err := yaml.Unmarshal(data, &userCfg); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	if err := mergo.Merge(&cfg, userCfg, mergo.WithOverride); err != nil {
		return nil, NewLoadError(path, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.VerificationProfile == "" {
		return newValidationError("verification_profile", "must not be empty")
	}
	if cfg.Budgets.MaxIterationsPerLoop <= 0 {
		return newValidationError("budgets.max_iterations_per_loop", "must be positive")
	}
	if cfg.Staleness.MaxDepth <= 0 {
		return newValidationError("staleness.max_depth", "must be positive")
	}
	for _, p := range cfg.Portals {
		if p.Name == "" {
			return newValidationError("portals[].name", "must not be empty")
		}
	}
	return nil
}
