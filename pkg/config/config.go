// Package config loads the core's YAML configuration: verification
// profile, budgets, seeded portals, sandbox/oracle runner settings,
// staleness propagation depth, and the cross-loop correlation flag.
// Loading follows the teacher's pkg/config/loader.go shape: read YAML,
// merge onto built-in defaults with dario.cat/mergo, then validate.
package config

import "time"

// Config is the fully resolved, validated configuration.
type Config struct {
	VerificationProfile string               `yaml:"verification_profile"`
	Budgets              BudgetsConfig        `yaml:"budgets"`
	Sandbox              SandboxConfig        `yaml:"sandbox"`
	Staleness            StalenessConfig      `yaml:"staleness"`
	Portals              []PortalConfig       `yaml:"portals"`
	CrossLoopCorrelation CrossLoopCorrelation `yaml:"cross_loop_correlation"`
}

// BudgetsConfig bounds a loop governor's iteration spend (§4.11).
type BudgetsConfig struct {
	MaxIterationsPerLoop int           `yaml:"max_iterations_per_loop"`
	MaxWallClockPerLoop  time.Duration `yaml:"max_wall_clock_per_loop"`
}

// SandboxConfig controls the oracle runner's sandbox adapter.
type SandboxConfig struct {
	DefaultImage   string        `yaml:"default_image"`
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	AllowNetwork   bool          `yaml:"allow_network"`
}

// StalenessConfig bounds the dependency-graph BFS in pkg/graph.
type StalenessConfig struct {
	MaxDepth int `yaml:"max_depth"`
}

// PortalConfig seeds a human-facing decision portal the loop governor
// can route STOP conditions to.
type PortalConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

// CrossLoopCorrelation resolves Open Question 1: whether the worker
// bridge's context bundle may carry a correlation_id across loop
// boundaries. Defaults to false (undecided in the source spec).
type CrossLoopCorrelation struct {
	Allowed bool `yaml:"allowed"`
}

func defaults() Config {
	return Config{
		VerificationProfile: "STRICT-CORE",
		Budgets: BudgetsConfig{
			MaxIterationsPerLoop: 25,
			MaxWallClockPerLoop:  4 * time.Hour,
		},
		Sandbox: SandboxConfig{
			DefaultImage:   "",
			DefaultTimeout: 5 * time.Minute,
			AllowNetwork:   false,
		},
		Staleness: StalenessConfig{
			MaxDepth: 50,
		},
		Portals:              nil,
		CrossLoopCorrelation: CrossLoopCorrelation{Allowed: false},
	}
}
