// Package config loads orchestrator.yaml, following the teacher's
// viper-based layering: defaults, then an optional project file, then an
// optional explicit path override. Grounded on the teacher's
// internal/config/config.go and defaults.go.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ConfigFileName is the project-local config file name.
const ConfigFileName = "orchestrator"

// Config is the full orchestrator configuration, covering spec.md §6's
// configuration table one-for-one.
type Config struct {
	Phases          PhasesConfig          `mapstructure:"phases"`
	ModelAssignment ModelAssignmentConfig `mapstructure:"modelAssignment"`
	HumanCheckpoints HumanCheckpointsConfig `mapstructure:"humanCheckpoints"`
	Safety          SafetyConfig          `mapstructure:"safety"`
}

// PhasesConfig toggles and tunes individual orchestrator phases.
type PhasesConfig struct {
	CodebaseAnalysis  bool   `mapstructure:"codebaseAnalysis"`
	ImpactAnalysis    bool   `mapstructure:"impactAnalysis"`
	RegressionTesting bool   `mapstructure:"regressionTesting"`
	CycleReset        bool   `mapstructure:"cycleReset"`
	EventTransport    string `mapstructure:"eventTransport"`
}

// ModelAssignmentConfig assigns a model identifier per role. The
// orchestrator core treats these as opaque strings handed to LLMClient.
type ModelAssignmentConfig struct {
	Planner  string `mapstructure:"planner"`
	Worker   string `mapstructure:"worker"`
	Reviewer string `mapstructure:"reviewer"`
}

// HumanCheckpointsConfig controls when the orchestrator pauses for a human
// decision instead of proceeding autonomously.
type HumanCheckpointsConfig struct {
	BeforeExecution     bool `mapstructure:"beforeExecution"`
	OnHighRisk          bool `mapstructure:"onHighRisk"`
	OnRegressionFailure bool `mapstructure:"onRegressionFailure"`
	AfterCycleReview    bool `mapstructure:"afterCycleReview"`
}

// SafetyConfig controls the boundaries RegressionGate and BoundaryChecker
// enforce.
type SafetyConfig struct {
	EnforceRegressionGate  bool     `mapstructure:"enforceRegressionGate"`
	EnforceTypeCheck       bool     `mapstructure:"enforceTypeCheck"`
	MaxConsecutiveFailures int      `mapstructure:"maxConsecutiveFailures"`
	AllowedCommands        []string `mapstructure:"allowedCommands"`
	ForbiddenPaths         []string `mapstructure:"forbiddenPaths"`
}

// Load reads orchestrator.yaml from dir, falling back to defaults for any
// key left unset. Absence of the file is not an error.
func Load(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath reads configuration from an explicit file path.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			if err := v.Unmarshal(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithOverride behaves like the teacher's LoadConfigWithFile: an
// explicit path wins, otherwise a project-local file in workDir, otherwise
// defaults alone.
func LoadWithOverride(workDir, explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return LoadFromPath(explicitPath)
	}

	localPath := filepath.Join(workDir, ConfigFileName+".yaml")
	if _, err := os.Stat(localPath); err == nil {
		return Load(workDir)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	return Load(workDir)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("phases.codebaseAnalysis", true)
	v.SetDefault("phases.impactAnalysis", true)
	v.SetDefault("phases.regressionTesting", true)
	v.SetDefault("phases.cycleReset", true)
	v.SetDefault("phases.eventTransport", "in-process")

	v.SetDefault("modelAssignment.planner", "planner-default")
	v.SetDefault("modelAssignment.worker", "worker-default")
	v.SetDefault("modelAssignment.reviewer", "reviewer-default")

	v.SetDefault("humanCheckpoints.beforeExecution", true)
	v.SetDefault("humanCheckpoints.onHighRisk", true)
	v.SetDefault("humanCheckpoints.onRegressionFailure", true)
	v.SetDefault("humanCheckpoints.afterCycleReview", false)

	v.SetDefault("safety.enforceRegressionGate", true)
	v.SetDefault("safety.enforceTypeCheck", true)
	v.SetDefault("safety.maxConsecutiveFailures", DefaultMaxConsecutiveFailures)
	v.SetDefault("safety.allowedCommands", []string{"go", "npm", "pytest"})
	v.SetDefault("safety.forbiddenPaths", []string{".git/**", ".devorc/**"})
}
