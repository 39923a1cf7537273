// Package config handles configuration loading and management for Ultron.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Ultron.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Quality   QualityConfig   `mapstructure:"quality"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Shell     ShellConfig     `mapstructure:"shell"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	// UseBedrock routes API calls through AWS Bedrock instead of the direct API.
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// DefaultsConfig holds default values for Ultron runs.
type DefaultsConfig struct {
	// Model is the LLM model identifier used for all agent calls.
	Model string `mapstructure:"model"`
	// ProjectsDir is the root directory generated projects are written under.
	ProjectsDir string `mapstructure:"projects_dir"`
	// MaxTokens is the per-call completion token limit.
	MaxTokens int `mapstructure:"max_tokens"`
}

// QualityConfig holds the coder's refinement loop settings.
type QualityConfig struct {
	// Threshold is the minimum reviewer score (1-10) to accept a draft.
	Threshold int `mapstructure:"threshold"`
	// MaxRefineRounds bounds the review/refactor loop per file.
	MaxRefineRounds int `mapstructure:"max_refine_rounds"`
}

// LimitsConfig holds orchestration loop bounds.
type LimitsConfig struct {
	// MaxPlanRounds bounds how many times the planner may be consulted.
	MaxPlanRounds int `mapstructure:"max_plan_rounds"`
	// MaxRepairRounds bounds error-resolver fix plans per run.
	MaxRepairRounds int `mapstructure:"max_repair_rounds"`
	// MaxSteps bounds total executed steps per run.
	MaxSteps int `mapstructure:"max_steps"`
	// MaxRetries bounds transient API retries per call.
	MaxRetries int `mapstructure:"max_retries"`
}

// ShellConfig holds shell execution settings.
type ShellConfig struct {
	// Timeout is the per-command execution timeout.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.ultron.yaml in current directory or parent)
// 3. User config (~/.config/ultron/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("defaults.model", cfg.Defaults.Model)
	v.Set("defaults.projects_dir", cfg.Defaults.ProjectsDir)
	v.Set("defaults.max_tokens", cfg.Defaults.MaxTokens)
	v.Set("quality.threshold", cfg.Quality.Threshold)
	v.Set("quality.max_refine_rounds", cfg.Quality.MaxRefineRounds)
	v.Set("limits.max_plan_rounds", cfg.Limits.MaxPlanRounds)
	v.Set("limits.max_repair_rounds", cfg.Limits.MaxRepairRounds)
	v.Set("limits.max_steps", cfg.Limits.MaxSteps)
	v.Set("limits.max_retries", cfg.Limits.MaxRetries)
	v.Set("shell.timeout", cfg.Shell.Timeout.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("defaults.model", "")
	v.SetDefault("defaults.projects_dir", "projects")
	v.SetDefault("defaults.max_tokens", 8192)

	v.SetDefault("quality.threshold", 7)
	v.SetDefault("quality.max_refine_rounds", 2)

	v.SetDefault("limits.max_plan_rounds", 5)
	v.SetDefault("limits.max_repair_rounds", 3)
	v.SetDefault("limits.max_steps", 40)
	v.SetDefault("limits.max_retries", 3)

	v.SetDefault("shell.timeout", "2m")
}

// getUserConfigDir returns the XDG config directory for Ultron.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "ultron")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "ultron")
	}
	return filepath.Join(home, ".config", "ultron")
}

// findProjectConfig searches for .ultron.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".ultron.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			Model:       "",
			ProjectsDir: "projects",
			MaxTokens:   8192,
		},
		Quality: QualityConfig{
			Threshold:       7,
			MaxRefineRounds: 2,
		},
		Limits: LimitsConfig{
			MaxPlanRounds:   5,
			MaxRepairRounds: 3,
			MaxSteps:        40,
			MaxRetries:      3,
		},
		Shell: ShellConfig{
			Timeout: 2 * time.Minute,
		},
	}
}
