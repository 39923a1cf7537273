package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ultronlabs/ultron/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Ultron configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.
The special key 'path' prints the user config file location.

Configuration is stored at ~/.config/ultron/config.yaml
Project-specific overrides can be placed in .ultron.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 1 && args[0] == "path" {
			fmt.Println(config.GetUserConfigPath())
			return
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	// Mask API key if set
	apiKeyDisplay := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		apiKeyDisplay = "****"
	}

	fmt.Printf("anthropic.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("anthropic.aws_region: %s\n", cfg.Anthropic.AWSRegion)
	fmt.Printf("anthropic.aws_profile: %s\n", cfg.Anthropic.AWSProfile)
	fmt.Printf("defaults.model: %s\n", cfg.Defaults.Model)
	fmt.Printf("defaults.projects_dir: %s\n", cfg.Defaults.ProjectsDir)
	fmt.Printf("defaults.max_tokens: %d\n", cfg.Defaults.MaxTokens)
	fmt.Printf("quality.threshold: %d\n", cfg.Quality.Threshold)
	fmt.Printf("quality.max_refine_rounds: %d\n", cfg.Quality.MaxRefineRounds)
	fmt.Printf("limits.max_plan_rounds: %d\n", cfg.Limits.MaxPlanRounds)
	fmt.Printf("limits.max_repair_rounds: %d\n", cfg.Limits.MaxRepairRounds)
	fmt.Printf("limits.max_steps: %d\n", cfg.Limits.MaxSteps)
	fmt.Printf("limits.max_retries: %d\n", cfg.Limits.MaxRetries)
	fmt.Printf("shell.timeout: %s\n", cfg.Shell.Timeout)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey updates a configuration value and saves the config file.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := applyConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s set to %s\n", key, value)
}

func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch key {
	case "anthropic.api_key":
		if cfg.Anthropic.APIKey == "" {
			return "(not set)", nil
		}
		return "****", nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "defaults.model":
		return cfg.Defaults.Model, nil
	case "defaults.projects_dir":
		return cfg.Defaults.ProjectsDir, nil
	case "defaults.max_tokens":
		return strconv.Itoa(cfg.Defaults.MaxTokens), nil
	case "quality.threshold":
		return strconv.Itoa(cfg.Quality.Threshold), nil
	case "quality.max_refine_rounds":
		return strconv.Itoa(cfg.Quality.MaxRefineRounds), nil
	case "limits.max_plan_rounds":
		return strconv.Itoa(cfg.Limits.MaxPlanRounds), nil
	case "limits.max_repair_rounds":
		return strconv.Itoa(cfg.Limits.MaxRepairRounds), nil
	case "limits.max_steps":
		return strconv.Itoa(cfg.Limits.MaxSteps), nil
	case "limits.max_retries":
		return strconv.Itoa(cfg.Limits.MaxRetries), nil
	case "shell.timeout":
		return cfg.Shell.Timeout.String(), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

func applyConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %s", key, value)
		}
		cfg.Anthropic.UseBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "defaults.model":
		cfg.Defaults.Model = value
	case "defaults.projects_dir":
		cfg.Defaults.ProjectsDir = value
	case "defaults.max_tokens":
		return setIntKey(&cfg.Defaults.MaxTokens, key, value)
	case "quality.threshold":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 10 {
			return fmt.Errorf("quality.threshold must be 1-10, got %s", value)
		}
		cfg.Quality.Threshold = n
	case "quality.max_refine_rounds":
		return setIntKey(&cfg.Quality.MaxRefineRounds, key, value)
	case "limits.max_plan_rounds":
		return setIntKey(&cfg.Limits.MaxPlanRounds, key, value)
	case "limits.max_repair_rounds":
		return setIntKey(&cfg.Limits.MaxRepairRounds, key, value)
	case "limits.max_steps":
		return setIntKey(&cfg.Limits.MaxSteps, key, value)
	case "limits.max_retries":
		return setIntKey(&cfg.Limits.MaxRetries, key, value)
	case "shell.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s", key, value)
		}
		cfg.Shell.Timeout = d
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func setIntKey(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fmt.Errorf("invalid number for %s: %s", key, value)
	}
	*dst = n
	return nil
}
