package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ultronlabs/ultron/internal/config"
	"github.com/ultronlabs/ultron/internal/envcheck"
)

var doctorTools []string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment is ready",
	Long: `Verify the environment Ultron depends on.

Checks:
  - An API key is configured (or Bedrock is enabled)
  - bash is available for shell steps
  - Any extra tools passed with --tools are on PATH`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().StringSliceVar(&doctorTools, "tools", nil, "Extra tools to check, e.g. --tools python3,npm")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ok := true

	switch {
	case cfg.Anthropic.UseBedrock:
		color.Green("  ok       AWS Bedrock enabled (region %s)", cfg.Anthropic.AWSRegion)
	case cfg.Anthropic.APIKey != "" || os.Getenv("ANTHROPIC_API_KEY") != "":
		color.Green("  ok       API key configured")
	default:
		color.Red("  missing  API key (set ANTHROPIC_API_KEY or anthropic.api_key)")
		ok = false
	}

	tools := append([]string{"bash"}, doctorTools...)
	fmt.Print(envcheck.Report(envcheck.Check(tools)))
	if missing := envcheck.Missing(tools); len(missing) > 0 {
		ok = false
	}

	if !ok {
		return fmt.Errorf("environment is not ready")
	}
	color.Green("Environment looks good.")
	return nil
}
