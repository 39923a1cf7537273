package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ultron",
	Short: "Multi-agent task runner",
	Long: `Ultron turns a natural-language task into a working project.

A planner agent breaks the task into steps in a strict command language,
and specialized agents execute them: a coder with a review loop, a file
handler, a shell executor, web search, a document reader, and an error
resolver that repairs failed steps. Anything the system cannot fix is
escalated to you.

Core capabilities:
- Plans and replans until the task is complete
- Generates code and refines it until it clears a quality threshold
- Executes shell commands with timeout and interactive-prompt detection
- Repairs failures with bounded fix plans
- Persists every session, step, and created file for later inspection`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(versionCmd)
}
