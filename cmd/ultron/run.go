package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ultronlabs/ultron/internal/agent"
	"github.com/ultronlabs/ultron/internal/config"
	"github.com/ultronlabs/ultron/internal/llm"
	"github.com/ultronlabs/ultron/internal/orchestrator"
	"github.com/ultronlabs/ultron/internal/state"
	"github.com/ultronlabs/ultron/pkg/models"
)

var (
	runDir      string
	runModel    string
	runMaxSteps int
	runDryRun   bool
	runPrompts  string
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run a task end to end",
	Long: `Run a natural-language task through the full agent pipeline.

The planner breaks the task into steps, the agents execute them, and the
error resolver repairs failures. The run ends when the planner has nothing
left to schedule, a budget runs out, or a problem needs your attention.

Examples:
  ultron run "build a landing page for a coffee shop"
  ultron run "add input validation" --dir projects/my-api
  ultron run "make a snake game" --dry-run`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVar(&runDir, "dir", "", "Existing project directory to work in")
	runCmd.Flags().StringVar(&runModel, "model", "", "Model identifier override for this run")
	runCmd.Flags().IntVar(&runMaxSteps, "max-steps", 0, "Override the step budget for this run")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Print the first plan without executing it")
	runCmd.Flags().StringVar(&runPrompts, "prompts", "", "YAML file with agent persona overrides")
}

// taskFromArgs joins all positional arguments into one task, so an unquoted
// multi-word task is not silently truncated to its first word.
func taskFromArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runTask(cmd *cobra.Command, args []string) error {
	task := taskFromArgs(args)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runModel != "" {
		cfg.Defaults.Model = runModel
	}
	if runMaxSteps > 0 {
		cfg.Limits.MaxSteps = runMaxSteps
	}

	client, err := llm.NewClient(llm.ClientConfig{
		Model:         anthropic.Model(cfg.Defaults.Model),
		APIKey:        cfg.Anthropic.APIKey,
		MaxTokens:     cfg.Defaults.MaxTokens,
		MaxRetries:    cfg.Limits.MaxRetries,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return err
	}

	profiles := agent.DefaultProfiles()
	if runPrompts != "" {
		profiles, err = agent.LoadProfiles(runPrompts)
		if err != nil {
			return err
		}
	}

	var store *state.Store
	if !runDryRun {
		db, err := state.OpenDefault()
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		store = state.NewStore(db)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o := orchestrator.New(orchestrator.Options{
		Config:    cfg,
		Completer: client,
		Store:     store,
		Tracker:   client.Tracker(),
		Profiles:  profiles,
		Sink:      printEvent,
		Logger:    orchestrator.NewDebugLoggerForRun(cfg.Defaults.ProjectsDir),
	})

	result, runErr := o.Run(ctx, task, orchestrator.RunOptions{
		ProjectDir: runDir,
		DryRun:     runDryRun,
	})
	if result == nil {
		return runErr
	}

	if runDryRun {
		printPlan(result.Plan)
		return nil
	}

	printSummary(result)
	return runErr
}

func printEvent(e orchestrator.Event) {
	switch e.Type {
	case orchestrator.EventRunStarted:
		color.Cyan("▶ %s", e.Message)
	case orchestrator.EventPlanCreated:
		color.Cyan("plan: %s", e.Message)
	case orchestrator.EventStepStarted:
		fmt.Printf("  [%d] %s: %s\n", e.StepIndex, e.Agent, e.Message)
	case orchestrator.EventStepCompleted:
		color.Green("  [%d] ok %s", e.StepIndex, e.Message)
	case orchestrator.EventStepFailed:
		color.Red("  [%d] failed: %s", e.StepIndex, e.Err)
	case orchestrator.EventRepairStarted:
		color.Yellow("  [%d] repairing...", e.StepIndex)
	case orchestrator.EventEscalated:
		color.Yellow("  [%d] needs your attention", e.StepIndex)
	}
}

func printPlan(subtasks []models.Subtask) {
	fmt.Printf("Plan (%d steps):\n", len(subtasks))
	for i, st := range subtasks {
		fmt.Printf("  %d. [%s] %s\n", i+1, st.Agent, st.Description)
	}
}

func printSummary(result *orchestrator.Result) {
	fmt.Println()
	switch result.Status {
	case models.SessionDone:
		color.Green("Run complete.")
	case models.SessionNeedsHuman:
		color.Yellow("Run stopped: human intervention required.")
	default:
		color.Red("Run %s.", result.Status)
	}

	if result.ProjectDir != "" {
		fmt.Printf("Project:  %s\n", result.ProjectDir)
	}
	if len(result.CreatedFiles) > 0 {
		fmt.Printf("Files:    %d created\n", len(result.CreatedFiles))
		for _, f := range result.CreatedFiles {
			fmt.Printf("  - %s\n", f)
		}
	}
	fmt.Printf("Steps:    %d\n", result.StepsExecuted)
	fmt.Printf("Tokens:   %d in / %d out ($%.4f)\n", result.TokensIn, result.TokensOut, result.Cost)
	if result.SessionID != "" {
		fmt.Printf("Session:  %s\n", result.SessionID)
	}
}
