package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ultronlabs/ultron/internal/state"
	"github.com/ultronlabs/ultron/pkg/models"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent sessions",
	Long: `Display recent Ultron sessions and their outcomes.

Shows:
  - Session status and task
  - Project directory and files created
  - Token usage and cost`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "How many sessions to show")
}

var (
	statusDoneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	statusFailedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusOtherStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func runStatus(cmd *cobra.Command, args []string) error {
	dbPath := state.DefaultDBPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No sessions yet. Run 'ultron run <task>' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	store := state.NewStore(db)
	sessions, err := store.ListSessions(statusLimit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions yet. Run 'ultron run <task>' to start.")
		return nil
	}

	for _, sess := range sessions {
		displaySession(store, sess)
	}
	return nil
}

func displaySession(store *state.Store, sess *models.Session) {
	fmt.Printf("%s  %s\n", styleStatus(sess.Status), sess.Task)
	fmt.Printf("    id: %s  started: %s", sess.ID, sess.StartedAt.Local().Format("2006-01-02 15:04"))
	if sess.FinishedAt != nil {
		fmt.Printf("  took: %s", sess.FinishedAt.Sub(sess.StartedAt).Round(time.Second))
	}
	fmt.Println()

	if sess.ProjectDir != "" {
		fmt.Printf("    project: %s\n", sess.ProjectDir)
	}
	if steps, err := store.CountSteps(sess.ID); err == nil && steps > 0 {
		fmt.Printf("    steps: %d\n", steps)
	}
	if files, err := store.SessionFiles(sess.ID); err == nil && len(files) > 0 {
		fmt.Printf("    files: %d\n", len(files))
	}
	if sess.TokensIn > 0 || sess.TokensOut > 0 {
		fmt.Printf("    tokens: %d in / %d out ($%.4f)\n", sess.TokensIn, sess.TokensOut, sess.Cost)
	}
	fmt.Println()
}

func styleStatus(status models.SessionStatus) string {
	label := fmt.Sprintf("[%s]", status)
	switch status {
	case models.SessionDone:
		return statusDoneStyle.Render(label)
	case models.SessionFailed, models.SessionError:
		return statusFailedStyle.Render(label)
	default:
		return statusOtherStyle.Render(label)
	}
}
