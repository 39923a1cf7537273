package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ultronlabs/ultron/internal/config"
	"github.com/ultronlabs/ultron/internal/state"
)

var (
	cleanupForce     bool
	cleanupProjects  bool
	cleanupOlderThan time.Duration
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge old sessions from the database",
	Long: `Delete old session records, including their steps and file lists.

With --projects, the generated project directories of the purged sessions
are deleted too, but only those under the configured projects root.

Examples:
  ultron cleanup                       # Purge sessions older than 30 days
  ultron cleanup --older-than 168h     # Purge sessions older than a week
  ultron cleanup --projects            # Also delete their project directories
  ultron cleanup --force               # Skip the confirmation prompt`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "Skip confirmation prompt")
	cleanupCmd.Flags().BoolVar(&cleanupProjects, "projects", false, "Also delete the purged sessions' project directories")
	cleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 30*24*time.Hour, "Purge sessions older than this")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	dbPath := state.DefaultDBPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("Nothing to clean up.")
		return nil
	}

	if !cleanupForce {
		what := "sessions"
		if cleanupProjects {
			what = "sessions and their project directories"
		}
		fmt.Printf("Delete %s older than %s? [y/N] ", what, cleanupOlderThan)
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if !strings.EqualFold(strings.TrimSpace(line), "y") {
			fmt.Println("Aborted.")
			return nil
		}
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

	var dirs []string
	if cleanupProjects {
		dirs, err = store.OldSessionDirs(cleanupOlderThan)
		if err != nil {
			return err
		}
	}

	count, err := store.PurgeOldSessions(cleanupOlderThan)
	if err != nil {
		return err
	}
	fmt.Printf("Purged %d sessions.\n", count)

	if cleanupProjects {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		removed := removeProjectDirs(dirs, cfg.Defaults.ProjectsDir)
		fmt.Printf("Removed %d project directories.\n", removed)
	}
	return nil
}

// removeProjectDirs deletes only directories under the configured projects
// root; anything else recorded in the database is left alone.
func removeProjectDirs(dirs []string, projectsRoot string) int {
	root, err := filepath.Abs(projectsRoot)
	if err != nil {
		return 0
	}

	removed := 0
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		if err := os.RemoveAll(abs); err == nil {
			removed++
		}
	}
	return removed
}
