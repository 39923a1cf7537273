// Package shell executes plan steps that are raw shell commands.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ErrHumanInterventionRequired indicates the command wanted interactive
// input (a password or confirmation) that the system cannot provide.
var ErrHumanInterventionRequired = errors.New("human intervention required")

// maxOutput caps the combined output kept from a command.
const maxOutput = 30000

// interactiveMarkers are scanned for in early output to detect commands
// waiting on input we will never supply.
var interactiveMarkers = []string{
	"password:",
	"passphrase:",
	"continue? (y/n)",
	"continue? [y/n]",
	"[y/n]",
	"(yes/no)",
}

// Runner executes shell commands with a timeout.
type Runner struct {
	// Timeout bounds each command. Zero means 2 minutes.
	Timeout time.Duration
}

// NewRunner creates a runner with the given per-command timeout.
func NewRunner(timeout time.Duration) *Runner {
	return &Runner{Timeout: timeout}
}

// Result holds the outcome of one command.
type Result struct {
	// Output is the combined stdout and stderr, truncated past a cap.
	Output string
	// ExitCode is the command's exit code; -1 when it never ran or was killed.
	ExitCode int
}

// Run executes the command with `bash -c` in workDir. A detected interactive
// prompt kills the command and returns ErrHumanInterventionRequired. A
// non-zero exit or timeout returns an error with the output preserved in
// the Result.
func (r *Runner) Run(ctx context.Context, command, workDir string) (Result, error) {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = workDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout // combined output through one pipe

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("start command: %w", err)
	}

	var buf bytes.Buffer
	var mu sync.Mutex
	prompted := make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		chunk := make([]byte, 1024)
		for {
			n, readErr := stdout.Read(chunk)
			if n > 0 {
				mu.Lock()
				if buf.Len() < maxOutput {
					buf.Write(chunk[:n])
				}
				early := buf.Len() < 4096
				text := strings.ToLower(buf.String())
				mu.Unlock()

				if early && looksInteractive(text) {
					select {
					case prompted <- struct{}{}:
					default:
					}
				}
			}
			if readErr != nil {
				done <- cmd.Wait()
				return
			}
		}
	}()

	select {
	case <-prompted:
		cmd.Process.Kill()
		<-done
		mu.Lock()
		output := truncated(&buf)
		mu.Unlock()
		return Result{Output: output, ExitCode: -1},
			fmt.Errorf("command %q is waiting for interactive input: %w", command, ErrHumanInterventionRequired)

	case waitErr := <-done:
		mu.Lock()
		output := truncated(&buf)
		mu.Unlock()

		if ctx.Err() == context.DeadlineExceeded {
			return Result{Output: output, ExitCode: -1},
				fmt.Errorf("command timed out after %v", timeout)
		}

		if waitErr != nil {
			exitCode := -1
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) {
				exitCode = exitErr.ExitCode()
			}
			return Result{Output: output, ExitCode: exitCode},
				fmt.Errorf("command failed with exit code %d", exitCode)
		}

		return Result{Output: output, ExitCode: 0}, nil
	}
}

func looksInteractive(lowered string) bool {
	for _, marker := range interactiveMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func truncated(buf *bytes.Buffer) string {
	s := buf.String()
	if len(s) > maxOutput {
		return s[:maxOutput] + "\n... (output truncated)"
	}
	return s
}
