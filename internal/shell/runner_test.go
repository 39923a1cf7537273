package shell

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunSuccess(t *testing.T) {
	r := NewRunner(10 * time.Second)

	result, err := r.Run(context.Background(), "echo hello", t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
	if !strings.Contains(result.Output, "hello") {
		t.Errorf("Output = %q, want hello", result.Output)
	}
}

func TestRunWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	r := NewRunner(10 * time.Second)
	result, err := r.Run(context.Background(), "ls", dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(result.Output, "marker.txt") {
		t.Errorf("command did not run in workDir, output = %q", result.Output)
	}
}

func TestRunFailure(t *testing.T) {
	r := NewRunner(10 * time.Second)

	result, err := r.Run(context.Background(), "ls /definitely/not/a/path", t.TempDir())
	if err == nil {
		t.Fatal("expected error for failing command")
	}
	if result.ExitCode == 0 {
		t.Errorf("ExitCode = %d, want non-zero", result.ExitCode)
	}
	if result.Output == "" {
		t.Error("output should be preserved on failure")
	}
}

func TestRunCapturesStderr(t *testing.T) {
	r := NewRunner(10 * time.Second)

	result, err := r.Run(context.Background(), "echo oops >&2; exit 3", t.TempDir())
	if err == nil {
		t.Fatal("expected error for exit 3")
	}
	if result.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", result.ExitCode)
	}
	if !strings.Contains(result.Output, "oops") {
		t.Errorf("stderr not captured: %q", result.Output)
	}
}

func TestRunTimeout(t *testing.T) {
	r := NewRunner(200 * time.Millisecond)

	start := time.Now()
	_, err := r.Run(context.Background(), "sleep 10", t.TempDir())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("err = %v, want timeout", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout took far too long")
	}
}

func TestRunInteractivePromptDetected(t *testing.T) {
	r := NewRunner(5 * time.Second)

	// Prints a password prompt then waits well past the test timeout.
	_, err := r.Run(context.Background(), "printf 'Password: '; sleep 30", t.TempDir())
	if err == nil {
		t.Fatal("expected interactive prompt error")
	}
	if !errors.Is(err, ErrHumanInterventionRequired) {
		t.Errorf("err = %v, want ErrHumanInterventionRequired", err)
	}
}

func TestLooksInteractive(t *testing.T) {
	tests := []struct {
		output string
		want   bool
	}{
		{"password: ", true},
		{"do you want to continue? (y/n)", true},
		{"overwrite file? [y/n]", true},
		{"compiling module...", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := looksInteractive(tt.output); got != tt.want {
			t.Errorf("looksInteractive(%q) = %v, want %v", tt.output, got, tt.want)
		}
	}
}
