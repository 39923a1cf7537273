package state

import (
	"fmt"
	"testing"

	"github.com/ultronlabs/ultron/pkg/models"
)

func TestSharedStatusHistory(t *testing.T) {
	s := NewShared("make a calculator")

	if s.Status() != models.SessionPlanning {
		t.Errorf("initial status = %q, want planning", s.Status())
	}

	s.SetStatus(models.SessionExecuting)
	if s.Status() != models.SessionExecuting {
		t.Errorf("status = %q, want executing", s.Status())
	}

	hist := s.RecentHistory(5)
	if len(hist) != 1 {
		t.Fatalf("history length = %d, want 1", len(hist))
	}
	if hist[0] != "Status changed to: executing" {
		t.Errorf("history entry = %q", hist[0])
	}
}

func TestSharedCreatedFilesDeduped(t *testing.T) {
	s := NewShared("task")

	s.AddCreatedFile("a.py")
	s.AddCreatedFile("b.py")
	s.AddCreatedFile("a.py")

	files := s.CreatedFiles()
	if len(files) != 2 {
		t.Fatalf("created files = %v, want 2 unique entries", files)
	}
	if files[0] != "a.py" || files[1] != "b.py" {
		t.Errorf("order not preserved: %v", files)
	}
}

func TestSharedGeneratedCode(t *testing.T) {
	s := NewShared("task")

	if _, ok := s.GeneratedCode("main.py"); ok {
		t.Error("expected no code before generation")
	}

	s.AddGeneratedCode("main.py", "print('v1')")
	s.AddGeneratedCode("main.py", "print('v2')")

	code, ok := s.GeneratedCode("main.py")
	if !ok {
		t.Fatal("expected stored code")
	}
	if code != "print('v2')" {
		t.Errorf("code = %q, want latest draft", code)
	}
}

func TestSharedLogExecution(t *testing.T) {
	s := NewShared("task")
	s.SetStatus(models.SessionExecuting)

	s.LogExecution("hello\n", "")
	if s.LastError() != "" {
		t.Errorf("LastError = %q, want empty", s.LastError())
	}
	if s.Status() != models.SessionExecuting {
		t.Errorf("successful execution should not change status, got %q", s.Status())
	}

	s.LogExecution("", "exit status 1")
	if s.LastError() != "exit status 1" {
		t.Errorf("LastError = %q", s.LastError())
	}
	if s.Status() != models.SessionError {
		t.Errorf("failed execution should set error status, got %q", s.Status())
	}
}

func TestSharedRecentHistoryTail(t *testing.T) {
	s := NewShared("task")
	for i := 0; i < 10; i++ {
		s.AddHistory(fmt.Sprintf("entry %d", i))
	}

	tail := s.RecentHistory(3)
	if len(tail) != 3 {
		t.Fatalf("tail length = %d, want 3", len(tail))
	}
	if tail[2] != "entry 9" {
		t.Errorf("last entry = %q, want entry 9", tail[2])
	}

	if got := s.RecentHistory(0); got != nil {
		t.Errorf("RecentHistory(0) = %v, want nil", got)
	}
}

func TestSharedHistoryBounded(t *testing.T) {
	s := NewShared("task")
	for i := 0; i < maxHistory+50; i++ {
		s.AddHistory(fmt.Sprintf("entry %d", i))
	}

	all := s.RecentHistory(maxHistory + 100)
	if len(all) != maxHistory {
		t.Errorf("history length = %d, want bound %d", len(all), maxHistory)
	}
	if all[len(all)-1] != fmt.Sprintf("entry %d", maxHistory+49) {
		t.Errorf("newest entry lost: %q", all[len(all)-1])
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := NewShared("task")
	s.SetProjectDir("/tmp/proj", false)
	s.AddCreatedFile("a.py")
	s.SetPlan([]models.Subtask{{Agent: models.AgentShell, Description: "ls"}})

	snap := s.Snapshot()

	// Mutating the snapshot must not affect the shared state.
	snap.CreatedFiles[0] = "mutated"
	snap.Plan[0].Description = "mutated"

	if s.CreatedFiles()[0] != "a.py" {
		t.Error("snapshot mutation leaked into created files")
	}
	if s.Plan()[0].Description != "ls" {
		t.Error("snapshot mutation leaked into plan")
	}
	if snap.ProjectDir != "/tmp/proj" {
		t.Errorf("ProjectDir = %q", snap.ProjectDir)
	}
}
