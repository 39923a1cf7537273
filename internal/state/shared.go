// Package state provides the mutable shared context threaded through an
// orchestration run, and its SQLite-backed persistence.
package state

import (
	"fmt"
	"sync"

	"github.com/ultronlabs/ultron/pkg/models"
)

// maxHistory bounds the in-memory history log. Older entries are dropped
// from the front; prompts only ever read the tail.
const maxHistory = 200

// Shared is the mutable context accumulated across plan steps. All
// "intelligence" lives in the model; Shared just carries what each step
// produced so later steps (and the planner) can see it.
type Shared struct {
	mu sync.RWMutex

	task              string
	plan              []models.Subtask
	projectDir        string
	isExistingProject bool
	createdFiles      []string
	generatedCode     map[string]string
	documentContent   string
	lastOutput        string
	lastError         string
	status            models.SessionStatus
	history           []string
}

// NewShared creates a shared context for the given task.
func NewShared(task string) *Shared {
	return &Shared{
		task:          task,
		status:        models.SessionPlanning,
		generatedCode: make(map[string]string),
	}
}

// Task returns the original task.
func (s *Shared) Task() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.task
}

// SetStatus updates the run status and records the change in history.
func (s *Shared) SetStatus(status models.SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.appendHistory(fmt.Sprintf("Status changed to: %s", status))
}

// Status returns the current run status.
func (s *Shared) Status() models.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetPlan replaces the current plan and records the change.
func (s *Shared) SetPlan(plan []models.Subtask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plan = plan
	s.appendHistory(fmt.Sprintf("Execution plan updated (%d steps).", len(plan)))
}

// Plan returns a copy of the current plan.
func (s *Shared) Plan() []models.Subtask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Subtask, len(s.plan))
	copy(out, s.plan)
	return out
}

// SetProjectDir records the project directory. fromPrompt marks the run as
// operating on an existing project named by the user.
func (s *Shared) SetProjectDir(path string, fromPrompt bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projectDir = path
	if fromPrompt {
		s.isExistingProject = true
		s.appendHistory(fmt.Sprintf("Project directory set from prompt: %s", path))
	} else {
		s.appendHistory(fmt.Sprintf("Project directory set to: %s", path))
	}
}

// ProjectDir returns the project directory, which may be empty early in a run.
func (s *Shared) ProjectDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectDir
}

// IsExistingProject reports whether the run targets a pre-existing project.
func (s *Shared) IsExistingProject() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isExistingProject
}

// AddCreatedFile records a file path once, preserving insertion order.
func (s *Shared) AddCreatedFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.createdFiles {
		if f == path {
			return
		}
	}
	s.createdFiles = append(s.createdFiles, path)
	s.appendHistory(fmt.Sprintf("File created: %s", path))
}

// CreatedFiles returns a copy of the recorded file paths.
func (s *Shared) CreatedFiles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.createdFiles))
	copy(out, s.createdFiles)
	return out
}

// AddGeneratedCode stores code for a filename, replacing any prior draft.
func (s *Shared) AddGeneratedCode(filename, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generatedCode[filename] = code
	s.appendHistory(fmt.Sprintf("Code generated for %s.", filename))
}

// GeneratedCode returns the stored code for a filename, if any.
func (s *Shared) GeneratedCode(filename string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	code, ok := s.generatedCode[filename]
	return code, ok
}

// GeneratedFilenames returns the filenames with stored code.
func (s *Shared) GeneratedFilenames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.generatedCode))
	for name := range s.generatedCode {
		out = append(out, name)
	}
	return out
}

// SetDocumentContent stores the content of a read document.
func (s *Shared) SetDocumentContent(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documentContent = content
	s.appendHistory(fmt.Sprintf("Document content loaded into memory (%d chars).", len(content)))
}

// DocumentContent returns the stored document content, if any.
func (s *Shared) DocumentContent() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documentContent
}

// LogExecution records the output and error of the last executed command.
// A non-empty error flips the run status to error.
func (s *Shared) LogExecution(output, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOutput = output
	s.lastError = errMsg
	if errMsg != "" {
		s.status = models.SessionError
		s.appendHistory(fmt.Sprintf("Execution resulted in an error: %s", truncate(errMsg, 200)))
		return
	}
	if output == "" {
		s.appendHistory("Execution successful. No output.")
		return
	}
	s.appendHistory(fmt.Sprintf("Execution successful. Output: %s", truncate(output, 100)))
}

// LastOutput returns the output of the last executed command.
func (s *Shared) LastOutput() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastOutput
}

// LastError returns the error of the last executed command, empty if none.
func (s *Shared) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// AddHistory appends a free-form entry to the history log.
func (s *Shared) AddHistory(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendHistory(message)
}

// RecentHistory returns up to n of the most recent history entries.
func (s *Shared) RecentHistory(n int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || len(s.history) == 0 {
		return nil
	}
	start := len(s.history) - n
	if start < 0 {
		start = 0
	}
	out := make([]string, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

// appendHistory must be called with the write lock held.
func (s *Shared) appendHistory(message string) {
	s.history = append(s.history, message)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
}

// Snapshot is an immutable view of the shared context for prompt building.
type Snapshot struct {
	Task              string
	Plan              []models.Subtask
	ProjectDir        string
	IsExistingProject bool
	CreatedFiles      []string
	GeneratedFiles    []string
	DocumentContent   string
	LastOutput        string
	LastError         string
	Status            models.SessionStatus
	History           []string
}

// Snapshot returns a point-in-time copy of the full context.
func (s *Shared) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Task:              s.task,
		ProjectDir:        s.projectDir,
		IsExistingProject: s.isExistingProject,
		DocumentContent:   s.documentContent,
		LastOutput:        s.lastOutput,
		LastError:         s.lastError,
		Status:            s.status,
	}
	snap.Plan = make([]models.Subtask, len(s.plan))
	copy(snap.Plan, s.plan)
	snap.CreatedFiles = make([]string, len(s.createdFiles))
	copy(snap.CreatedFiles, s.createdFiles)
	for name := range s.generatedCode {
		snap.GeneratedFiles = append(snap.GeneratedFiles, name)
	}
	snap.History = make([]string, len(s.history))
	copy(snap.History, s.history)
	return snap
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
