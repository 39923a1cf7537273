// Package fileops implements the deterministic file agent. It executes the
// planner's command language directly, without calling the model.
package fileops

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ultronlabs/ultron/internal/state"
	"github.com/ultronlabs/ultron/pkg/models"
)

// Op classifies a file-agent command.
type Op int

const (
	// OpUnknown is a command outside the file agent's command language.
	OpUnknown Op = iota
	// OpCreateProject creates the project directory for the run.
	OpCreateProject
	// OpCreateEmpty creates a new empty file.
	OpCreateEmpty
	// OpSaveCode writes previously generated code to a file.
	OpSaveCode
	// OpReadFile loads an existing file's content into shared state.
	OpReadFile
)

var filenameRe = regexp.MustCompile(`['"]([\w./\-]+)['"]`)

// ParseCommand classifies a command and extracts the target filename.
// OpCreateProject carries no filename.
func ParseCommand(command string) (Op, string) {
	upper := strings.ToUpper(strings.TrimSpace(command))

	var op Op
	switch {
	case upper == "CREATE PROJECT STRUCTURE":
		return OpCreateProject, ""
	case strings.HasPrefix(upper, "CREATE EMPTY FILE"):
		op = OpCreateEmpty
	case strings.HasPrefix(upper, "SAVE CODE TO"):
		op = OpSaveCode
	case strings.HasPrefix(upper, "READ FILE"):
		op = OpReadFile
	default:
		return OpUnknown, ""
	}

	match := filenameRe.FindStringSubmatch(command)
	if match == nil {
		return op, ""
	}
	return op, match[1]
}

// ProjectDirName derives a directory name from the first three alphanumeric
// words of the task.
func ProjectDirName(task string) string {
	var words []string
	for _, word := range strings.Fields(strings.ToLower(task)) {
		if isAlnum(word) {
			words = append(words, word)
			if len(words) == 3 {
				break
			}
		}
	}
	if len(words) == 0 {
		return "new-project"
	}
	return strings.Join(words, "-")
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9') {
			return false
		}
	}
	return s != ""
}

// Handler executes file-agent commands against the shared state.
type Handler struct {
	// Root is the directory project directories are created under.
	Root string
}

// NewHandler creates a file handler rooted at the given projects directory.
func NewHandler(root string) *Handler {
	return &Handler{Root: root}
}

// Run routes a command-language string to the matching operation.
func (h *Handler) Run(command string, shared *state.Shared) models.StepResult {
	op, filename := ParseCommand(command)

	switch op {
	case OpCreateProject:
		return h.createProjectDir(shared)
	case OpCreateEmpty, OpSaveCode:
		if filename == "" {
			return failure("malformed write command, could not find filename: %q", command)
		}
		return h.writeFile(op, filename, shared)
	case OpReadFile:
		if filename == "" {
			return failure("malformed read command, could not find filename: %q", command)
		}
		return h.readFile(filename, shared)
	default:
		return failure("file agent does not support the command: %q", command)
	}
}

func (h *Handler) createProjectDir(shared *state.Shared) models.StepResult {
	name := ProjectDirName(shared.Task())
	dir := filepath.Join(h.Root, name)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return failure("create project directory: %v", err)
	}

	shared.SetProjectDir(dir, false)
	return models.StepResult{
		Status: models.StepSucceeded,
		Output: fmt.Sprintf("Project directory %q created.", name),
	}
}

func (h *Handler) writeFile(op Op, filename string, shared *state.Shared) models.StepResult {
	code, _ := shared.GeneratedCode(filename)
	if code == "" && op == OpSaveCode {
		shared.AddHistory(fmt.Sprintf("Warning: no code found for %q during save.", filename))
	}
	if op == OpCreateEmpty {
		code = ""
	}

	dir, err := h.ensureProjectDir(shared)
	if err != nil {
		return failure("create project directory: %v", err)
	}
	path := filepath.Join(dir, filename)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return failure("create parent directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(code), 0644); err != nil {
		return failure("write %s: %v", filename, err)
	}

	shared.AddCreatedFile(path)
	return models.StepResult{
		Status:    models.StepSucceeded,
		Output:    fmt.Sprintf("File %q saved (%d bytes).", filename, len(code)),
		Artifacts: []string{path},
	}
}

func (h *Handler) readFile(filename string, shared *state.Shared) models.StepResult {
	dir := shared.ProjectDir()
	path := filename
	if !filepath.IsAbs(path) && dir != "" {
		path = filepath.Join(dir, filename)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return failure("read %s: %v", filename, err)
	}

	// Seed the coder with the current content so it can modify, not recreate.
	shared.AddGeneratedCode(filename, string(content))
	shared.AddHistory(fmt.Sprintf("Read %d bytes from %s.", len(content), filename))
	return models.StepResult{
		Status: models.StepSucceeded,
		Output: fmt.Sprintf("Read content of %q into memory.", filename),
	}
}

// ensureProjectDir returns the project directory, fabricating the default
// one when the planner skipped CREATE PROJECT STRUCTURE.
func (h *Handler) ensureProjectDir(shared *state.Shared) (string, error) {
	if dir := shared.ProjectDir(); dir != "" {
		return dir, nil
	}
	dir := filepath.Join(h.Root, "default-project")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	shared.SetProjectDir(dir, false)
	return dir, nil
}

func failure(format string, args ...any) models.StepResult {
	return models.StepResult{
		Status: models.StepFailed,
		Error:  fmt.Sprintf(format, args...),
	}
}
