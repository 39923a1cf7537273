// Package plan implements the planner agent: it turns the shared state into
// an ordered list of subtasks expressed in the command language.
package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/ultronlabs/ultron/internal/llm"
	"github.com/ultronlabs/ultron/internal/state"
	"github.com/ultronlabs/ultron/pkg/models"
)

// systemInstructions is the planner persona. The command language is strict
// so deterministic agents can execute steps without a model call.
const systemInstructions = `You are the master Planner Agent. Your job is to create a JSON array of subtasks.
You MUST use the following strict "Command Language" for the 'description' field.

Command Language Reference:

1. To create the project directory for this task:
   {"agent": "file_agent", "description": "CREATE PROJECT STRUCTURE"}

2. To read an existing file's content into memory:
   {"agent": "file_agent", "description": "READ FILE 'filename.ext'"}

3. To create a new, empty file:
   {"agent": "file_agent", "description": "CREATE EMPTY FILE 'filename.ext'"}

4. To generate new code or modify existing code for a file:
   {"agent": "coder_agent", "description": "Generate code for 'filename.ext' that does..."}
   (This agent will automatically receive the file's current content if it has been read.)

5. To save previously generated code to a file:
   {"agent": "file_agent", "description": "SAVE CODE TO 'filename.ext'"}

6. To run a shell command:
   {"agent": "shell_agent", "description": "executable_command_string"}

7. To research a topic on the web before coding:
   {"agent": "web_search", "description": "what to search for"}

8. To load a referenced document (PDF) into memory:
   {"agent": "document_reader", "description": "READ FILE 'document.pdf'"}

CRITICAL WORKFLOW LOGIC:
- If the task is to modify an existing project, your FIRST steps must use the READ FILE command for every file that needs to change.
- Only after reading the files can you call the coder_agent to modify the code.
- If you are creating a new project, do not use READ FILE. Start with CREATE PROJECT STRUCTURE, then create the files.
- After ALL code is generated, create tasks to SAVE CODE for each modified file.
- Finally, run any necessary shell commands for testing or execution.
- If the state shows the task is already complete, return an empty JSON array: []

Your output MUST be ONLY the JSON array. No other text.`

// historyWindow is how many trailing history entries the planner sees.
const historyWindow = 5

// Planner produces and revises execution plans.
type Planner struct {
	completer llm.Completer
}

// New creates a planner over the given completer.
func New(completer llm.Completer) *Planner {
	return &Planner{completer: completer}
}

// BuildPrompt renders the current project state into the planning prompt.
func BuildPrompt(snap state.Snapshot) string {
	var b strings.Builder

	b.WriteString("Given the current state of the project, create the next set of subtasks.\n\n")
	b.WriteString("Current Project State:\n")
	fmt.Fprintf(&b, "- Original Task: %s\n", snap.Task)
	fmt.Fprintf(&b, "- Current Status: %s\n", snap.Status)

	if snap.ProjectDir != "" {
		fmt.Fprintf(&b, "- Project Directory: %s\n", snap.ProjectDir)
	} else {
		b.WriteString("- Project Directory: Not created yet.\n")
	}
	if snap.IsExistingProject {
		b.WriteString("- This is an EXISTING project named by the user; read before modifying.\n")
	}

	if len(snap.CreatedFiles) > 0 {
		fmt.Fprintf(&b, "- Files Created: %s\n", strings.Join(snap.CreatedFiles, ", "))
	} else {
		b.WriteString("- Files Created: None\n")
	}

	if snap.LastError != "" {
		fmt.Fprintf(&b, "- Last Execution Error: %s\n", snap.LastError)
	} else {
		b.WriteString("- Last Execution Error: None\n")
	}

	if snap.DocumentContent != "" {
		fmt.Fprintf(&b, "- Loaded Document (excerpt): %s\n", excerpt(snap.DocumentContent, 1000))
	}

	if n := len(snap.History); n > 0 {
		b.WriteString("- Execution History:\n")
		start := n - historyWindow
		if start < 0 {
			start = 0
		}
		for _, h := range snap.History[start:] {
			fmt.Fprintf(&b, "  - %s\n", h)
		}
	}

	b.WriteString("\nYour Task:\n")
	b.WriteString("Analyze the state and provide the next subtasks as a JSON array. Remember the workflow logic:\n")
	b.WriteString("1. Create project structure with file_agent.\n")
	b.WriteString("2. Generate code with coder_agent.\n")
	b.WriteString("3. Save code to files with file_agent.\n")
	b.WriteString("4. Install dependencies and run with shell_agent.\n\n")
	b.WriteString("Return ONLY the JSON array.")

	return b.String()
}

// Plan asks the model for the next plan and validates it. An empty plan is a
// valid answer meaning the task is complete.
func (p *Planner) Plan(ctx context.Context, snap state.Snapshot) ([]models.Subtask, error) {
	resp, err := p.completer.Complete(ctx, llm.Request{
		System: systemInstructions,
		Prompt: BuildPrompt(snap),
	})
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}

	var subtasks []models.Subtask
	if err := llm.ExtractJSONArray(resp.Text, &subtasks); err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}

	if err := Validate(subtasks); err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}

	return subtasks, nil
}

// Validate checks that every subtask targets a known, executable agent and
// carries an instruction.
func Validate(subtasks []models.Subtask) error {
	for i, st := range subtasks {
		if !st.Agent.Valid() {
			return fmt.Errorf("step %d: unknown agent %q", i+1, st.Agent)
		}
		if st.Agent == models.AgentPlanner {
			return fmt.Errorf("step %d: plans may not recurse into the planner", i+1)
		}
		if st.Empty() {
			return fmt.Errorf("step %d: empty description", i+1)
		}
	}
	return nil
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
