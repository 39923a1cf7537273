package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ultronlabs/ultron/internal/llm"
	"github.com/ultronlabs/ultron/internal/state"
	"github.com/ultronlabs/ultron/pkg/models"
)

// historyWindow is how many trailing history entries the resolver sees.
const historyWindow = 5

// Resolver turns a failed step into a corrective plan. When the model cannot
// produce a usable fix, the fallback is a single human_intervention step so
// the run degrades to escalation instead of looping.
type Resolver struct {
	completer llm.Completer
	profiles  *Profiles
}

// NewResolver creates an error resolver.
func NewResolver(completer llm.Completer, profiles *Profiles) *Resolver {
	return &Resolver{completer: completer, profiles: profiles}
}

// Resolve asks for a fix plan for the failed step described by the snapshot.
// The returned plan replaces the remaining steps of the current plan.
func (r *Resolver) Resolve(ctx context.Context, failedStep models.Subtask, snap state.Snapshot) []models.Subtask {
	resp, err := r.completer.Complete(ctx, llm.Request{
		System: r.profiles.Resolver,
		Prompt: r.buildPrompt(failedStep, snap),
	})
	if err != nil {
		return escalate(fmt.Sprintf("Automated error resolution failed (%v). Original error: %s", err, snap.LastError))
	}

	var fix []models.Subtask
	if err := llm.ExtractJSONArray(resp.Text, &fix); err != nil {
		return escalate(fmt.Sprintf("Error resolver returned an unreadable plan. Original error: %s", snap.LastError))
	}

	for _, st := range fix {
		if !st.Agent.Valid() || st.Agent == models.AgentPlanner || st.Empty() {
			return escalate(fmt.Sprintf("Error resolver returned an invalid step. Original error: %s", snap.LastError))
		}
	}
	if len(fix) == 0 {
		return escalate(fmt.Sprintf("Error resolver had no fix. Original error: %s", snap.LastError))
	}
	return fix
}

func (r *Resolver) buildPrompt(failedStep models.Subtask, snap state.Snapshot) string {
	var b strings.Builder

	b.WriteString("A step in the run has failed. Analyze the error and produce a corrective plan.\n\n")
	fmt.Fprintf(&b, "Original Task: %s\n", snap.Task)
	fmt.Fprintf(&b, "Failed Step: [%s] %s\n", failedStep.Agent, failedStep.Description)
	fmt.Fprintf(&b, "Error Output:\n%s\n", clip(snap.LastError, 3000))

	if snap.LastOutput != "" {
		fmt.Fprintf(&b, "\nCommand Output Before Failure:\n%s\n", clip(snap.LastOutput, 2000))
	}
	if snap.ProjectDir != "" {
		fmt.Fprintf(&b, "\nProject Directory: %s\n", snap.ProjectDir)
	}
	if len(snap.CreatedFiles) > 0 {
		fmt.Fprintf(&b, "Files Created: %s\n", strings.Join(snap.CreatedFiles, ", "))
	}

	if n := len(snap.History); n > 0 {
		b.WriteString("\nRecent History:\n")
		start := n - historyWindow
		if start < 0 {
			start = 0
		}
		for _, h := range snap.History[start:] {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}

	b.WriteString("\nReturn ONLY the JSON array of corrective subtasks.")
	return b.String()
}

func escalate(reason string) []models.Subtask {
	return []models.Subtask{{
		Agent:       models.AgentHuman,
		Description: reason,
	}}
}
