package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ultronlabs/ultron/internal/llm"
	"github.com/ultronlabs/ultron/internal/state"
	"github.com/ultronlabs/ultron/pkg/models"
)

var targetFileRe = regexp.MustCompile(`['"]([\w./\-]+)['"]`)

// TargetFilename pulls the quoted filename out of a coder instruction.
func TargetFilename(description string) (string, bool) {
	match := targetFileRe.FindStringSubmatch(description)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// Coder generates code for a single file and refines it until the reviewer
// score clears the quality threshold or the refine budget runs out.
type Coder struct {
	completer llm.Completer
	profiles  *Profiles

	// Threshold is the minimum reviewer score to accept a draft.
	Threshold int
	// MaxRefineRounds bounds the review/refactor loop.
	MaxRefineRounds int
}

// NewCoder creates a coder with the given quality settings.
func NewCoder(completer llm.Completer, profiles *Profiles, threshold, maxRefineRounds int) *Coder {
	return &Coder{
		completer:       completer,
		profiles:        profiles,
		Threshold:       threshold,
		MaxRefineRounds: maxRefineRounds,
	}
}

// Generate produces code for the subtask's target file and stores the
// accepted draft in the shared state for a later SAVE CODE step.
func (c *Coder) Generate(ctx context.Context, description string, shared *state.Shared) models.StepResult {
	filename, ok := TargetFilename(description)
	if !ok {
		return failure("coder instruction names no target file: %q", description)
	}

	code, err := c.draft(ctx, description, filename, shared)
	if err != nil {
		return failure("draft %s: %v", filename, err)
	}

	review, code, err := c.refine(ctx, description, filename, code)
	if err != nil {
		return failure("refine %s: %v", filename, err)
	}

	shared.AddGeneratedCode(filename, code)

	output := fmt.Sprintf("Generated code for %q (%d bytes, quality %d/10).", filename, len(code), review.Score)
	if !review.Passing(c.Threshold) {
		output += " Accepted below threshold after exhausting refine rounds."
		shared.AddHistory(fmt.Sprintf("Code for %s accepted at quality %d, below threshold %d.", filename, review.Score, c.Threshold))
	}
	return models.StepResult{Status: models.StepSucceeded, Output: output}
}

func (c *Coder) draft(ctx context.Context, description, filename string, shared *state.Shared) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Overall goal: %s\n\n", shared.Task())
	fmt.Fprintf(&b, "Your task: %s\n", description)
	fmt.Fprintf(&b, "Target file: %s\n", filename)

	if existing, ok := shared.GeneratedCode(filename); ok && existing != "" {
		fmt.Fprintf(&b, "\nCurrent content of %s (modify this, do not start over):\n%s\n", filename, existing)
	}
	if doc := shared.DocumentContent(); doc != "" {
		fmt.Fprintf(&b, "\nReference document (excerpt):\n%s\n", clip(doc, 4000))
	}
	if others := shared.GeneratedFilenames(); len(others) > 0 {
		fmt.Fprintf(&b, "\nOther files in this project: %s\n", strings.Join(others, ", "))
	}
	if req := structuralRequirements(filename); req != "" {
		b.WriteString("\n" + req + "\n")
	}
	b.WriteString("\nOutput the complete file between <<START_CODE>> and <<END_CODE>>.")

	resp, err := c.completer.Complete(ctx, llm.Request{
		System: c.profiles.Coder,
		Prompt: b.String(),
	})
	if err != nil {
		return "", err
	}

	code, _ := llm.ExtractCode(resp.Text)
	if code == "" {
		return "", fmt.Errorf("model returned no code")
	}
	return code, nil
}

// refine runs the review/refactor loop and returns the last review alongside
// the accepted code.
func (c *Coder) refine(ctx context.Context, description, filename, code string) (models.QualityReview, string, error) {
	review, err := c.review(ctx, description, code)
	if err != nil {
		return models.QualityReview{}, "", err
	}

	for round := 0; round < c.MaxRefineRounds && !review.Passing(c.Threshold); round++ {
		fixed, err := c.refactor(ctx, description, filename, code, review)
		if err != nil {
			return review, code, err
		}
		code = fixed

		review, err = c.review(ctx, description, code)
		if err != nil {
			return models.QualityReview{}, "", err
		}
	}

	return review, code, nil
}

func (c *Coder) review(ctx context.Context, description, code string) (models.QualityReview, error) {
	prompt := fmt.Sprintf("Task:\n%s\n\nCode draft:\n%s\n\nRespond with the JSON review object.", description, code)

	resp, err := c.completer.Complete(ctx, llm.Request{
		System: c.profiles.Reviewer,
		Prompt: prompt,
	})
	if err != nil {
		return models.QualityReview{}, err
	}

	var review models.QualityReview
	if err := llm.ExtractJSONObject(resp.Text, &review); err != nil {
		return models.QualityReview{}, fmt.Errorf("reviewer: %w", err)
	}
	if !review.Valid() {
		return models.QualityReview{}, fmt.Errorf("reviewer returned score %d outside 1-10", review.Score)
	}
	return review, nil
}

func (c *Coder) refactor(ctx context.Context, description, filename, code string, review models.QualityReview) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Task:\n%s\n\nFile: %s\n\nCurrent draft:\n%s\n\n", description, filename, code)
	b.WriteString("Reviewer issues to fix:\n")
	for _, issue := range review.Issues {
		fmt.Fprintf(&b, "- %s\n", issue)
	}
	b.WriteString("\nOutput the complete corrected file between <<START_CODE>> and <<END_CODE>>.")

	resp, err := c.completer.Complete(ctx, llm.Request{
		System: c.profiles.Refactor,
		Prompt: b.String(),
	})
	if err != nil {
		return "", err
	}

	fixed, _ := llm.ExtractCode(resp.Text)
	if fixed == "" {
		return "", fmt.Errorf("refactor returned no code")
	}
	return fixed, nil
}

// structuralRequirements adds file-type specific constraints the reviewer
// will hold drafts to.
func structuralRequirements(filename string) string {
	switch {
	case strings.HasSuffix(filename, ".html"):
		return "Structural requirements: a complete HTML5 document with <!DOCTYPE html>, <head> with <title> and charset, and a <body>. Link stylesheets and scripts with relative paths."
	case strings.HasSuffix(filename, ".css"):
		return "Structural requirements: plain CSS only, no preprocessor syntax."
	default:
		return ""
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func failure(format string, args ...any) models.StepResult {
	return models.StepResult{
		Status: models.StepFailed,
		Error:  fmt.Sprintf(format, args...),
	}
}
