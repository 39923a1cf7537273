package agent

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ultronlabs/ultron/pkg/models"
)

var attentionStyle = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	BorderForeground(lipgloss.Color("11")).
	Padding(0, 2).
	Bold(true)

// Human pauses the run and hands control to the operator. The run resumes
// when they confirm the issue is handled, or stops if they abort.
type Human struct {
	In  io.Reader
	Out io.Writer
}

// NewHuman creates a human intervention gate over the given streams.
func NewHuman(in io.Reader, out io.Writer) *Human {
	return &Human{In: in, Out: out}
}

// Intervene displays the reason, waits for operator input, and reports
// whether the run may continue.
func (h *Human) Intervene(reason string) models.StepResult {
	block := attentionStyle.Render("HUMAN INTERVENTION REQUIRED\n\n" + reason)
	fmt.Fprintln(h.Out, "\n"+block)
	fmt.Fprint(h.Out, "\nPress Enter once resolved, or type 'abort' to stop the run: ")

	line, err := bufio.NewReader(h.In).ReadString('\n')
	if err != nil && line == "" {
		return models.StepResult{
			Status: models.StepEscalated,
			Error:  fmt.Sprintf("no operator response: %v", err),
		}
	}

	if strings.EqualFold(strings.TrimSpace(line), "abort") {
		return models.StepResult{
			Status: models.StepEscalated,
			Error:  "operator aborted the run",
		}
	}

	return models.StepResult{
		Status: models.StepSucceeded,
		Output: "Operator confirmed the issue is resolved.",
	}
}
