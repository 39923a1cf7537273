package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ultronlabs/ultron/internal/llm"
	"github.com/ultronlabs/ultron/internal/state"
	"github.com/ultronlabs/ultron/pkg/models"
)

type stubCompleter struct {
	response string
	err      error
	lastReq  llm.Request
}

func (s *stubCompleter) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	s.lastReq = req
	if s.err != nil {
		return llm.Response{}, s.err
	}
	return llm.Response{Text: s.response}, nil
}

func failedState() state.Snapshot {
	shared := state.NewShared("run the app")
	shared.LogExecution("", "ModuleNotFoundError: No module named 'flask'")
	return shared.Snapshot()
}

func TestResolveReturnsFixPlan(t *testing.T) {
	stub := &stubCompleter{response: `[
		{"agent": "shell_agent", "description": "pip install flask"},
		{"agent": "shell_agent", "description": "python app.py"}
	]`}

	r := NewResolver(stub, DefaultProfiles())
	failed := models.Subtask{Agent: models.AgentShell, Description: "python app.py"}

	fix := r.Resolve(context.Background(), failed, failedState())
	if len(fix) != 2 {
		t.Fatalf("fix plan has %d steps, want 2", len(fix))
	}
	if fix[0].Description != "pip install flask" {
		t.Errorf("fix[0] = %+v", fix[0])
	}

	if !strings.Contains(stub.lastReq.Prompt, "ModuleNotFoundError") {
		t.Error("resolver prompt missing the error output")
	}
	if !strings.Contains(stub.lastReq.Prompt, "python app.py") {
		t.Error("resolver prompt missing the failed step")
	}
	if !strings.Contains(stub.lastReq.Prompt, "Recent History:") {
		t.Error("resolver prompt missing the recent history")
	}
}

func TestResolvePromptLimitsHistory(t *testing.T) {
	shared := state.NewShared("run the app")
	for i := 0; i < 20; i++ {
		shared.AddHistory("older entry")
	}
	shared.AddHistory("the newest entry")
	shared.LogExecution("", "boom")

	stub := &stubCompleter{response: `[{"agent": "shell_agent", "description": "ls"}]`}
	r := NewResolver(stub, DefaultProfiles())
	r.Resolve(context.Background(), models.Subtask{Agent: models.AgentShell, Description: "ls"}, shared.Snapshot())

	if !strings.Contains(stub.lastReq.Prompt, "the newest entry") {
		t.Error("prompt missing the newest history entry")
	}
	if got := strings.Count(stub.lastReq.Prompt, "older entry"); got > historyWindow {
		t.Errorf("prompt contains %d history lines, want at most %d", got, historyWindow)
	}
}

func TestResolveEscalatesOnCompleterError(t *testing.T) {
	r := NewResolver(&stubCompleter{err: errors.New("api down")}, DefaultProfiles())
	failed := models.Subtask{Agent: models.AgentShell, Description: "make build"}

	fix := r.Resolve(context.Background(), failed, failedState())
	if len(fix) != 1 || fix[0].Agent != models.AgentHuman {
		t.Fatalf("fix = %+v, want single human_intervention step", fix)
	}
}

func TestResolveEscalatesOnGarbage(t *testing.T) {
	r := NewResolver(&stubCompleter{response: "I cannot help with that."}, DefaultProfiles())
	failed := models.Subtask{Agent: models.AgentShell, Description: "make build"}

	fix := r.Resolve(context.Background(), failed, failedState())
	if len(fix) != 1 || fix[0].Agent != models.AgentHuman {
		t.Fatalf("fix = %+v, want single human_intervention step", fix)
	}
}

func TestResolveEscalatesOnInvalidAgent(t *testing.T) {
	r := NewResolver(&stubCompleter{response: `[{"agent": "wizard", "description": "magic"}]`}, DefaultProfiles())
	failed := models.Subtask{Agent: models.AgentShell, Description: "make build"}

	fix := r.Resolve(context.Background(), failed, failedState())
	if len(fix) != 1 || fix[0].Agent != models.AgentHuman {
		t.Fatalf("fix = %+v, want single human_intervention step", fix)
	}
}
