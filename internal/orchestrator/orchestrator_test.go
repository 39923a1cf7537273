package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ultronlabs/ultron/internal/config"
	"github.com/ultronlabs/ultron/internal/llm"
	"github.com/ultronlabs/ultron/internal/state"
	"github.com/ultronlabs/ultron/pkg/models"
)

// routingCompleter answers per persona: responses are consumed in order from
// the queue matching the request's system prompt.
type routingCompleter struct {
	mu      sync.Mutex
	planner []string
	coder   []string
	review  []string
	resolve []string
}

func (r *routingCompleter) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var queue *[]string
	switch {
	case strings.Contains(req.System, "Planner Agent"):
		queue = &r.planner
	case strings.Contains(req.System, "Coder Agent"):
		queue = &r.coder
	case strings.Contains(req.System, "Code Reviewer"):
		queue = &r.review
	case strings.Contains(req.System, "Error Resolution Agent"):
		queue = &r.resolve
	default:
		return llm.Response{}, fmt.Errorf("unexpected persona: %.40s", req.System)
	}

	if len(*queue) == 0 {
		return llm.Response{}, fmt.Errorf("persona queue exhausted for: %.40s", req.System)
	}
	resp := (*queue)[0]
	*queue = (*queue)[1:]
	return llm.Response{Text: resp}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Defaults.ProjectsDir = t.TempDir()
	cfg.Shell.Timeout = 10 * time.Second
	return cfg
}

func testStore(t *testing.T) *state.Store {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "ultron.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return state.NewStore(db)
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, completer llm.Completer, store *state.Store) (*Orchestrator, *[]Event) {
	t.Helper()
	var events []Event
	o := New(Options{
		Config:    cfg,
		Completer: completer,
		Store:     store,
		In:        strings.NewReader(""),
		Out:       &bytes.Buffer{},
		Sink:      func(e Event) { events = append(events, e) },
	})
	return o, &events
}

func TestRunHappyPath(t *testing.T) {
	completer := &routingCompleter{
		planner: []string{
			`[
				{"agent": "file_agent", "description": "CREATE PROJECT STRUCTURE"},
				{"agent": "coder_agent", "description": "Generate code for 'hello.py' that prints hello"},
				{"agent": "file_agent", "description": "SAVE CODE TO 'hello.py'"},
				{"agent": "shell_agent", "description": "echo executed"}
			]`,
			`[]`,
		},
		coder:  []string{"<<START_CODE>>print('hello')<<END_CODE>>"},
		review: []string{`{"score": 9, "issues": []}`},
	}

	cfg := testConfig(t)
	store := testStore(t)
	o, events := newTestOrchestrator(t, cfg, completer, store)

	result, err := o.Run(context.Background(), "make a hello script", RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != models.SessionDone {
		t.Errorf("status = %q, want done", result.Status)
	}
	if result.StepsExecuted != 4 {
		t.Errorf("steps executed = %d, want 4", result.StepsExecuted)
	}

	wantFile := filepath.Join(cfg.Defaults.ProjectsDir, "make-a-hello", "hello.py")
	content, readErr := os.ReadFile(wantFile)
	if readErr != nil {
		t.Fatalf("saved file: %v", readErr)
	}
	if string(content) != "print('hello')" {
		t.Errorf("file content = %q", content)
	}

	sess, err := store.GetSession(result.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != models.SessionDone {
		t.Errorf("persisted status = %q, want done", sess.Status)
	}
	if sess.FinishedAt == nil {
		t.Error("session not marked finished")
	}

	steps, err := store.CountSteps(result.SessionID)
	if err != nil {
		t.Fatalf("CountSteps: %v", err)
	}
	if steps != 4 {
		t.Errorf("persisted steps = %d, want 4", steps)
	}

	var done bool
	for _, e := range *events {
		if e.Type == EventRunDone {
			done = true
		}
	}
	if !done {
		t.Error("no run_done event emitted")
	}
}

func TestRunRepairsFailedStep(t *testing.T) {
	completer := &routingCompleter{
		planner: []string{
			`[{"agent": "shell_agent", "description": "bash -c 'exit 7'"}]`,
			`[]`,
		},
		resolve: []string{
			`[{"agent": "shell_agent", "description": "echo repaired"}]`,
		},
	}

	cfg := testConfig(t)
	o, events := newTestOrchestrator(t, cfg, completer, nil)

	result, err := o.Run(context.Background(), "flaky task", RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != models.SessionDone {
		t.Errorf("status = %q, want done after repair", result.Status)
	}
	if result.StepsExecuted != 2 {
		t.Errorf("steps executed = %d, want 2 (failed + fix)", result.StepsExecuted)
	}

	var repaired bool
	for _, e := range *events {
		if e.Type == EventRepairStarted {
			repaired = true
		}
	}
	if !repaired {
		t.Error("no repair_started event emitted")
	}
}

func TestRunRepairBudgetEscalatesToHuman(t *testing.T) {
	completer := &routingCompleter{
		planner: []string{
			`[{"agent": "shell_agent", "description": "bash -c 'exit 7'"}]`,
		},
		resolve: []string{
			`[{"agent": "shell_agent", "description": "bash -c 'exit 8'"}]`,
		},
	}

	cfg := testConfig(t)
	cfg.Limits.MaxRepairRounds = 1
	o, events := newTestOrchestrator(t, cfg, completer, nil)

	// The operator stream is closed, so the intervention cannot be resolved.
	result, err := o.Run(context.Background(), "doomed task", RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != models.SessionNeedsHuman {
		t.Errorf("status = %q, want needs_human after exhausted repairs", result.Status)
	}

	var escalated bool
	for _, e := range *events {
		if e.Type == EventEscalated {
			escalated = true
		}
	}
	if !escalated {
		t.Error("no escalated event emitted")
	}
}

func TestRunRepairBudgetResolvedByOperator(t *testing.T) {
	completer := &routingCompleter{
		planner: []string{
			`[{"agent": "shell_agent", "description": "bash -c 'exit 7'"}]`,
			`[]`,
		},
		resolve: []string{
			`[{"agent": "shell_agent", "description": "bash -c 'exit 8'"}]`,
		},
	}

	cfg := testConfig(t)
	cfg.Limits.MaxRepairRounds = 1
	var events []Event
	o := New(Options{
		Config:    cfg,
		Completer: completer,
		In:        strings.NewReader("\n"),
		Out:       &bytes.Buffer{},
		Sink:      func(e Event) { events = append(events, e) },
	})

	result, err := o.Run(context.Background(), "doomed task", RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != models.SessionDone {
		t.Errorf("status = %q, want done after operator resolved the issue", result.Status)
	}
}

func TestRunEscalatesToHuman(t *testing.T) {
	completer := &routingCompleter{
		planner: []string{
			`[{"agent": "human_intervention", "description": "rotate the expired credentials"}]`,
		},
	}

	cfg := testConfig(t)
	var events []Event
	o := New(Options{
		Config:    cfg,
		Completer: completer,
		In:        strings.NewReader("abort\n"),
		Out:       &bytes.Buffer{},
		Sink:      func(e Event) { events = append(events, e) },
	})

	result, err := o.Run(context.Background(), "locked task", RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != models.SessionNeedsHuman {
		t.Errorf("status = %q, want needs_human", result.Status)
	}

	var escalated bool
	for _, e := range events {
		if e.Type == EventEscalated {
			escalated = true
		}
	}
	if !escalated {
		t.Error("no escalated event emitted")
	}
}

func TestRunStepBudgetExhausted(t *testing.T) {
	completer := &routingCompleter{
		planner: []string{
			`[
				{"agent": "shell_agent", "description": "echo one"},
				{"agent": "shell_agent", "description": "echo two"}
			]`,
		},
	}

	cfg := testConfig(t)
	cfg.Limits.MaxSteps = 1
	o, _ := newTestOrchestrator(t, cfg, completer, nil)

	result, err := o.Run(context.Background(), "big task", RunOptions{})
	if err == nil || !strings.Contains(err.Error(), "step budget") {
		t.Fatalf("err = %v, want step budget error", err)
	}
	if result.StepsExecuted != 1 {
		t.Errorf("steps executed = %d, want 1", result.StepsExecuted)
	}
}

func TestRunPlanBudgetExhausted(t *testing.T) {
	completer := &routingCompleter{
		planner: []string{
			`[{"agent": "shell_agent", "description": "echo again"}]`,
			`[{"agent": "shell_agent", "description": "echo again"}]`,
		},
	}

	cfg := testConfig(t)
	cfg.Limits.MaxPlanRounds = 2
	o, _ := newTestOrchestrator(t, cfg, completer, nil)

	_, err := o.Run(context.Background(), "endless task", RunOptions{})
	if err == nil || !strings.Contains(err.Error(), "plan budget") {
		t.Fatalf("err = %v, want plan budget error", err)
	}
}

func TestRunDryRun(t *testing.T) {
	completer := &routingCompleter{
		planner: []string{
			`[{"agent": "shell_agent", "description": "echo hi"}]`,
		},
	}

	cfg := testConfig(t)
	store := testStore(t)
	o, _ := newTestOrchestrator(t, cfg, completer, store)

	result, err := o.Run(context.Background(), "task", RunOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Plan) != 1 {
		t.Errorf("plan has %d steps, want 1", len(result.Plan))
	}
	if result.StepsExecuted != 0 {
		t.Error("dry run must not execute steps")
	}

	sessions, err := store.ListSessions(10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("dry run persisted %d sessions", len(sessions))
	}
}

func TestRunExistingProjectDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app.py"), []byte("x = 1\n"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	completer := &routingCompleter{
		planner: []string{
			`[{"agent": "file_agent", "description": "READ FILE 'app.py'"}]`,
			`[]`,
		},
	}

	cfg := testConfig(t)
	o, _ := newTestOrchestrator(t, cfg, completer, nil)

	result, err := o.Run(context.Background(), "tweak the app", RunOptions{ProjectDir: dir})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != models.SessionDone {
		t.Errorf("status = %q, want done", result.Status)
	}
	if result.ProjectDir != dir {
		t.Errorf("project dir = %q, want %q", result.ProjectDir, dir)
	}
}
