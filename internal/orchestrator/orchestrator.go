package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ultronlabs/ultron/internal/agent"
	"github.com/ultronlabs/ultron/internal/config"
	"github.com/ultronlabs/ultron/internal/envcheck"
	"github.com/ultronlabs/ultron/internal/fileops"
	"github.com/ultronlabs/ultron/internal/llm"
	"github.com/ultronlabs/ultron/internal/plan"
	"github.com/ultronlabs/ultron/internal/shell"
	"github.com/ultronlabs/ultron/internal/state"
	"github.com/ultronlabs/ultron/pkg/models"
)

// Options configures an Orchestrator.
type Options struct {
	// Config supplies loop bounds and quality settings. Required.
	Config *config.Config
	// Completer is the model client shared by all LLM-backed agents. Required.
	Completer llm.Completer
	// Store persists sessions and steps. Nil disables persistence.
	Store *state.Store
	// Tracker reports token usage for the run summary. May be nil.
	Tracker *llm.TokenTracker
	// Profiles overrides the agent personas. Nil uses the defaults.
	Profiles *agent.Profiles
	// In and Out are the operator streams for human intervention.
	// Nil defaults to stdin/stdout.
	In  io.Reader
	Out io.Writer
	// Sink receives run events. May be nil.
	Sink EventSink
	// Logger is the debug logger. Nil means no debug log.
	Logger *DebugLogger
}

// Orchestrator owns the agents and drives the plan/execute/repair loop.
type Orchestrator struct {
	cfg      *config.Config
	planner  *plan.Planner
	coder    *agent.Coder
	resolver *agent.Resolver
	searcher *agent.Searcher
	reader   *agent.Reader
	human    *agent.Human
	files    *fileops.Handler
	shell    *shell.Runner
	store    *state.Store
	tracker  *llm.TokenTracker
	logger   *DebugLogger
	sink     EventSink
}

// New wires the agents together from the given options.
func New(opts Options) *Orchestrator {
	profiles := opts.Profiles
	if profiles == nil {
		profiles = agent.DefaultProfiles()
	}
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	logger := opts.Logger
	if logger == nil {
		logger = NopLogger()
	}

	cfg := opts.Config
	return &Orchestrator{
		cfg:      cfg,
		planner:  plan.New(opts.Completer),
		coder:    agent.NewCoder(opts.Completer, profiles, cfg.Quality.Threshold, cfg.Quality.MaxRefineRounds),
		resolver: agent.NewResolver(opts.Completer, profiles),
		searcher: agent.NewSearcher(opts.Completer, profiles),
		reader:   agent.NewReader(),
		human:    agent.NewHuman(in, out),
		files:    fileops.NewHandler(cfg.Defaults.ProjectsDir),
		shell:    shell.NewRunner(cfg.Shell.Timeout),
		store:    opts.Store,
		tracker:  opts.Tracker,
		logger:   logger,
		sink:     opts.Sink,
	}
}

// RunOptions adjusts a single run.
type RunOptions struct {
	// ProjectDir points the run at an existing project instead of creating one.
	ProjectDir string
	// DryRun plans once and returns without executing anything.
	DryRun bool
}

// Result summarizes a finished run.
type Result struct {
	SessionID     string
	Status        models.SessionStatus
	ProjectDir    string
	CreatedFiles  []string
	StepsExecuted int
	// Plan holds the first plan when DryRun was set.
	Plan      []models.Subtask
	TokensIn  int64
	TokensOut int64
	Cost      float64
}

// Run executes a task end to end: plan, dispatch each step, repair failures,
// and replan until the planner returns an empty plan or a budget runs out.
func (o *Orchestrator) Run(ctx context.Context, task string, opts RunOptions) (*Result, error) {
	shared := state.NewShared(task)
	if opts.ProjectDir != "" {
		abs, err := filepath.Abs(opts.ProjectDir)
		if err != nil {
			return nil, fmt.Errorf("resolve project dir: %w", err)
		}
		shared.SetProjectDir(abs, true)
	}

	if opts.DryRun {
		subtasks, err := o.planner.Plan(ctx, shared.Snapshot())
		if err != nil {
			return nil, err
		}
		return &Result{Status: models.SessionPlanning, Plan: subtasks, ProjectDir: shared.ProjectDir()}, nil
	}

	sessionID := o.createSession(task)
	o.emit(Event{Type: EventRunStarted, Message: task})

	var watcher *fileops.Watcher
	defer func() {
		if watcher != nil {
			watcher.Close()
		}
	}()

	stepsExecuted := 0
	repairRounds := 0
	status := models.SessionFailed
	var runErr error

planLoop:
	for planRound := 0; planRound < o.cfg.Limits.MaxPlanRounds; planRound++ {
		shared.SetStatus(models.SessionPlanning)
		o.persistSession(sessionID, models.SessionPlanning, shared)

		subtasks, err := o.planner.Plan(ctx, shared.Snapshot())
		if err != nil {
			runErr = err
			break
		}
		if len(subtasks) == 0 {
			status = models.SessionDone
			break
		}

		shared.SetPlan(subtasks)
		o.emit(Event{Type: EventPlanCreated, Message: fmt.Sprintf("%d steps", len(subtasks))})
		shared.SetStatus(models.SessionExecuting)
		o.persistSession(sessionID, models.SessionExecuting, shared)

		queue := subtasks
		for i := 0; i < len(queue); i++ {
			if stepsExecuted >= o.cfg.Limits.MaxSteps {
				runErr = fmt.Errorf("step budget of %d exhausted", o.cfg.Limits.MaxSteps)
				break planLoop
			}

			st := queue[i]
			stepsExecuted++
			o.emit(Event{Type: EventStepStarted, StepIndex: stepsExecuted, Agent: st.Agent, Message: st.Description})
			stepID := o.recordStep(sessionID, stepsExecuted, st)

			// A planner-scheduled resolver step repairs from current state
			// the same way a failed step does.
			if st.Agent == models.AgentErrorResolver {
				o.emit(Event{Type: EventRepairStarted, StepIndex: stepsExecuted, Agent: st.Agent})
				fix := o.resolver.Resolve(ctx, st, shared.Snapshot())
				o.finishStep(stepID, models.StepResult{Status: models.StepSucceeded, Output: fmt.Sprintf("%d fix steps", len(fix))})
				queue = spliceFix(queue, i, fix)
				continue
			}

			result := o.dispatch(ctx, st, shared)
			o.finishStep(stepID, result)
			o.persistFiles(sessionID, shared)

			if watcher == nil {
				if dir := shared.ProjectDir(); dir != "" {
					if w, err := fileops.Watch(dir, shared); err == nil {
						watcher = w
					}
				}
			}

			switch result.Status {
			case models.StepEscalated:
				o.emit(Event{Type: EventEscalated, StepIndex: stepsExecuted, Agent: st.Agent, Err: result.Error})
				status = models.SessionNeedsHuman
				break planLoop

			case models.StepFailed:
				o.emit(Event{Type: EventStepFailed, StepIndex: stepsExecuted, Agent: st.Agent, Err: result.Error})
				shared.LogExecution(result.Output, result.Error)

				if repairRounds >= o.cfg.Limits.MaxRepairRounds {
					// Out of automatic repairs; hand the problem to the operator.
					queue = spliceFix(queue, i, []models.Subtask{{
						Agent: models.AgentHuman,
						Description: fmt.Sprintf("Automatic repair budget of %d exhausted. Last error: %s",
							o.cfg.Limits.MaxRepairRounds, result.Error),
					}})
					continue
				}
				repairRounds++
				o.emit(Event{Type: EventRepairStarted, StepIndex: stepsExecuted, Agent: st.Agent})
				fix := o.resolver.Resolve(ctx, st, shared.Snapshot())
				queue = spliceFix(queue, i, fix)

			default:
				o.emit(Event{Type: EventStepCompleted, StepIndex: stepsExecuted, Agent: st.Agent, Message: firstLine(result.Output)})
			}
		}
	}

	if status == models.SessionFailed && runErr == nil {
		runErr = fmt.Errorf("plan budget of %d rounds exhausted", o.cfg.Limits.MaxPlanRounds)
	}

	shared.SetStatus(status)
	o.persistSession(sessionID, status, shared)
	o.finishSession(sessionID, status)
	o.emit(Event{Type: EventRunDone, Message: string(status)})

	result := &Result{
		SessionID:     sessionID,
		Status:        status,
		ProjectDir:    shared.ProjectDir(),
		CreatedFiles:  shared.CreatedFiles(),
		StepsExecuted: stepsExecuted,
	}
	if o.tracker != nil {
		result.TokensIn, result.TokensOut = o.tracker.Total()
		result.Cost = o.tracker.Cost()
	}
	return result, runErr
}

// dispatch routes one step to its agent and normalizes the outcome.
func (o *Orchestrator) dispatch(ctx context.Context, st models.Subtask, shared *state.Shared) models.StepResult {
	switch st.Agent {
	case models.AgentFile:
		return o.files.Run(st.Description, shared)

	case models.AgentCoder:
		return o.coder.Generate(ctx, st.Description, shared)

	case models.AgentShell:
		return o.runShell(ctx, st.Description, shared)

	case models.AgentWebSearch:
		result := o.searcher.Search(ctx, st.Description)
		if result.OK() {
			shared.AddHistory(fmt.Sprintf("Web search: %s", firstLine(result.Output)))
		}
		return result

	case models.AgentDocReader:
		return o.reader.Read(st.Description, shared)

	case models.AgentEnvCheck:
		return o.checkEnv(st.Description)

	case models.AgentHuman:
		return o.human.Intervene(st.Description)

	default:
		return models.StepResult{
			Status: models.StepFailed,
			Error:  fmt.Sprintf("no executor for agent %q", st.Agent),
		}
	}
}

// runShell checks the required tool, executes the command, and routes
// interactive prompts to the operator with a single retry after resolution.
func (o *Orchestrator) runShell(ctx context.Context, command string, shared *state.Shared) models.StepResult {
	if tool := envcheck.RequiredFromCommand(command); tool != "" {
		if len(envcheck.Missing([]string{tool})) > 0 {
			return models.StepResult{
				Status: models.StepFailed,
				Error:  fmt.Sprintf("required tool %q is not installed", tool),
			}
		}
	}

	workDir := shared.ProjectDir()
	result, err := o.shell.Run(ctx, command, workDir)

	if err != nil && errors.Is(err, shell.ErrHumanInterventionRequired) {
		intervene := o.human.Intervene(fmt.Sprintf("The command %q is waiting for input:\n%s", command, result.Output))
		if !intervene.OK() {
			return intervene
		}
		result, err = o.shell.Run(ctx, command, workDir)
	}

	if err != nil {
		errMsg := err.Error()
		if result.Output != "" {
			errMsg = result.Output
		}
		// The run loop records the failure into shared state.
		return models.StepResult{Status: models.StepFailed, Output: result.Output, Error: errMsg}
	}

	shared.LogExecution(result.Output, "")
	return models.StepResult{Status: models.StepSucceeded, Output: result.Output}
}

// checkEnv verifies the tools named in the description are on PATH.
func (o *Orchestrator) checkEnv(description string) models.StepResult {
	tools := splitTools(description)
	if len(tools) == 0 {
		return models.StepResult{Status: models.StepFailed, Error: "env check names no tools"}
	}

	report := envcheck.Report(envcheck.Check(tools))
	if missing := envcheck.Missing(tools); len(missing) > 0 {
		return models.StepResult{
			Status: models.StepFailed,
			Output: report,
			Error:  fmt.Sprintf("missing tools: %s", strings.Join(missing, ", ")),
		}
	}
	return models.StepResult{Status: models.StepSucceeded, Output: report}
}

// spliceFix replaces everything after step i with the fix plan. The dropped
// steps are rebuilt by the next planner round from the repaired state.
func spliceFix(queue []models.Subtask, i int, fix []models.Subtask) []models.Subtask {
	out := make([]models.Subtask, 0, i+1+len(fix))
	out = append(out, queue[:i+1]...)
	return append(out, fix...)
}

func splitTools(description string) []string {
	fields := strings.FieldsFunc(description, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	var tools []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			tools = append(tools, f)
		}
	}
	return tools
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		return s[:idx]
	}
	return s
}

// Persistence helpers are best-effort; a storage error must not kill a run.

func (o *Orchestrator) createSession(task string) string {
	if o.store == nil {
		return ""
	}
	id, err := o.store.CreateSession(task)
	if err != nil {
		o.logger.Log("create session: %v", err)
		return ""
	}
	return id
}

func (o *Orchestrator) persistSession(id string, status models.SessionStatus, shared *state.Shared) {
	if o.store == nil || id == "" {
		return
	}
	var tokensIn, tokensOut int64
	var cost float64
	if o.tracker != nil {
		tokensIn, tokensOut = o.tracker.Total()
		cost = o.tracker.Cost()
	}
	if err := o.store.UpdateSession(id, status, shared.ProjectDir(), tokensIn, tokensOut, cost); err != nil {
		o.logger.Log("update session: %v", err)
	}
}

func (o *Orchestrator) finishSession(id string, status models.SessionStatus) {
	if o.store == nil || id == "" {
		return
	}
	if err := o.store.FinishSession(id, status); err != nil {
		o.logger.Log("finish session: %v", err)
	}
}

func (o *Orchestrator) recordStep(sessionID string, idx int, st models.Subtask) string {
	if o.store == nil || sessionID == "" {
		return ""
	}
	id, err := o.store.RecordStep(sessionID, idx, st)
	if err != nil {
		o.logger.Log("record step: %v", err)
		return ""
	}
	return id
}

func (o *Orchestrator) finishStep(stepID string, result models.StepResult) {
	if o.store == nil || stepID == "" {
		return
	}
	if err := o.store.FinishStep(stepID, result); err != nil {
		o.logger.Log("finish step: %v", err)
	}
}

func (o *Orchestrator) persistFiles(sessionID string, shared *state.Shared) {
	if o.store == nil || sessionID == "" {
		return
	}
	for _, path := range shared.CreatedFiles() {
		if err := o.store.RecordFile(sessionID, path); err != nil {
			o.logger.Log("record file: %v", err)
		}
	}
}
