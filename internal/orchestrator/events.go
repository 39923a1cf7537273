// Package orchestrator drives a task through plan, execute, and repair
// until the planner has nothing left to schedule.
package orchestrator

import (
	"time"

	"github.com/ultronlabs/ultron/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRunStarted indicates a run has started.
	EventRunStarted EventType = "run_started"
	// EventPlanCreated indicates the planner produced a new plan.
	EventPlanCreated EventType = "plan_created"
	// EventStepStarted indicates a plan step has started execution.
	EventStepStarted EventType = "step_started"
	// EventStepCompleted indicates a plan step completed successfully.
	EventStepCompleted EventType = "step_completed"
	// EventStepFailed indicates a plan step failed.
	EventStepFailed EventType = "step_failed"
	// EventRepairStarted indicates the error resolver is producing a fix plan.
	EventRepairStarted EventType = "repair_started"
	// EventEscalated indicates the run required human intervention.
	EventEscalated EventType = "escalated"
	// EventRunDone indicates the run finished, in any terminal status.
	EventRunDone EventType = "run_done"
)

// Event is a progress notification emitted during a run. The CLI renders
// these; nothing in the run loop depends on a consumer being present.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// StepIndex is the 1-based index of the related step, if applicable.
	StepIndex int
	// Agent is the agent executing the related step, if applicable.
	Agent models.AgentName
	// Message provides additional context about the event.
	Message string
	// Err contains error details for failure events.
	Err string
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// EventSink receives run events. A nil sink discards them.
type EventSink func(Event)

func (o *Orchestrator) emit(e Event) {
	e.Timestamp = time.Now()
	o.logger.Log("[%s] step=%d agent=%s %s %s", e.Type, e.StepIndex, e.Agent, e.Message, e.Err)
	if o.sink != nil {
		o.sink(e)
	}
}
