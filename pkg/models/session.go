package models

import "time"

// SessionStatus represents the current state of an orchestration session.
type SessionStatus string

const (
	// SessionPlanning indicates the planner is producing the next plan.
	SessionPlanning SessionStatus = "planning"
	// SessionExecuting indicates plan steps are being executed.
	SessionExecuting SessionStatus = "executing"
	// SessionError indicates the last step failed and repair is in progress.
	SessionError SessionStatus = "error"
	// SessionNeedsHuman indicates the run stopped awaiting human intervention.
	SessionNeedsHuman SessionStatus = "needs_human"
	// SessionDone indicates the run completed.
	SessionDone SessionStatus = "done"
	// SessionFailed indicates the run ended without completing the task.
	SessionFailed SessionStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionPlanning, SessionExecuting, SessionError,
		SessionNeedsHuman, SessionDone, SessionFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status ends a run.
func (s SessionStatus) Terminal() bool {
	return s == SessionDone || s == SessionFailed || s == SessionNeedsHuman
}

// Session records one orchestration run.
type Session struct {
	// ID is the unique identifier for this session.
	ID string `json:"id"`
	// Task is the original free-text task.
	Task string `json:"task"`
	// ProjectDir is the directory generated artifacts were written to.
	ProjectDir string `json:"project_dir,omitempty"`
	// Status is the current state of the session.
	Status SessionStatus `json:"status"`
	// TokensIn is the total input tokens consumed.
	TokensIn int64 `json:"tokens_in"`
	// TokensOut is the total output tokens consumed.
	TokensOut int64 `json:"tokens_out"`
	// Cost is the estimated cost in USD.
	Cost float64 `json:"cost"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the run ended, if it has.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
