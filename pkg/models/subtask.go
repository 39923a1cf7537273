// Package models defines the shared data types used across Ultron.
package models

import "strings"

// AgentName identifies a named agent role in the orchestration plan.
type AgentName string

const (
	// AgentPlanner creates and revises the execution plan.
	AgentPlanner AgentName = "planner"
	// AgentCoder generates or modifies code for a single file.
	AgentCoder AgentName = "coder_agent"
	// AgentFile performs deterministic file operations via the command language.
	AgentFile AgentName = "file_agent"
	// AgentShell executes shell commands in the project directory.
	AgentShell AgentName = "shell_agent"
	// AgentWebSearch performs a web search and summarizes the results.
	AgentWebSearch AgentName = "web_search"
	// AgentErrorResolver analyzes a failure and produces a fix plan.
	AgentErrorResolver AgentName = "error_resolver"
	// AgentDocReader extracts text from a document into shared state.
	AgentDocReader AgentName = "document_reader"
	// AgentEnvCheck verifies required command-line tools are installed.
	AgentEnvCheck AgentName = "env_check"
	// AgentHuman escalates a problem the system cannot resolve on its own.
	AgentHuman AgentName = "human_intervention"
)

// Valid returns true if the agent name is a known role.
func (a AgentName) Valid() bool {
	switch a {
	case AgentPlanner, AgentCoder, AgentFile, AgentShell, AgentWebSearch,
		AgentErrorResolver, AgentDocReader, AgentEnvCheck, AgentHuman:
		return true
	default:
		return false
	}
}

// Subtask is a single step in an execution plan: a target agent and a
// description in the planner's command language.
type Subtask struct {
	// Agent is the agent that should execute this step.
	Agent AgentName `json:"agent"`
	// Description is the instruction for the agent. For deterministic agents
	// this is a command-language string; for LLM agents it is free text.
	Description string `json:"description"`
}

// Empty returns true if the subtask carries no usable instruction.
func (s Subtask) Empty() bool {
	return strings.TrimSpace(s.Description) == ""
}

// StepStatus represents the outcome of a single executed plan step.
type StepStatus string

const (
	// StepPending indicates the step has not run yet.
	StepPending StepStatus = "pending"
	// StepSucceeded indicates the step completed successfully.
	StepSucceeded StepStatus = "succeeded"
	// StepFailed indicates the step failed.
	StepFailed StepStatus = "failed"
	// StepEscalated indicates the step required human intervention.
	StepEscalated StepStatus = "escalated"
)

// StepResult is the outcome an agent returns for one plan step.
type StepResult struct {
	// Status is the outcome of the step.
	Status StepStatus `json:"status"`
	// Output is the agent's human-readable output, if any.
	Output string `json:"output,omitempty"`
	// Error is the failure message when Status is failed or escalated.
	Error string `json:"error,omitempty"`
	// Artifacts lists file paths created or modified by the step.
	Artifacts []string `json:"artifacts,omitempty"`
}

// OK returns true if the step completed successfully.
func (r StepResult) OK() bool {
	return r.Status == StepSucceeded
}
