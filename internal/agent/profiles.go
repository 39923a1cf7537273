// Package agent implements the model-backed worker agents: the coder with
// its quality loop, the error resolver, web search, document reader, and
// the human intervention gate.
package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profiles holds the system prompts for each model-backed persona. Built-in
// defaults can be overridden per project with a prompts.yaml file.
type Profiles struct {
	Coder    string `yaml:"coder"`
	Reviewer string `yaml:"reviewer"`
	Refactor string `yaml:"refactor"`
	Resolver string `yaml:"resolver"`
	Refiner  string `yaml:"refiner"`
	Searcher string `yaml:"searcher"`
}

const defaultCoderProfile = `You are an expert Coder Agent. You write complete, working, production-quality code.

Rules:
- Output the full content of the single requested file, nothing else.
- Wrap the code between <<START_CODE>> and <<END_CODE>> markers.
- No explanations, no markdown fences, no commentary outside the markers.
- If existing file content is provided, MODIFY it; do not discard working code.
- The code must be complete and runnable. Never leave placeholder stubs.`

const defaultReviewerProfile = `You are a strict senior Code Reviewer. You are given a task description and a code draft.

Score the draft from 1 (unusable) to 10 (ship it) for correctness, completeness against the task, and code quality.

Respond with ONLY a JSON object:
{"score": <1-10>, "issues": ["concrete issue", ...]}

List only concrete, actionable issues. An empty issues list is fine for high scores.`

const defaultRefactorProfile = `You are an expert Refactoring Agent. You are given a task, a code draft, and a reviewer's list of issues.

Fix every listed issue while preserving working behavior. Output the full corrected file between <<START_CODE>> and <<END_CODE>> markers, nothing else.`

const defaultResolverProfile = `You are an expert Error Resolution Agent. A step in an automated run has failed.

You are given the failed command, its error output, and the project state. Produce a corrective plan as a JSON array of subtasks using the same command language as the planner, for example:
[{"agent": "shell_agent", "description": "pip install flask"}]

Available agents: coder_agent, file_agent, shell_agent, web_search, document_reader, env_check, human_intervention.

If the error cannot be fixed automatically (credentials, permissions, anything needing a person), return exactly:
[{"agent": "human_intervention", "description": "<what the person must do>"}]

Your output MUST be ONLY the JSON array.`

const defaultRefinerProfile = `You rewrite web search queries to be precise and current. Today's date is %s.

Replace vague recency words like "latest", "newest" or "current" with the actual year. Keep the query short. Respond with ONLY the rewritten query text.`

const defaultSearcherProfile = `You summarize web search results for a software engineer mid-task.

Given the search query and raw result snippets, write a concise factual summary of what was found. Include version numbers, command names, and URLs when present. No preamble.`

// DefaultProfiles returns the built-in persona prompts.
func DefaultProfiles() *Profiles {
	return &Profiles{
		Coder:    defaultCoderProfile,
		Reviewer: defaultReviewerProfile,
		Refactor: defaultRefactorProfile,
		Resolver: defaultResolverProfile,
		Refiner:  defaultRefinerProfile,
		Searcher: defaultSearcherProfile,
	}
}

// LoadProfiles reads persona overrides from a YAML file and merges them over
// the defaults. Empty fields in the file keep the built-in prompt.
func LoadProfiles(path string) (*Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	var overrides Profiles
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}

	p := DefaultProfiles()
	p.merge(&overrides)
	return p, nil
}

func (p *Profiles) merge(o *Profiles) {
	if o.Coder != "" {
		p.Coder = o.Coder
	}
	if o.Reviewer != "" {
		p.Reviewer = o.Reviewer
	}
	if o.Refactor != "" {
		p.Refactor = o.Refactor
	}
	if o.Resolver != "" {
		p.Resolver = o.Resolver
	}
	if o.Refiner != "" {
		p.Refiner = o.Refiner
	}
	if o.Searcher != "" {
		p.Searcher = o.Searcher
	}
}
