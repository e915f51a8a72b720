package models

import "time"

// DependencyStatus summarizes one dependency of a stage for embedding
// in its signal's dependency table (spec section 4.7).
type DependencyStatus struct {
	StageID string
	Name    string
	Status  StageStatus
	Outputs []StageOutput
}

// Handoff is a structured V2 handoff document produced when a
// session's context is exhausted (spec section 4.7, glossary
// "Handoff"). It is embedded verbatim into the next session's signal.
type Handoff struct {
	StageID         string    `yaml:"stage_id" json:"stage_id"`
	SessionID       string    `yaml:"session_id" json:"session_id"`
	Sequence        int       `yaml:"sequence" json:"sequence"`
	CreatedAt       time.Time `yaml:"created_at" json:"created_at"`
	CompletedTasks  []string  `yaml:"completed_tasks,omitempty" json:"completed_tasks,omitempty"`
	KeyDecisions    []string  `yaml:"key_decisions,omitempty" json:"key_decisions,omitempty"`
	DiscoveredFacts []string  `yaml:"discovered_facts,omitempty" json:"discovered_facts,omitempty"`
	OpenQuestions   []string  `yaml:"open_questions,omitempty" json:"open_questions,omitempty"`
	NextActions     []string  `yaml:"next_actions,omitempty" json:"next_actions,omitempty"`
	GitState        string    `yaml:"git_state,omitempty" json:"git_state,omitempty"`
	FilesRead       []string  `yaml:"files_read,omitempty" json:"files_read,omitempty"`
	FilesModified   []string  `yaml:"files_modified,omitempty" json:"files_modified,omitempty"`
}

// EmbeddedContext collects the optional content blocks a signal may
// inline: plan overview, previous handoff, and structure map (spec
// section 4.7).
type EmbeddedContext struct {
	PlanOverview      string
	HandoffContent    string
	StructureContent  string
}
