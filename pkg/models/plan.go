package models

// StageDefinition is the immutable, user-authored description of one
// stage within a plan (spec section 3.5). Only ID and Name are
// mandatory.
type StageDefinition struct {
	ID            string    `yaml:"id" json:"id"`
	Name          string    `yaml:"name" json:"name"`
	Description   string    `yaml:"description,omitempty" json:"description,omitempty"`
	Dependencies  []string  `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	ParallelGroup string    `yaml:"parallel_group,omitempty" json:"parallel_group,omitempty"`
	Acceptance    []string  `yaml:"acceptance,omitempty" json:"acceptance,omitempty"`
	Setup         []string  `yaml:"setup,omitempty" json:"setup,omitempty"`
	Files         []string  `yaml:"files,omitempty" json:"files,omitempty"`
	StageType     StageType `yaml:"stage_type,omitempty" json:"stage_type,omitempty"`
	MaxRetries    *int      `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	MaxFixAttempts *int     `yaml:"max_fix_attempts,omitempty" json:"max_fix_attempts,omitempty"`
	AutoMerge     *bool     `yaml:"auto_merge,omitempty" json:"auto_merge,omitempty"`
}

// PlanDefaults holds plan-level defaults applied to every stage that
// doesn't override them (spec section 3.5).
type PlanDefaults struct {
	AutoMerge bool   `yaml:"auto_merge" json:"auto_merge"`
	BaseBranch string `yaml:"base_branch,omitempty" json:"base_branch,omitempty"`
}

// Plan is the immutable input to the engine: a list of stage
// definitions plus plan-level defaults.
type Plan struct {
	ID       string            `yaml:"id" json:"id"`
	Defaults PlanDefaults      `yaml:"defaults" json:"defaults"`
	Overview string            `yaml:"overview,omitempty" json:"overview,omitempty"`
	Stages   []StageDefinition `yaml:"stages" json:"stages"`
}
