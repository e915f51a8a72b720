// Package config loads the daemon's tunables, layering project
// defaults, a project-local override file, and environment variables
// the same way the teacher layers XDG config over project config
// (spec section 6 "Workspace layout", SPEC_FULL section 10).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/cosmix/skein/internal/orchestrator"
)

// Config holds every tunable the scheduler and terminal backend need.
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Backend   BackendConfig   `mapstructure:"backend"`
}

// SchedulerConfig mirrors orchestrator.Config's fields (spec section
// 4.5 "Owns: max_parallel, poll_interval, ... auto_merge, base_branch,
// watch_mode").
type SchedulerConfig struct {
	MaxParallel  int           `mapstructure:"max_parallel"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	AutoMerge    bool          `mapstructure:"auto_merge"`
	BaseBranch   string        `mapstructure:"base_branch"`
	WatchMode    bool          `mapstructure:"watch_mode"`
}

// BackendConfig selects and tunes the terminal backend (spec section
// 4.8).
type BackendConfig struct {
	// Kind is "native" or "tmux".
	Kind         string        `mapstructure:"kind"`
	WorkerCmd    []string      `mapstructure:"worker_cmd"`
	TmuxPrefix   string        `mapstructure:"tmux_prefix"`
	TmuxDebounce time.Duration `mapstructure:"tmux_debounce"`
}

// ToOrchestratorConfig projects the persisted scheduler settings onto
// an orchestrator.Config, given the repo root the CLI resolved.
func (c *Config) ToOrchestratorConfig(repoRoot string) orchestrator.Config {
	return orchestrator.Config{
		RepoRoot:     repoRoot,
		MaxParallel:  c.Scheduler.MaxParallel,
		PollInterval: c.Scheduler.PollInterval,
		AutoMerge:    c.Scheduler.AutoMerge,
		BaseBranch:   c.Scheduler.BaseBranch,
		WatchMode:    c.Scheduler.WatchMode,
	}
}

// Default returns the built-in defaults (spec 4.5's own defaults,
// matching orchestrator.DefaultConfig).
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			MaxParallel:  3,
			PollInterval: 2 * time.Second,
			AutoMerge:    true,
		},
		Backend: BackendConfig{
			Kind:         "native",
			TmuxPrefix:   "skein",
			TmuxDebounce: 300 * time.Millisecond,
		},
	}
}

// Load reads configuration from workDir/config.toml, layering
// environment variable overrides on top, same precedence order as the
// teacher's own Load (env > project file > built-in defaults). A
// missing file is not an error; Default() is used instead.
func Load(workDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	configPath := filepath.Join(workDir, "config.toml")
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat config %s: %w", configPath, err)
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("SKEIN")
	v.BindEnv("scheduler.max_parallel", "SKEIN_MAX_PARALLEL")
	v.BindEnv("scheduler.poll_interval", "SKEIN_POLL_INTERVAL")
	v.BindEnv("scheduler.auto_merge", "SKEIN_AUTO_MERGE")
	v.BindEnv("scheduler.base_branch", "SKEIN_BASE_BRANCH")
	v.BindEnv("backend.kind", "SKEIN_BACKEND")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to workDir/config.toml, the authoritative on-disk
// record (spec section 6).
func Save(workDir string, cfg *Config) error {
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workspace dir: %w", err)
	}
	v := viper.New()
	v.SetConfigFile(filepath.Join(workDir, "config.toml"))
	v.Set("scheduler.max_parallel", cfg.Scheduler.MaxParallel)
	v.Set("scheduler.poll_interval", cfg.Scheduler.PollInterval.String())
	v.Set("scheduler.auto_merge", cfg.Scheduler.AutoMerge)
	v.Set("scheduler.base_branch", cfg.Scheduler.BaseBranch)
	v.Set("scheduler.watch_mode", cfg.Scheduler.WatchMode)
	v.Set("backend.kind", cfg.Backend.Kind)
	v.Set("backend.worker_cmd", cfg.Backend.WorkerCmd)
	v.Set("backend.tmux_prefix", cfg.Backend.TmuxPrefix)
	v.Set("backend.tmux_debounce", cfg.Backend.TmuxDebounce.String())
	return v.WriteConfig()
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("scheduler.max_parallel", d.Scheduler.MaxParallel)
	v.SetDefault("scheduler.poll_interval", d.Scheduler.PollInterval.String())
	v.SetDefault("scheduler.auto_merge", d.Scheduler.AutoMerge)
	v.SetDefault("scheduler.base_branch", d.Scheduler.BaseBranch)
	v.SetDefault("scheduler.watch_mode", false)
	v.SetDefault("backend.kind", d.Backend.Kind)
	v.SetDefault("backend.tmux_prefix", d.Backend.TmuxPrefix)
	v.SetDefault("backend.tmux_debounce", d.Backend.TmuxDebounce.String())
}
