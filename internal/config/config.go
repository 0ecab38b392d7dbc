// Package config provides configuration loading and management for stagehand.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// DefaultTimeout bounds a single agent invocation.
const DefaultTimeout = 10 * time.Minute

// Config is the root configuration, loaded from .stagehand/config.json.
type Config struct {
	Agent     AgentConfig     `json:"agent"               mapstructure:"agent"`
	Profiles  ProfilesConfig  `json:"profiles"            mapstructure:"profiles"`
	Commands  CommandsConfig  `json:"commands"            mapstructure:"commands"`
	Retention RetentionPolicy `json:"retention"           mapstructure:"retention"`
	PlansDir  string          `json:"plans_dir,omitempty" mapstructure:"plans_dir"`
	// BaseBranch is the PR target. Empty means the backend's default.
	BaseBranch string `json:"base_branch,omitempty" mapstructure:"base_branch"`
}

// AgentConfig describes how to invoke the external coding agent.
type AgentConfig struct {
	Type    string        `json:"type"              mapstructure:"type"`
	Cmd     []string      `json:"cmd,omitempty"     mapstructure:"cmd"`
	Model   string        `json:"model,omitempty"   mapstructure:"model"`
	Timeout time.Duration `json:"timeout,omitempty" mapstructure:"timeout"`
	// SettingsPath is the shared agent settings file that gets swapped for
	// a phase-specific permission profile around each invocation.
	SettingsPath string `json:"settings_path,omitempty" mapstructure:"settings_path"`
}

// ProfilesConfig names the permission-profile files swapped in per phase.
type ProfilesConfig struct {
	Plan      string `json:"plan,omitempty"      mapstructure:"plan"`
	Implement string `json:"implement,omitempty" mapstructure:"implement"`
}

// CommandsConfig holds the best-effort post-implement commands.
type CommandsConfig struct {
	Lint     string `json:"lint,omitempty"     mapstructure:"lint"`
	Generate string `json:"generate,omitempty" mapstructure:"generate"`
}

// RetentionPolicy defines how many old runs to keep.
type RetentionPolicy struct {
	KeepLast int `json:"keep_last,omitempty" mapstructure:"keep_last"`
	KeepDays int `json:"keep_days,omitempty" mapstructure:"keep_days"`
}

// Load reads, validates, and defaults the configuration file at path.
func Load(path, repoRoot string) (Config, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(repoRoot, path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := Validate(raw); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	if cfg.Agent.Type == "exec" && len(cfg.Agent.Cmd) == 0 {
		return Config{}, fmt.Errorf("agent.cmd is required when agent.type is \"exec\"")
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Agent.Type == "" {
		cfg.Agent.Type = "claude"
	}
	if cfg.Agent.Timeout <= 0 {
		cfg.Agent.Timeout = DefaultTimeout
	}
	if cfg.Agent.SettingsPath == "" {
		cfg.Agent.SettingsPath = filepath.Join(".claude", "settings.json")
	}
	if cfg.Profiles.Plan == "" {
		cfg.Profiles.Plan = filepath.Join(".stagehand", "profiles", "plan.json")
	}
	if cfg.Profiles.Implement == "" {
		cfg.Profiles.Implement = filepath.Join(".stagehand", "profiles", "implement.json")
	}
	if cfg.PlansDir == "" {
		cfg.PlansDir = ".plans"
	}
}
