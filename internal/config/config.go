// Package config loads tool configuration from file, environment, and
// defaults. Precedence is flags > environment > config file > defaults;
// flags are merged by the caller.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the on-disk configuration for the assistant integration.
type Config struct {
	// Assistant is the executable name resolved via PATH.
	Assistant string `mapstructure:"assistant"`
	// ProposalArgs are appended after the prompt in proposal mode to
	// request structured output.
	ProposalArgs []string `mapstructure:"proposal_args"`
	// TimeoutSeconds bounds a single assistant run.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// Root overrides project-root detection when set.
	Root string `mapstructure:"root"`
	// Extensions, when non-empty, restricts proposed changes to files with
	// these extensions. Entries targeting other files fail validation.
	Extensions []string `mapstructure:"extensions"`
}

// DefaultConfig values.
var DefaultConfig = Config{
	Assistant:      "claude",
	ProposalArgs:   []string{"--output-format", "json", "--tools", ""},
	TimeoutSeconds: 300,
}

// Timeout returns the run budget as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load reads .claude-helper.yaml from the project root (and the home
// directory as a fallback), applies CLAUDE_HELPER_* environment overrides,
// and fills in defaults. A missing config file is not an error.
func Load(projectRoot, explicitPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("assistant", DefaultConfig.Assistant)
	v.SetDefault("proposal_args", DefaultConfig.ProposalArgs)
	v.SetDefault("timeout_seconds", DefaultConfig.TimeoutSeconds)
	v.SetDefault("root", "")

	v.SetEnvPrefix("CLAUDE_HELPER")
	v.AutomaticEnv()

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("could not read config file %s: %w", explicitPath, err)
		}
	} else {
		v.SetConfigName(".claude-helper")
		v.SetConfigType("yaml")
		v.AddConfigPath(projectRoot)
		v.AddConfigPath("$HOME")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("could not read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = DefaultConfig.TimeoutSeconds
	}
	return &cfg, nil
}
