package cli

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Config holds all the command-line flag values.
type Config struct {
	Prompt     string
	Legacy     bool
	Timeout    int
	Yes        bool
	ConfigPath string
	Root       string
	Extensions []string
}

// ParseFlags defines and parses command-line flags using pflag.
func ParseFlags() (*Config, error) {
	cfg := &Config{}

	pflag.StringVarP(&cfg.Prompt, "prompt", "p", "", "Prompt text. When omitted, piped stdin and then the clipboard are tried.")
	pflag.BoolVarP(&cfg.Legacy, "legacy", "l", false, "Legacy mode: the assistant edits files directly; detect and offer to revert.")
	pflag.IntVarP(&cfg.Timeout, "timeout", "t", 0, "Run timeout in seconds (0 uses the configured default).")
	pflag.BoolVarP(&cfg.Yes, "yes", "y", false, "Accept the proposal without confirmation.")
	pflag.StringVarP(&cfg.ConfigPath, "config", "c", "", "Path to a config file (default: .claude-helper.yaml at the project root).")
	pflag.StringVar(&cfg.Root, "root", "", "Project root override (default: enclosing git repository).")
	pflag.StringSliceVarP(&cfg.Extensions, "extension", "e", nil, "Only allow proposed changes to files with these extensions (e.g. -e go,md).")

	pflag.Usage = func() {
		fmt.Println("Usage: claude-helper [flags]")
		fmt.Println("\nSend a prompt to the assistant and apply its proposed file changes after confirmation.")
		fmt.Println("\nExample: claude-helper -p \"add error handling to main.go\"")
		fmt.Println("\nFlags:")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("error: --timeout must be positive")
	}

	return cfg, nil
}
