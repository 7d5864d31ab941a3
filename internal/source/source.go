// Package source resolves the prompt text for a run: an explicit flag
// value, piped stdin, or the system clipboard, in that order.
package source

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
)

// Provider retrieves the user's prompt.
type Provider struct {
	explicit string
}

// New creates a provider. explicit, when non-empty, wins over every other
// source.
func New(explicit string) *Provider {
	return &Provider{explicit: explicit}
}

// GetPrompt returns the prompt text, or empty when no source has content.
func (p *Provider) GetPrompt() (string, error) {
	if strings.TrimSpace(p.explicit) != "" {
		return p.explicit, nil
	}

	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return strings.TrimSpace(string(content)), nil
	}

	content, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("failed to read from clipboard: %w", err)
	}
	return strings.TrimSpace(content), nil
}
