package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joshL1215/claude-helper/cli"
	"github.com/joshL1215/claude-helper/internal/config"
	"github.com/joshL1215/claude-helper/internal/editor"
	"github.com/joshL1215/claude-helper/internal/session"
	"github.com/joshL1215/claude-helper/internal/snapshot"
	"github.com/joshL1215/claude-helper/internal/source"
	"github.com/joshL1215/claude-helper/internal/tui"
	"github.com/joshL1215/claude-helper/internal/ui"
	"github.com/joshL1215/claude-helper/model"
)

func main() {
	flags, err := cli.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	root := flags.Root
	if root == "" {
		root, err = snapshot.FindRoot()
		if err != nil {
			ui.Error("Failed to determine project root: %v", err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load(root, flags.ConfigPath)
	if err != nil {
		ui.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	if cfg.Root != "" {
		root = cfg.Root
	}
	if flags.Timeout > 0 {
		cfg.TimeoutSeconds = flags.Timeout
	}
	if len(flags.Extensions) > 0 {
		cfg.Extensions = flags.Extensions
	}

	prompt, err := source.New(flags.Prompt).GetPrompt()
	if err != nil {
		ui.Error("Failed to read prompt: %v", err)
		os.Exit(1)
	}
	if prompt == "" {
		ui.Warning("Prompt is empty. Nothing to do.")
		return
	}

	// An attached Neovim instance contributes the visual selection as
	// context and gets its buffers reloaded after apply or revert.
	var ed editor.Editor
	if nv, err := editor.Connect(); err == nil {
		ed = nv
		defer nv.Close()
		if selection, err := nv.Selection(); err == nil && selection != "" {
			prompt = prompt + "\n\nSelected code:\n" + selection
		}
	}

	mode := session.ModeProposal
	if flags.Legacy {
		mode = session.ModeLegacy
	}

	// With --yes there is nothing to confirm, so skip the TUI entirely.
	if flags.Yes {
		os.Exit(runHeadless(cfg, mode, root, ed, prompt))
	}

	m := tui.New(prompt, false)
	m.SetSession(session.New(cfg, mode, root, ed, m.Notifier()))

	if _, err := tea.NewProgram(m).Run(); err != nil {
		ui.Error("Error running program: %v", err)
		os.Exit(1)
	}
}

// runHeadless starts a run and accepts whatever it produces, printing a
// plain summary. Used for scripted invocations.
func runHeadless(cfg *config.Config, mode session.Mode, root string, ed editor.Editor, prompt string) int {
	done := make(chan model.Summary, 1)
	fail := make(chan error, 1)

	var sess *session.Session
	resolve := func() {
		summary, err := sess.Accept()
		if err != nil {
			fail <- err
			return
		}
		done <- summary
	}
	sess = session.New(cfg, mode, root, ed, session.Notifier{
		OnProposal: func(*model.Proposal) { resolve() },
		OnChanges: func(records []model.ChangeRecord) {
			if len(records) == 0 {
				done <- model.Summary{Message: "The assistant made no file changes."}
				return
			}
			resolve()
		},
		OnError: func(err error) { fail <- err },
	})

	if err := sess.Start(prompt); err != nil {
		ui.Error("%v", err)
		return 1
	}

	select {
	case summary := <-done:
		ui.PrintSummary(summary)
		return 0
	case err := <-fail:
		ui.Error("%v", err)
		return 1
	}
}
