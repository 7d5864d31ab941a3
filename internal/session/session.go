// Package session wires the runner, schema, patch applier, and snapshot
// tracker into the two assistant workflows: proposal mode, where edits are
// applied only after explicit confirmation, and legacy mode, where the
// assistant edits files directly and the session detects and can revert
// the result.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joshL1215/claude-helper/internal/config"
	"github.com/joshL1215/claude-helper/internal/diffview"
	"github.com/joshL1215/claude-helper/internal/editor"
	"github.com/joshL1215/claude-helper/internal/patch"
	"github.com/joshL1215/claude-helper/internal/runner"
	"github.com/joshL1215/claude-helper/internal/schema"
	"github.com/joshL1215/claude-helper/internal/snapshot"
	"github.com/joshL1215/claude-helper/model"
)

// Mode selects the workflow once per invocation.
type Mode int

const (
	// ModeProposal expects a structured change-set on stdout and applies
	// it only after the user accepts.
	ModeProposal Mode = iota
	// ModeLegacy assumes the assistant mutates files directly; the
	// session snapshots beforehand and offers to revert afterwards.
	ModeLegacy
)

// ErrUnresolved is returned when a run is requested while a previous
// session's changes are still awaiting accept or reject.
var ErrUnresolved = errors.New("previous changes are unresolved; accept or reject them first")

// ErrNothingPending is returned by Accept/Reject with no pending changes.
var ErrNothingPending = errors.New("no pending changes")

// Notifier carries the session's asynchronous results back to the caller.
// Exactly one of the three fires per run.
type Notifier struct {
	// OnProposal delivers the parsed change-set in proposal mode.
	OnProposal func(*model.Proposal)
	// OnChanges delivers detected disk changes in legacy mode; the list
	// may be empty when the assistant changed nothing.
	OnChanges func([]model.ChangeRecord)
	// OnError delivers parse, process, and timeout failures.
	OnError func(error)
}

// promptPreamble instructs the assistant to answer with the proposal wire
// format in proposal mode.
const promptPreamble = `You are editing files in this project. Respond ONLY with a JSON object of the form
{"summary": "...", "changes": [{"filepath": "<absolute path>", "start_line": N, "end_line": M, "new_content": "...", "explanation": "..."}]}
Line numbers are 1-indexed and inclusive against the file's current content. Use an empty new_content to delete the range.

Request:
`

// Session owns all mutable run state: the runner, the snapshot baseline,
// and the pending proposal or change records. No ambient globals.
type Session struct {
	mode   Mode
	cfg    *config.Config
	root   string
	ed     editor.Editor
	notify Notifier
	runner *runner.Runner

	mu       sync.Mutex
	tracker  *snapshot.Tracker
	proposal *model.Proposal
	records  []model.ChangeRecord
}

// New creates a session for one workflow mode. ed may be nil when no
// editor is attached.
func New(cfg *config.Config, mode Mode, root string, ed editor.Editor, notify Notifier) *Session {
	var extraArgs []string
	if mode == ModeProposal {
		extraArgs = cfg.ProposalArgs
	}
	return &Session{
		mode:    mode,
		cfg:     cfg,
		root:    root,
		ed:      ed,
		notify:  notify,
		runner:  runner.New(cfg.Assistant, extraArgs, root),
		tracker: snapshot.New(root),
	}
}

// Mode returns the workflow selected at construction.
func (s *Session) Mode() Mode { return s.mode }

// Start spawns the assistant with the given prompt. It rejects
// synchronously when a run is active or a previous session's changes are
// unresolved; all later outcomes arrive through the Notifier.
func (s *Session) Start(prompt string) error {
	if s.runner.Status() == runner.StatusRunning {
		return runner.ErrBusy
	}

	s.mu.Lock()
	if s.proposal != nil || len(s.records) > 0 || s.tracker.Active() {
		s.mu.Unlock()
		return ErrUnresolved
	}
	s.mu.Unlock()

	fullPrompt := prompt
	if s.mode == ModeProposal {
		fullPrompt = promptPreamble + prompt
	} else {
		s.tracker.Capture(snapshot.TrackedFiles(s.root))
	}

	opts := runner.Options{
		Timeout: s.cfg.Timeout(),
		OnError: s.fail,
	}
	if s.mode == ModeProposal {
		opts.OnComplete = s.completeProposal
	} else {
		opts.OnComplete = s.completeLegacy
	}

	if err := s.runner.Run(fullPrompt, opts); err != nil {
		if s.mode == ModeLegacy {
			s.tracker.Clear()
		}
		return err
	}
	return nil
}

func (s *Session) fail(err error) {
	if s.mode == ModeLegacy {
		// The run never produced a result; drop the baseline unless the
		// assistant already touched files before dying.
		s.mu.Lock()
		if len(s.tracker.DetectChanges()) == 0 {
			s.tracker.Clear()
		}
		s.mu.Unlock()
	}
	if s.notify.OnError != nil {
		s.notify.OnError(err)
	}
}

func (s *Session) completeProposal(stdout string) {
	p, err := schema.ParseOutput(stdout)
	if err != nil {
		s.fail(err)
		return
	}
	if err := schema.CheckExtensions(p, s.cfg.Extensions); err != nil {
		s.fail(err)
		return
	}
	s.mu.Lock()
	s.proposal = p
	s.mu.Unlock()

	if s.notify.OnProposal != nil {
		s.notify.OnProposal(p)
	}
}

func (s *Session) completeLegacy(string) {
	s.mu.Lock()
	records := s.tracker.DetectChanges()
	s.records = records
	if len(records) == 0 {
		s.tracker.Clear()
	}
	s.mu.Unlock()

	if s.notify.OnChanges != nil {
		s.notify.OnChanges(records)
	}
}

// Accept applies the pending proposal (proposal mode) or keeps the
// assistant's direct edits (legacy mode), then resolves the session.
func (s *Session) Accept() (model.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.mode {
	case ModeProposal:
		if s.proposal == nil {
			return model.Summary{}, ErrNothingPending
		}
		res := patch.ApplyProposal(s.proposal)
		s.proposal = nil

		summary := model.Summary{Modified: res.Applied}
		for _, e := range res.EntryErrors {
			summary.Failed = append(summary.Failed, e.Error())
		}
		for _, e := range res.FileErrors {
			summary.Failed = append(summary.Failed, e.Error())
		}
		if res.OK() {
			summary.Message = "Proposal applied."
		} else {
			summary.Message = "Proposal applied with failures."
		}
		s.reloadBuffers(res.Applied)
		s.relativize(&summary)
		return summary, nil

	default: // ModeLegacy
		if len(s.records) == 0 {
			return model.Summary{}, ErrNothingPending
		}
		summary := s.recordSummary("Changes kept.")
		s.records = nil
		s.tracker.Clear()
		s.relativize(&summary)
		return summary, nil
	}
}

// Reject discards the pending proposal without touching disk (proposal
// mode) or reverts every detected change back to the snapshot (legacy
// mode).
func (s *Session) Reject() (model.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.mode {
	case ModeProposal:
		if s.proposal == nil {
			return model.Summary{}, ErrNothingPending
		}
		s.proposal = nil
		return model.Summary{Message: "Proposal rejected. No files were changed."}, nil

	default: // ModeLegacy
		if len(s.records) == 0 {
			return model.Summary{}, ErrNothingPending
		}
		var paths []string
		for _, r := range s.records {
			paths = append(paths, r.Path)
		}
		err := s.tracker.Revert()
		if err != nil {
			return model.Summary{}, fmt.Errorf("revert incomplete: %w", err)
		}
		s.records = nil
		s.reloadBuffers(paths)

		summary := model.Summary{Message: "Reverted all changes.", Modified: paths}
		s.relativize(&summary)
		return summary, nil
	}
}

// Cancel terminates an in-flight run. In legacy mode the baseline is kept
// only if the assistant already changed something, so a partial run can
// still be reverted.
func (s *Session) Cancel() {
	s.runner.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeLegacy && len(s.records) == 0 && s.tracker.Active() {
		if records := s.tracker.DetectChanges(); len(records) > 0 {
			s.records = records
		} else {
			s.tracker.Clear()
		}
	}
}

// Status exposes the runner state.
func (s *Session) Status() runner.Status { return s.runner.Status() }

// PreviewChange returns display hunks for one proposal entry against the
// file's current content.
func (s *Session) PreviewChange(c model.ChangeEntry) ([]diffview.Hunk, error) {
	oldLines, newLines, err := patch.Preview(c)
	if err != nil {
		return nil, err
	}
	return diffview.ComputeDiff(oldLines, newLines), nil
}

// RecordDiff returns display hunks for one detected change record.
func (s *Session) RecordDiff(rec model.ChangeRecord) []diffview.Hunk {
	return diffview.ComputeDiff(splitContent(rec.OldContent), splitContent(rec.NewContent))
}

func (s *Session) recordSummary(message string) model.Summary {
	summary := model.Summary{Message: message}
	for _, r := range s.records {
		switch r.Status {
		case model.StatusAdded:
			summary.Created = append(summary.Created, r.Path)
		case model.StatusDeleted:
			summary.Deleted = append(summary.Deleted, r.Path)
		default:
			summary.Modified = append(summary.Modified, r.Path)
		}
	}
	return summary
}

func (s *Session) reloadBuffers(paths []string) {
	if s.ed == nil || len(paths) == 0 {
		return
	}
	// Best effort: a detached or dead editor must not fail the operation.
	_ = s.ed.ReloadFiles(paths)
}

// relativize rewrites absolute paths relative to the working directory for
// cleaner display.
func (s *Session) relativize(summary *model.Summary) {
	wd, err := os.Getwd()
	if err != nil {
		return
	}
	for _, group := range []*[]string{&summary.Created, &summary.Modified, &summary.Deleted} {
		for i, p := range *group {
			if rel, err := filepath.Rel(wd, p); err == nil && !strings.HasPrefix(rel, "..") {
				(*group)[i] = rel
			}
		}
	}
}

func splitContent(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}
