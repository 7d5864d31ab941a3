package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joshL1215/claude-helper/internal/diffview"
	"github.com/joshL1215/claude-helper/internal/session"
	"github.com/joshL1215/claude-helper/model"
)

// --- Styles ---
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	pathStyle    = lipgloss.NewStyle()
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// --- Messages ---
type proposalMsg struct{ proposal *model.Proposal }

type changesMsg struct{ records []model.ChangeRecord }

type errorMsg struct{ err error }

func (e errorMsg) Error() string { return e.err.Error() }

type resolvedMsg struct{ model.Summary }

// --- Model ---
type state int

const (
	stateRunning state = iota
	stateConfirm
	stateDone
	stateError
)

// Model drives the run: spinner while the assistant is working, a
// confirmation view for the pending changes, then a summary.
type Model struct {
	sess       *session.Session
	prompt     string
	autoAccept bool

	events   chan tea.Msg
	spinner  spinner.Model
	state    state
	proposal *model.Proposal
	records  []model.ChangeRecord
	summary  model.Summary
	err      error
}

// New creates the TUI model. Construct the session with Notifier() so the
// run's results reach the event loop.
func New(prompt string, autoAccept bool) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &Model{
		prompt:     prompt,
		autoAccept: autoAccept,
		events:     make(chan tea.Msg, 4),
		spinner:    s,
		state:      stateRunning,
	}
}

// Notifier bridges session callbacks into bubbletea messages.
func (m *Model) Notifier() session.Notifier {
	return session.Notifier{
		OnProposal: func(p *model.Proposal) { m.events <- proposalMsg{proposal: p} },
		OnChanges:  func(recs []model.ChangeRecord) { m.events <- changesMsg{records: recs} },
		OnError:    func(err error) { m.events <- errorMsg{err: err} },
	}
}

// SetSession attaches the session after construction.
func (m *Model) SetSession(s *session.Session) { m.sess = s }

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startRun, m.waitEvent)
}

func (m *Model) startRun() tea.Msg {
	if err := m.sess.Start(m.prompt); err != nil {
		return errorMsg{err: err}
	}
	return nil
}

func (m *Model) waitEvent() tea.Msg {
	return <-m.events
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case proposalMsg:
		m.proposal = msg.proposal
		if m.autoAccept {
			return m.resolve(m.sess.Accept())
		}
		m.state = stateConfirm
		return m, nil

	case changesMsg:
		m.records = msg.records
		if len(msg.records) == 0 {
			m.summary = model.Summary{Message: "The assistant made no file changes."}
			m.state = stateDone
			return m, tea.Quit
		}
		if m.autoAccept {
			return m.resolve(m.sess.Accept())
		}
		m.state = stateConfirm
		return m, nil

	case errorMsg:
		m.state = stateError
		m.err = msg.err
		return m, tea.Quit

	case resolvedMsg:
		m.state = stateDone
		m.summary = msg.Summary
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		if m.state == stateRunning {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		if m.state == stateRunning {
			m.sess.Cancel()
		}
		return m, tea.Quit

	case "y", "enter":
		if m.state == stateConfirm {
			return m.resolve(m.sess.Accept())
		}

	case "n", "esc":
		if m.state == stateConfirm {
			return m.resolve(m.sess.Reject())
		}
	}
	return m, nil
}

func (m *Model) resolve(summary model.Summary, err error) (tea.Model, tea.Cmd) {
	if err != nil {
		m.state = stateError
		m.err = err
		return m, tea.Quit
	}
	m.state = stateDone
	m.summary = summary
	return m, tea.Quit
}

func (m *Model) View() string {
	switch m.state {
	case stateRunning:
		return fmt.Sprintf("%s Waiting for the assistant...", m.spinner.View())
	case stateConfirm:
		if m.proposal != nil {
			return m.renderProposal()
		}
		return m.renderRecords()
	case stateError:
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	case stateDone:
		return m.renderSummary()
	default:
		return ""
	}
}

func (m *Model) renderProposal() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Proposed changes"))
	b.WriteString("\n")
	if m.proposal.Summary != "" {
		b.WriteString(m.proposal.Summary)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	for i, c := range m.proposal.Changes {
		b.WriteString(fmt.Sprintf("%d. %s", i+1, pathStyle.Render(c.FilePath)))
		if c.StartLine == c.EndLine {
			b.WriteString(faintStyle.Render(fmt.Sprintf(" (line %d)", c.StartLine)))
		} else {
			b.WriteString(faintStyle.Render(fmt.Sprintf(" (lines %d-%d)", c.StartLine, c.EndLine)))
		}
		if c.NewContent == "" {
			b.WriteString(warnStyle.Render(" [delete]"))
		}
		b.WriteString("\n")
		if c.Explanation != "" {
			b.WriteString(faintStyle.Render("   " + c.Explanation))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString("Apply these changes? " + successStyle.Render("[y]es") + " / " + errorStyle.Render("[n]o"))
	b.WriteString("\n")
	return b.String()
}

func (m *Model) renderRecords() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("The assistant changed files on disk"))
	b.WriteString("\n\n")
	for _, rec := range m.records {
		var label string
		switch rec.Status {
		case model.StatusAdded:
			label = successStyle.Render("added   ")
		case model.StatusDeleted:
			label = errorStyle.Render("deleted ")
		default:
			label = warnStyle.Render("modified")
		}
		b.WriteString(fmt.Sprintf("%s %s", label, pathStyle.Render(rec.Path)))
		if rec.Status == model.StatusModified {
			added, removed := diffStats(m.sess.RecordDiff(rec))
			b.WriteString(faintStyle.Render(fmt.Sprintf("  +%d -%d", added, removed)))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString("Keep these changes? " + successStyle.Render("[y]es") + " / " + errorStyle.Render("[n]o reverts everything"))
	b.WriteString("\n")
	return b.String()
}

func (m *Model) renderSummary() string {
	var b strings.Builder
	if m.summary.Message != "" {
		b.WriteString(headerStyle.Render(m.summary.Message))
		b.WriteString("\n")
	}
	writeGroup := func(style lipgloss.Style, title string, paths []string) {
		if len(paths) == 0 {
			return
		}
		b.WriteString(style.Render(title))
		b.WriteString("\n")
		for _, p := range paths {
			b.WriteString(fmt.Sprintf("  %s\n", pathStyle.Render(p)))
		}
	}
	writeGroup(successStyle, "Created:", m.summary.Created)
	writeGroup(successStyle, "Modified:", m.summary.Modified)
	writeGroup(warnStyle, "Deleted:", m.summary.Deleted)
	writeGroup(errorStyle, "Failed:", m.summary.Failed)
	return b.String()
}

func diffStats(hunks []diffview.Hunk) (added, removed int) {
	for _, h := range hunks {
		added += len(h.NewLines)
		removed += len(h.OldLines)
	}
	return added, removed
}
