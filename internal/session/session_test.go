package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshL1215/claude-helper/internal/config"
	"github.com/joshL1215/claude-helper/internal/runner"
	"github.com/joshL1215/claude-helper/model"
)

// fakeAssistant writes a shell script standing in for the assistant binary
// and returns a config pointing at it.
func fakeAssistant(t *testing.T, script string) *config.Config {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "fake-assistant")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"+script+"\n"), 0755))
	return &config.Config{
		Assistant:      bin,
		TimeoutSeconds: 30,
	}
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for session callback")
		panic("unreachable")
	}
}

// envelopeFor wraps a proposal in the assistant's structured-output form.
func envelopeFor(t *testing.T, p *model.Proposal) string {
	t.Helper()
	inner, err := json.Marshal(p)
	require.NoError(t, err)
	env, err := json.Marshal(map[string]string{"result": "Here is my proposal:\n" + string(inner)})
	require.NoError(t, err)
	return string(env)
}

func TestProposalModeAcceptApplies(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("1\n2\n3\n"), 0644))

	env := envelopeFor(t, &model.Proposal{
		Summary: "replace line two",
		Changes: []model.ChangeEntry{
			{FilePath: target, StartLine: 2, EndLine: 2, NewContent: "X\nY"},
		},
	})
	respFile := filepath.Join(t.TempDir(), "response.json")
	require.NoError(t, os.WriteFile(respFile, []byte(env), 0644))

	proposals := make(chan *model.Proposal, 1)
	cfg := fakeAssistant(t, "cat "+respFile)
	s := New(cfg, ModeProposal, root, nil, Notifier{
		OnProposal: func(p *model.Proposal) { proposals <- p },
		OnError:    func(err error) { t.Errorf("unexpected error: %v", err) },
	})

	require.NoError(t, s.Start("replace line 2"))
	p := waitFor(t, proposals)
	assert.Equal(t, "replace line two", p.Summary)

	// Nothing written before confirmation.
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", string(got))

	summary, err := s.Accept()
	require.NoError(t, err)
	assert.Contains(t, summary.Message, "applied")
	assert.Empty(t, summary.Failed)

	got, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "1\nX\nY\n3\n", string(got))

	// Session resolved: a new run may start.
	_, err = s.Accept()
	assert.ErrorIs(t, err, ErrNothingPending)
}

func TestProposalModeRejectLeavesDiskAlone(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("keep\n"), 0644))

	env := envelopeFor(t, &model.Proposal{
		Changes: []model.ChangeEntry{
			{FilePath: target, StartLine: 1, EndLine: 1, NewContent: "nope"},
		},
	})
	respFile := filepath.Join(t.TempDir(), "response.json")
	require.NoError(t, os.WriteFile(respFile, []byte(env), 0644))

	proposals := make(chan *model.Proposal, 1)
	s := New(fakeAssistant(t, "cat "+respFile), ModeProposal, root, nil, Notifier{
		OnProposal: func(p *model.Proposal) { proposals <- p },
	})

	require.NoError(t, s.Start("p"))
	waitFor(t, proposals)

	summary, err := s.Reject()
	require.NoError(t, err)
	assert.Contains(t, summary.Message, "rejected")

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "keep\n", string(got))
}

func TestProposalModeParseFailureSurfaced(t *testing.T) {
	errs := make(chan error, 1)
	s := New(fakeAssistant(t, `echo "the assistant rambled with no JSON"`), ModeProposal, t.TempDir(), nil, Notifier{
		OnProposal: func(*model.Proposal) { t.Error("unexpected proposal") },
		OnError:    func(err error) { errs <- err },
	})

	require.NoError(t, s.Start("p"))
	err := waitFor(t, errs)
	assert.Contains(t, err.Error(), "no JSON object")
}

func TestProposalModeExtensionFilterRejects(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("x\n"), 0644))

	env := envelopeFor(t, &model.Proposal{
		Changes: []model.ChangeEntry{{FilePath: target, StartLine: 1, EndLine: 1, NewContent: "y"}},
	})
	respFile := filepath.Join(t.TempDir(), "response.json")
	require.NoError(t, os.WriteFile(respFile, []byte(env), 0644))

	cfg := fakeAssistant(t, "cat "+respFile)
	cfg.Extensions = []string{"go"}

	errs := make(chan error, 1)
	s := New(cfg, ModeProposal, root, nil, Notifier{
		OnProposal: func(*model.Proposal) { t.Error("unexpected proposal") },
		OnError:    func(err error) { errs <- err },
	})

	require.NoError(t, s.Start("p"))
	err := waitFor(t, errs)
	assert.Contains(t, err.Error(), "allowed extensions")

	// Rejected proposals never reach disk.
	got, readErr := os.ReadFile(target)
	require.NoError(t, readErr)
	assert.Equal(t, "x\n", string(got))
}

func TestStartWhileRunningIsBusy(t *testing.T) {
	s := New(fakeAssistant(t, "sleep 30"), ModeProposal, t.TempDir(), nil, Notifier{})
	defer s.Cancel()

	require.NoError(t, s.Start("first"))
	err := s.Start("second")
	assert.True(t, errors.Is(err, runner.ErrBusy))
}

func TestStartWhileUnresolvedIsRejected(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("x\n"), 0644))

	env := envelopeFor(t, &model.Proposal{
		Changes: []model.ChangeEntry{{FilePath: target, StartLine: 1, EndLine: 1, NewContent: "y"}},
	})
	respFile := filepath.Join(t.TempDir(), "response.json")
	require.NoError(t, os.WriteFile(respFile, []byte(env), 0644))

	proposals := make(chan *model.Proposal, 1)
	s := New(fakeAssistant(t, "cat "+respFile), ModeProposal, root, nil, Notifier{
		OnProposal: func(p *model.Proposal) { proposals <- p },
	})

	require.NoError(t, s.Start("p"))
	waitFor(t, proposals)

	assert.ErrorIs(t, s.Start("again"), ErrUnresolved)

	_, err := s.Reject()
	require.NoError(t, err)
	assert.NoError(t, s.Start("now it works"))
	s.Cancel()
}

func TestLegacyModeDetectAndRevert(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("original\n"), 0644))
	added := filepath.Join(root, "new.txt")

	script := fmt.Sprintf("printf 'mutated\\n' > %s\nprintf 'fresh\\n' > %s", target, added)

	changes := make(chan []model.ChangeRecord, 1)
	s := New(fakeAssistant(t, script), ModeLegacy, root, nil, Notifier{
		OnChanges: func(recs []model.ChangeRecord) { changes <- recs },
		OnError:   func(err error) { t.Errorf("unexpected error: %v", err) },
	})

	require.NoError(t, s.Start("edit directly"))
	records := waitFor(t, changes)
	require.Len(t, records, 2)

	byPath := map[string]model.ChangeRecord{}
	for _, r := range records {
		byPath[r.Path] = r
	}
	require.Contains(t, byPath, target)
	assert.Equal(t, model.StatusModified, byPath[target].Status)
	assert.Equal(t, "original\n", byPath[target].OldContent)
	assert.Equal(t, "mutated\n", byPath[target].NewContent)
	require.Contains(t, byPath, added)
	assert.Equal(t, model.StatusAdded, byPath[added].Status)

	summary, err := s.Reject()
	require.NoError(t, err)
	assert.Contains(t, summary.Message, "Reverted")

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "original\n", string(got))
	_, err = os.Stat(added)
	assert.True(t, os.IsNotExist(err))

	// Resolved: a new run may start.
	assert.NoError(t, s.Start("again"))
	s.Cancel()
}

func TestLegacyModeAcceptKeepsChanges(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("before\n"), 0644))

	script := fmt.Sprintf("printf 'after\\n' > %s", target)

	changes := make(chan []model.ChangeRecord, 1)
	s := New(fakeAssistant(t, script), ModeLegacy, root, nil, Notifier{
		OnChanges: func(recs []model.ChangeRecord) { changes <- recs },
	})

	require.NoError(t, s.Start("p"))
	records := waitFor(t, changes)
	require.Len(t, records, 1)

	summary, err := s.Accept()
	require.NoError(t, err)
	assert.Contains(t, summary.Message, "kept")

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "after\n", string(got))
}

func TestLegacyModeNoChangesResolvesImmediately(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x\n"), 0644))

	changes := make(chan []model.ChangeRecord, 1)
	s := New(fakeAssistant(t, "true"), ModeLegacy, root, nil, Notifier{
		OnChanges: func(recs []model.ChangeRecord) { changes <- recs },
	})

	require.NoError(t, s.Start("p"))
	assert.Empty(t, waitFor(t, changes))

	// Nothing pending; a new run may start right away.
	_, err := s.Accept()
	assert.ErrorIs(t, err, ErrNothingPending)
	assert.NoError(t, s.Start("again"))
	s.Cancel()
}

func TestRecordDiffProducesHunks(t *testing.T) {
	s := New(fakeAssistant(t, "true"), ModeLegacy, t.TempDir(), nil, Notifier{})
	hunks := s.RecordDiff(model.ChangeRecord{
		OldContent: "a\nb\nc\n",
		NewContent: "a\nB\nc\n",
		Status:     model.StatusModified,
	})
	require.Len(t, hunks, 1)
	assert.Equal(t, 2, hunks[0].Position)
}
