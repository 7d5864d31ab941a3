// Package snapshot captures pre-run file state and classifies what the
// assistant changed on disk, including files that were never opened as
// buffers. It is the revert baseline for the legacy direct-edit workflow.
package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joshL1215/claude-helper/model"
)

// Tracker owns the snapshot for one session. Created at run start, consumed
// by change detection, cleared on accept or successful revert.
type Tracker struct {
	root     string
	files    map[string]string
	baseline map[string]struct{}
	active   bool
}

// New creates a tracker rooted at the project directory. The root is used
// to discover files the assistant created during the run.
func New(root string) *Tracker {
	return &Tracker{root: root}
}

// Active reports whether a snapshot is unresolved (accept/revert pending).
func (t *Tracker) Active() bool { return t.active }

// Capture reads the full content of each path. Unreadable files are skipped
// silently: the snapshot is best-effort because the set of files the
// assistant may touch is not known in advance. It also records which
// untracked files already exist, so pre-existing files are never
// misreported as added.
func (t *Tracker) Capture(paths []string) {
	t.files = make(map[string]string, len(paths))
	t.baseline = make(map[string]struct{})
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		t.files[p] = string(content)
	}
	for _, p := range untrackedFiles(t.root) {
		t.baseline[p] = struct{}{}
	}
	t.active = true
}

// DetectChanges compares the snapshot against current disk state. Unchanged
// files are omitted. The classification is a pure function of snapshot and
// disk: recomputing yields the same result.
func (t *Tracker) DetectChanges() []model.ChangeRecord {
	if !t.active {
		return nil
	}
	var records []model.ChangeRecord

	for path, old := range t.files {
		current, err := os.ReadFile(path)
		if err != nil {
			records = append(records, model.ChangeRecord{
				Path:       path,
				OldContent: old,
				Status:     model.StatusDeleted,
			})
			continue
		}
		// Exact byte comparison; no line-ending or whitespace normalization.
		if string(current) != old {
			records = append(records, model.ChangeRecord{
				Path:       path,
				OldContent: old,
				NewContent: string(current),
				Status:     model.StatusModified,
			})
		}
	}

	for _, path := range untrackedFiles(t.root) {
		if _, snapshotted := t.files[path]; snapshotted {
			continue
		}
		if _, existed := t.baseline[path]; existed {
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		records = append(records, model.ChangeRecord{
			Path:       path,
			NewContent: string(content),
			Status:     model.StatusAdded,
		})
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records
}

// Revert restores every changed file to its snapshot content: modified and
// deleted files are written back (recreating parents as needed) and added
// files are removed. Every file is attempted even after a failure. On full
// success the snapshot state is cleared.
func (t *Tracker) Revert() error {
	var errs []error
	for _, rec := range t.DetectChanges() {
		switch rec.Status {
		case model.StatusModified, model.StatusDeleted:
			if rec.Status == model.StatusDeleted {
				if err := os.MkdirAll(filepath.Dir(rec.Path), 0755); err != nil {
					errs = append(errs, fmt.Errorf("revert %s: %w", rec.Path, err))
					continue
				}
			}
			if err := os.WriteFile(rec.Path, []byte(rec.OldContent), 0644); err != nil {
				errs = append(errs, fmt.Errorf("revert %s: %w", rec.Path, err))
			}
		case model.StatusAdded:
			if err := os.Remove(rec.Path); err != nil && !os.IsNotExist(err) {
				errs = append(errs, fmt.Errorf("remove %s: %w", rec.Path, err))
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	t.Clear()
	return nil
}

// Clear discards the snapshot. Accepting a run's changes resolves the
// session the same way, without touching disk.
func (t *Tracker) Clear() {
	t.files = nil
	t.baseline = nil
	t.active = false
}

// untrackedFiles lists files under root that version control does not track
// and does not ignore. Outside a git repository it falls back to walking
// the tree, skipping dotted directories.
func untrackedFiles(root string) []string {
	if root == "" {
		return nil
	}

	cmd := exec.Command("git", "ls-files", "--others", "--exclude-standard")
	cmd.Dir = root
	if out, err := cmd.Output(); err == nil {
		var paths []string
		for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
			if line == "" {
				continue
			}
			paths = append(paths, filepath.Join(root, filepath.FromSlash(line)))
		}
		return paths
	}

	var paths []string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if name := d.Name(); path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	return paths
}

// TrackedFiles lists the files under version control at root, the baseline
// set worth snapshotting before a run. Outside a git repository every
// regular file is a candidate.
func TrackedFiles(root string) []string {
	cmd := exec.Command("git", "ls-files")
	cmd.Dir = root
	if out, err := cmd.Output(); err == nil {
		var paths []string
		for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
			if line == "" {
				continue
			}
			paths = append(paths, filepath.Join(root, filepath.FromSlash(line)))
		}
		return paths
	}
	return untrackedFiles(root)
}

// FindRoot locates the project root: the top of the enclosing git
// repository, or the working directory when there is none.
func FindRoot() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	if out, err := cmd.Output(); err == nil {
		return strings.TrimSpace(string(out)), nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("could not determine project root: %w", err)
	}
	return wd, nil
}
