// Package patch rewrites files according to a validated change proposal.
// Each file is folded in a single pass: its entries are applied bottom to
// top so earlier replacements never shift the line numbers of later ones.
package patch

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joshL1215/claude-helper/model"
)

// EntryError is a per-entry apply failure. Index is the 1-based position of
// the entry in the proposal's change list, not the per-file fold order.
type EntryError struct {
	Index int
	Path  string
	Err   error
}

func (e EntryError) Error() string {
	return fmt.Sprintf("change %d (%s): %v", e.Index, e.Path, e.Err)
}

// FileError is a per-path IO failure. Every entry targeting the path is
// affected, but entries for other files are not.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Result collects the outcome of applying a proposal. Failures are
// independent: a bad entry never blocks its siblings.
type Result struct {
	Applied     []string
	EntryErrors []EntryError
	FileErrors  []FileError
}

// OK reports whether every entry applied cleanly.
func (r *Result) OK() bool {
	return len(r.EntryErrors) == 0 && len(r.FileErrors) == 0
}

// indexedEntry pairs a change with its original position in the proposal.
type indexedEntry struct {
	index int
	entry model.ChangeEntry
}

// ApplyProposal applies every change in the proposal, grouped by file.
// Within a file, entries are sorted by start_line descending and folded
// into the line sequence from the bottom up; each range is validated
// against the current folded length immediately before it is applied.
func ApplyProposal(p *model.Proposal) *Result {
	res := &Result{}

	byFile := make(map[string][]indexedEntry)
	var order []string
	for i, c := range p.Changes {
		if _, seen := byFile[c.FilePath]; !seen {
			order = append(order, c.FilePath)
		}
		byFile[c.FilePath] = append(byFile[c.FilePath], indexedEntry{index: i + 1, entry: c})
	}

	for _, path := range order {
		applyFile(path, byFile[path], res)
	}

	sort.Slice(res.EntryErrors, func(i, j int) bool {
		return res.EntryErrors[i].Index < res.EntryErrors[j].Index
	})
	return res
}

func applyFile(path string, entries []indexedEntry, res *Result) {
	content, err := os.ReadFile(path)
	if err != nil {
		res.FileErrors = append(res.FileErrors, FileError{Path: path, Err: err})
		for _, ie := range entries {
			res.EntryErrors = append(res.EntryErrors, EntryError{Index: ie.index, Path: path, Err: fmt.Errorf("file unreadable: %w", err)})
		}
		return
	}

	lines, trailingNewline := splitLines(string(content))

	// Descending start_line keeps not-yet-applied ranges below valid.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].entry.StartLine > entries[j].entry.StartLine
	})

	appliedAny := false
	for _, ie := range entries {
		c := ie.entry
		if c.StartLine < 1 || c.EndLine > len(lines) {
			res.EntryErrors = append(res.EntryErrors, EntryError{
				Index: ie.index,
				Path:  path,
				Err:   fmt.Errorf("line range %d-%d out of bounds (file has %d lines)", c.StartLine, c.EndLine, len(lines)),
			})
			continue
		}
		lines = splice(lines, c.StartLine, c.EndLine, c.ContentLines())
		appliedAny = true
	}

	if !appliedAny {
		return
	}

	if err := os.WriteFile(path, []byte(joinLines(lines, trailingNewline)), 0644); err != nil {
		res.FileErrors = append(res.FileErrors, FileError{Path: path, Err: err})
		return
	}
	res.Applied = append(res.Applied, path)
}

// Preview returns the lines the change would replace and the lines that
// would replace them, without writing anything.
func Preview(c model.ChangeEntry) (oldLines, newLines []string, err error) {
	content, err := os.ReadFile(c.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("file unreadable: %w", err)
	}
	lines, _ := splitLines(string(content))
	if c.EndLine > len(lines) {
		return nil, nil, fmt.Errorf("line range %d-%d out of bounds (file has %d lines)", c.StartLine, c.EndLine, len(lines))
	}
	oldLines = append([]string(nil), lines[c.StartLine-1:c.EndLine]...)
	return oldLines, c.ContentLines(), nil
}

// splice replaces lines [start, end] (1-indexed, inclusive) with replacement.
func splice(lines []string, start, end int, replacement []string) []string {
	out := make([]string, 0, len(lines)-(end-start+1)+len(replacement))
	out = append(out, lines[:start-1]...)
	out = append(out, replacement...)
	out = append(out, lines[end:]...)
	return out
}

// splitLines breaks content into lines without producing a ghost empty line
// for a trailing newline. The trailing-newline flag is preserved so the
// write-back is byte-faithful for untouched regions.
func splitLines(content string) ([]string, bool) {
	if content == "" {
		return nil, false
	}
	trailing := strings.HasSuffix(content, "\n")
	if trailing {
		content = strings.TrimSuffix(content, "\n")
	}
	return strings.Split(content, "\n"), trailing
}

func joinLines(lines []string, trailingNewline bool) string {
	if len(lines) == 0 {
		return ""
	}
	s := strings.Join(lines, "\n")
	if trailingNewline {
		s += "\n"
	}
	return s
}
