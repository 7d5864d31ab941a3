// Package diffview computes a line-level diff for presentation. It is not a
// merge engine: hunks describe what to render, anchored to positions in the
// new line sequence.
package diffview

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// HunkType distinguishes pure additions, pure deletions, and mixed
// delete+add regions so callers can render each differently.
type HunkType string

const (
	HunkAdd    HunkType = "add"
	HunkDelete HunkType = "delete"
	HunkChange HunkType = "change"
)

// Hunk is one contiguous region of difference. Position is the 1-based line
// number in the new sequence where the hunk begins; for a pure deletion it
// is the line the removed content would occupy, which may be one past the
// end of the new sequence.
type Hunk struct {
	Type     HunkType
	Position int
	OldLines []string
	NewLines []string
}

// ComputeDiff diffs two line sequences into an ordered list of hunks. A
// deletion immediately followed by an insertion at the same region is
// reported as a single change hunk.
func ComputeDiff(oldLines, newLines []string) []Hunk {
	dmp := diffmatchpatch.New()
	src, dst, lineArray := dmp.DiffLinesToChars(joinForDiff(oldLines), joinForDiff(newLines))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(src, dst, false), lineArray)

	var hunks []Hunk
	newPos := 1
	for i := 0; i < len(diffs); i++ {
		d := diffs[i]
		lines := splitDiffText(d.Text)

		switch d.Type {
		case diffmatchpatch.DiffEqual:
			newPos += len(lines)

		case diffmatchpatch.DiffDelete:
			// Pair with an immediately following insertion.
			if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffInsert {
				added := splitDiffText(diffs[i+1].Text)
				hunks = append(hunks, Hunk{
					Type:     HunkChange,
					Position: newPos,
					OldLines: lines,
					NewLines: added,
				})
				newPos += len(added)
				i++
				continue
			}
			hunks = append(hunks, Hunk{
				Type:     HunkDelete,
				Position: newPos,
				OldLines: lines,
			})

		case diffmatchpatch.DiffInsert:
			hunks = append(hunks, Hunk{
				Type:     HunkAdd,
				Position: newPos,
				NewLines: lines,
			})
			newPos += len(lines)
		}
	}
	return hunks
}

func joinForDiff(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func splitDiffText(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
