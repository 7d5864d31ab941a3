package model

import "strings"

// ChangeEntry is one contiguous line-range replacement within a single file.
// Line numbers are 1-indexed and inclusive, interpreted against the file's
// current on-disk line count at apply time.
type ChangeEntry struct {
	FilePath    string `json:"filepath"`
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line"`
	NewContent  string `json:"new_content"`
	Explanation string `json:"explanation,omitempty"`
}

// ContentLines splits NewContent on newline boundaries. An empty NewContent
// yields nil, which deletes the target range with no replacement.
func (c ChangeEntry) ContentLines() []string {
	if c.NewContent == "" {
		return nil
	}
	return strings.Split(c.NewContent, "\n")
}

// Proposal is a structured description of intended edits across one or more
// files. Immutable once parsed; either fully valid or rejected as a whole.
type Proposal struct {
	Summary string        `json:"summary,omitempty"`
	Changes []ChangeEntry `json:"changes"`
}

// ChangeStatus classifies a file relative to the session snapshot.
type ChangeStatus string

const (
	StatusModified ChangeStatus = "modified"
	StatusAdded    ChangeStatus = "added"
	StatusDeleted  ChangeStatus = "deleted"
)

// ChangeRecord describes one file that differs from the snapshot baseline.
// OldContent is empty for added files, NewContent for deleted ones.
type ChangeRecord struct {
	Path       string
	OldContent string
	NewContent string
	Status     ChangeStatus
}

// Summary holds the results of an operation for display.
type Summary struct {
	Created  []string
	Modified []string
	Deleted  []string
	Failed   []string
	Message  string
}
