// Package schema parses and validates the assistant's JSON change proposal.
// The assistant's output is semi-trusted: the proposal document may be
// wrapped in prose and nested inside a structured-output envelope.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/joshL1215/claude-helper/model"
)

// ParseError reports malformed or absent JSON in the assistant output.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not parse response: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("could not parse response: %s", e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports a well-formed but semantically invalid proposal.
// Index is the 1-based position of the offending change, or 0 when the
// violation is at the proposal level.
type ValidationError struct {
	Index int
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("invalid proposal: change %d: %s", e.Index, e.Msg)
	}
	return fmt.Sprintf("invalid proposal: %s", e.Msg)
}

// Parse extracts the JSON document embedded in raw and decodes it into a
// validated Proposal. It is a pure function of its input. The candidate
// document is the span between the first '{' and the last '}' so that
// surrounding prose is tolerated.
func Parse(raw string) (*model.Proposal, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, &ParseError{Msg: "no JSON object found in response"}
	}
	candidate := raw[start : end+1]

	var doc map[string]any
	if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
		return nil, &ParseError{Msg: "malformed JSON", Err: err}
	}

	return validate(doc)
}

// validate checks the decoded document field by field. The first violation
// wins; a proposal is either fully valid or rejected as a whole.
func validate(doc map[string]any) (*model.Proposal, error) {
	p := &model.Proposal{}

	if raw, ok := doc["summary"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, &ValidationError{Msg: "'summary' must be a string"}
		}
		p.Summary = s
	}

	rawChanges, ok := doc["changes"]
	if !ok {
		return nil, &ValidationError{Msg: "missing 'changes' field"}
	}
	list, ok := rawChanges.([]any)
	if !ok {
		return nil, &ValidationError{Msg: "'changes' must be an array"}
	}
	if len(list) == 0 {
		return nil, &ValidationError{Msg: "'changes' must contain at least one entry"}
	}

	for i, item := range list {
		entry, err := validateEntry(i+1, item)
		if err != nil {
			return nil, err
		}
		p.Changes = append(p.Changes, entry)
	}
	return p, nil
}

func validateEntry(index int, item any) (model.ChangeEntry, error) {
	var entry model.ChangeEntry

	obj, ok := item.(map[string]any)
	if !ok {
		return entry, &ValidationError{Index: index, Msg: "entry must be an object"}
	}

	path, ok := obj["filepath"].(string)
	if !ok || path == "" {
		return entry, &ValidationError{Index: index, Msg: "'filepath' must be a non-empty string"}
	}
	entry.FilePath = path

	start, err := intField(obj, "start_line")
	if err != nil {
		return entry, &ValidationError{Index: index, Msg: err.Error()}
	}
	if start < 1 {
		return entry, &ValidationError{Index: index, Msg: "'start_line' must be >= 1"}
	}
	entry.StartLine = start

	end, err := intField(obj, "end_line")
	if err != nil {
		return entry, &ValidationError{Index: index, Msg: err.Error()}
	}
	if end < start {
		return entry, &ValidationError{Index: index, Msg: "'end_line' must be >= 'start_line'"}
	}
	entry.EndLine = end

	content, ok := obj["new_content"].(string)
	if _, present := obj["new_content"]; !present || !ok {
		return entry, &ValidationError{Index: index, Msg: "'new_content' must be a string (empty string deletes the range)"}
	}
	entry.NewContent = content

	if raw, present := obj["explanation"]; present {
		expl, ok := raw.(string)
		if !ok {
			return entry, &ValidationError{Index: index, Msg: "'explanation' must be a string"}
		}
		entry.Explanation = expl
	}

	return entry, nil
}

// CheckExtensions rejects a proposal that touches files outside the allowed
// extension set. Entries are never silently dropped; the first offending
// entry fails the proposal with its 1-based index. An empty set allows all.
func CheckExtensions(p *model.Proposal, extensions []string) error {
	if len(extensions) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	for i, c := range p.Changes {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(c.FilePath), "."))
		if _, ok := allowed[ext]; !ok {
			return &ValidationError{
				Index: i + 1,
				Msg:   fmt.Sprintf("file %s is outside the allowed extensions %v", c.FilePath, extensions),
			}
		}
	}
	return nil
}

// intField reads a JSON number field and requires it to hold an integer
// value. encoding/json decodes all numbers as float64.
func intField(obj map[string]any, name string) (int, error) {
	raw, ok := obj[name]
	if !ok {
		return 0, fmt.Errorf("missing '%s' field", name)
	}
	f, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("'%s' must be a number", name)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("'%s' must be an integer", name)
	}
	return int(f), nil
}
