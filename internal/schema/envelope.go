package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/joshL1215/claude-helper/model"
)

// envelope is the assistant's structured-output wrapper. The result field is
// either a plain string or a list of content blocks.
type envelope struct {
	Result json.RawMessage `json:"result"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// UnwrapEnvelope extracts the proposal text nested inside the assistant's
// JSON envelope ({"result": string | [block, ...]}).
func UnwrapEnvelope(raw string) (string, error) {
	var env envelope
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &env); err != nil {
		return "", fmt.Errorf("output is not a JSON envelope: %w", err)
	}
	if len(env.Result) == 0 {
		return "", errors.New("envelope has no 'result' field")
	}

	var s string
	if err := json.Unmarshal(env.Result, &s); err == nil {
		return s, nil
	}

	var blocks []json.RawMessage
	if err := json.Unmarshal(env.Result, &blocks); err != nil {
		return "", fmt.Errorf("envelope 'result' is neither a string nor a list: %w", err)
	}

	var b strings.Builder
	for _, rawBlock := range blocks {
		var text string
		if err := json.Unmarshal(rawBlock, &text); err == nil {
			b.WriteString(text)
			continue
		}
		var block contentBlock
		if err := json.Unmarshal(rawBlock, &block); err != nil {
			return "", fmt.Errorf("unrecognized content block in envelope: %w", err)
		}
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

// ParseOutput turns raw assistant stdout into a Proposal. It first tries the
// enveloped form; when unwrapping fails, the raw text is tried directly
// against the proposal schema. If both fail, both failures are preserved so
// the actual cause is not masked by the fallback.
func ParseOutput(raw string) (*model.Proposal, error) {
	inner, envErr := UnwrapEnvelope(raw)
	if envErr == nil {
		return Parse(inner)
	}

	p, rawErr := Parse(raw)
	if rawErr != nil {
		return nil, errors.Join(envErr, rawErr)
	}
	return p, nil
}
