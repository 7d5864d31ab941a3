package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const proposalJSON = `{"summary":"s","changes":[{"filepath":"/tmp/a.txt","start_line":2,"end_line":2,"new_content":"X\nY"}]}`

func TestUnwrapEnvelope(t *testing.T) {
	t.Run("result is a string", func(t *testing.T) {
		env, err := json.Marshal(map[string]any{"result": "prose " + proposalJSON + " more prose"})
		require.NoError(t, err)

		inner, err := UnwrapEnvelope(string(env))
		require.NoError(t, err)
		assert.Contains(t, inner, `"changes"`)
	})

	t.Run("result is a list of typed blocks", func(t *testing.T) {
		env, err := json.Marshal(map[string]any{"result": []any{
			map[string]any{"type": "text", "text": "here you go: "},
			map[string]any{"type": "text", "text": proposalJSON},
		}})
		require.NoError(t, err)

		inner, err := UnwrapEnvelope(string(env))
		require.NoError(t, err)
		assert.Contains(t, inner, `"start_line":2`)
	})

	t.Run("result is a list of plain strings", func(t *testing.T) {
		env, err := json.Marshal(map[string]any{"result": []any{"a", "b"}})
		require.NoError(t, err)

		inner, err := UnwrapEnvelope(string(env))
		require.NoError(t, err)
		assert.Equal(t, "ab", inner)
	})

	t.Run("not an envelope", func(t *testing.T) {
		_, err := UnwrapEnvelope("plain text, not JSON")
		assert.Error(t, err)
	})

	t.Run("missing result field", func(t *testing.T) {
		_, err := UnwrapEnvelope(`{"other": 1}`)
		assert.Error(t, err)
	})
}

func TestParseOutput(t *testing.T) {
	t.Run("enveloped proposal", func(t *testing.T) {
		env, err := json.Marshal(map[string]any{"result": proposalJSON})
		require.NoError(t, err)

		p, err := ParseOutput(string(env))
		require.NoError(t, err)
		require.Len(t, p.Changes, 1)
		assert.Equal(t, "/tmp/a.txt", p.Changes[0].FilePath)
	})

	t.Run("raw fallback when not enveloped", func(t *testing.T) {
		p, err := ParseOutput("some prose " + proposalJSON)
		require.NoError(t, err)
		require.Len(t, p.Changes, 1)
	})

	t.Run("both failures preserved", func(t *testing.T) {
		_, err := ParseOutput("no structure at all")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "envelope")
		assert.Contains(t, err.Error(), "no JSON object")
	})

	t.Run("valid envelope with invalid proposal does not fall back", func(t *testing.T) {
		env, err := json.Marshal(map[string]any{"result": `{"changes": []}`})
		require.NoError(t, err)

		_, err = ParseOutput(string(env))
		require.Error(t, err)
		var valErr *ValidationError
		assert.ErrorAs(t, err, &valErr)
	})
}
