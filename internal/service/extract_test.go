package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	t.Run("object embedded in prose round-trips", func(t *testing.T) {
		text := "Ecco la ricetta che hai chiesto:\n\n" +
			`{"nome": "Torta", "quantita": 200, "valori": [1, 2, 3]}` +
			"\n\nBuona preparazione!"

		var got map[string]interface{}
		err := ExtractJSON(text, &got)

		require.NoError(t, err)
		assert.Equal(t, "Torta", got["nome"])
		assert.Equal(t, float64(200), got["quantita"])
		assert.Equal(t, []interface{}{float64(1), float64(2), float64(3)}, got["valori"])
	})

	t.Run("whole text as JSON", func(t *testing.T) {
		var got map[string]interface{}
		err := ExtractJSON(`{"nome": "Crostata"}`, &got)

		require.NoError(t, err)
		assert.Equal(t, "Crostata", got["nome"])
	})

	t.Run("nested braces stay inside the greedy span", func(t *testing.T) {
		text := "Risultato: " + `{"esterno": {"interno": 1}}` + " fine."

		var got map[string]interface{}
		err := ExtractJSON(text, &got)

		require.NoError(t, err)
		assert.Contains(t, got, "esterno")
	})

	t.Run("no braces and invalid JSON reports parse failure", func(t *testing.T) {
		text := "Mi dispiace, non posso generare la ricetta."

		var got map[string]interface{}
		err := ExtractJSON(text, &got)

		require.Error(t, err)
		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.Equal(t, text, parseErr.Raw)
	})

	t.Run("stray brace in prose defeats the greedy match", func(t *testing.T) {
		// The outer span runs from the stray '{' to the last '}', which is
		// not valid JSON; the narrower embedded object is never tried.
		// Documented latitude, not a bug.
		text := "Nota {importante}: segue il JSON " + `{"nome": "Torta"}`

		var got map[string]interface{}
		err := ExtractJSON(text, &got)

		require.Error(t, err)
		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.Equal(t, text, parseErr.Raw)
	})
}
