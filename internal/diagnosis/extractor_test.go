package diagnosis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacksentry/stacksentry/api/schemas"
)

const validDiagnosisJSON = `{
  "summary": "token undefined",
  "crashReport": "### Crash\nThe variable token was never declared.",
  "errorType": "ReferenceError",
  "errorMessage": "token is not defined",
  "files": ["broken_app/src/services/payments.js"],
  "topFrame": "payments.js:25",
  "lineNumber": "25"
}`

func TestExtract_DirectJSON(t *testing.T) {
	t.Parallel()

	d, err := Extract(validDiagnosisJSON)
	require.NoError(t, err)

	assert.Equal(t, "ReferenceError", d.ErrorType)
	assert.Equal(t, "token is not defined", d.ErrorMessage)
	assert.Equal(t, []string{"broken_app/src/services/payments.js"}, d.Files)
	assert.Equal(t, "payments.js:25", d.TopFrame)
	assert.Equal(t, "25", d.LineNumber)
}

// TestExtract_FencedVariants verifies that markdown-wrapped responses decode
// to the same Diagnosis as their unfenced form.
func TestExtract_FencedVariants(t *testing.T) {
	t.Parallel()

	want, err := Extract(validDiagnosisJSON)
	require.NoError(t, err)

	testCases := []struct {
		name string
		raw  string
	}{
		{"tagged fence", "```json\n" + validDiagnosisJSON + "\n```"},
		{"untagged fence", "```\n" + validDiagnosisJSON + "\n```"},
		{"fence with surrounding prose", "Here is the diagnosis you asked for:\n```json\n" + validDiagnosisJSON + "\n```\nLet me know if you need more."},
		{"leading whitespace", "\n\n  " + validDiagnosisJSON + "  \n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Extract(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestExtract_StripsControlCharacters(t *testing.T) {
	t.Parallel()

	// A raw tab and carriage return are illegal inside JSON strings; the
	// sanitize fallback must remove them and recover the payload.
	raw := "{\"summary\": \"bad\tvalue\r\", \"errorType\": \"TypeError\"}"

	d, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, "badvalue", d.Summary)
	assert.Equal(t, "TypeError", d.ErrorType)
}

func TestExtract_StripsControlCharactersInsideFence(t *testing.T) {
	t.Parallel()

	raw := "```json\n{\"summary\": \"has\x01stray\x1fbytes\"}\n```"

	d, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, "hasstraybytes", d.Summary)
}

func TestExtract_AppliesDefaults(t *testing.T) {
	t.Parallel()

	d, err := Extract(`{}`)
	require.NoError(t, err)

	assert.Equal(t, schemas.DefaultSummary, d.Summary)
	assert.Equal(t, schemas.DefaultErrorType, d.ErrorType)
	assert.Equal(t, schemas.DefaultErrorMessage, d.ErrorMessage)
	assert.Equal(t, schemas.DefaultTopFrame, d.TopFrame)
	assert.Equal(t, schemas.DefaultLineNumber, d.LineNumber)
	assert.NotNil(t, d.Files)
	assert.Empty(t, d.Files)
	assert.Empty(t, d.CrashReport)
}

func TestExtract_Failure(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		raw  string
	}{
		{"plain prose", "I could not analyze this stack trace, sorry."},
		{"empty input", ""},
		{"truncated object", `{"summary": "cut off`},
		{"fenced prose", "```\nnot json at all\n```"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d, err := Extract(tc.raw)
			require.Error(t, err)
			assert.Nil(t, d)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, tc.raw, parseErr.Raw)
		})
	}
}
