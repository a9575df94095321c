package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stacksentry/stacksentry/api/schemas"
)

func testRow(id string) schemas.AuditRow {
	return schemas.AuditRow{
		IncidentID:   id,
		Timestamp:    "2026-01-31T17:18:02Z",
		Repo:         "ichack26/broken_app",
		File:         "src/routes/api.js",
		Line:         "17",
		ErrorName:    "TypeError",
		ErrorMessage: "Cannot read properties of undefined (reading 'id')",
		TopFrame:     "src/routes/api.js:17",
		OwnersTop3:   "John:95|Michael:2|Vincent:2",
		CommitList:   "87123b7:install dot.env@Shawn;58eef9a:set up npm run test@Shawn",
		SlackText:    "Crash Reason: TypeError reading 'id' at src/routes/api.js:17.",
	}
}

func readStore(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestAppend_WritesHeaderExactlyOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "incidents.csv")
	rec := NewRecorder(path, zaptest.NewLogger(t))

	const n = 5
	for i := 0; i < n; i++ {
		require.NoError(t, rec.Append(testRow(fmt.Sprintf("incident-%d", i))))
	}

	rows := readStore(t, path)
	require.Len(t, rows, n+1)
	assert.Equal(t, Header, rows[0])
	for i := 1; i <= n; i++ {
		assert.Equal(t, fmt.Sprintf("incident-%d", i-1), rows[i][0])
	}

	// The header must appear exactly once in the raw bytes as well.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(raw), "incident_id,timestamp"))
	assert.True(t, strings.HasPrefix(string(raw), "incident_id,timestamp"))
}

func TestAppend_CreatesParentDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "deeper", "incidents.csv")
	rec := NewRecorder(path, zaptest.NewLogger(t))

	require.NoError(t, rec.Append(testRow("a")))
	rows := readStore(t, path)
	require.Len(t, rows, 2)
}

// A field containing delimiter, quote, and newline must round-trip intact.
func TestAppend_CSVEscapingRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "incidents.csv")
	rec := NewRecorder(path, zaptest.NewLogger(t))

	hostile := "a,\"b\"\nc"
	row := testRow("escaped")
	row.ErrorMessage = hostile
	row.SlackText = ""

	require.NoError(t, rec.Append(row))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"a,""b""`)

	rows := readStore(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, hostile, rows[1][6])
	assert.Equal(t, "", rows[1][10])
}

func TestAppend_ConcurrentWritersDoNotInterleave(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "incidents.csv")
	rec := NewRecorder(path, zaptest.NewLogger(t))

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, rec.Append(testRow(fmt.Sprintf("incident-%d", i))))
		}()
	}
	wg.Wait()

	rows := readStore(t, path)
	require.Len(t, rows, n+1)
	assert.Equal(t, Header, rows[0])

	seen := make(map[string]bool)
	for _, row := range rows[1:] {
		require.Len(t, row, len(Header))
		seen[row[0]] = true
	}
	assert.Len(t, seen, n)
}

func TestAppend_FailsOnUnwritablePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// The store path is a directory, so opening for append must fail.
	rec := NewRecorder(dir, zaptest.NewLogger(t))

	err := rec.Append(testRow("x"))
	require.Error(t, err)
}
