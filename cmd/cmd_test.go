package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTrace_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.txt")
	require.NoError(t, os.WriteFile(path, []byte("ReferenceError: token is not defined\n"), 0o644))

	trace, err := readTrace([]string{path})
	require.NoError(t, err)
	assert.Contains(t, trace, "ReferenceError")
}

func TestReadTrace_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	_, err := readTrace([]string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")
}

func TestReadTrace_MissingFile(t *testing.T) {
	_, err := readTrace([]string{filepath.Join(t.TempDir(), "nope.txt")})
	require.Error(t, err)
}

func TestConsoleNotifier(t *testing.T) {
	var out bytes.Buffer
	n := &consoleNotifier{out: &out}

	require.NoError(t, n.Notify(context.Background(), "incident report"))
	assert.Equal(t, "incident report\n", out.String())
}

func TestFanoutNotifier_ReturnsFirstFailure(t *testing.T) {
	var first, second bytes.Buffer
	n := fanoutNotifier{
		&consoleNotifier{out: &first},
		&consoleNotifier{out: &second},
	}

	require.NoError(t, n.Notify(context.Background(), "hello"))
	assert.Equal(t, first.String(), second.String())
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["triage"])
}
