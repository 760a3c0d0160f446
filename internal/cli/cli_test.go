package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "contractintel")
	assert.Contains(t, out, "sqlite driver:")
}

func TestSubmitAndStatus(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cli.db")
	contract := filepath.Join(dir, "nda.txt")
	require.NoError(t, os.WriteFile(contract, []byte("The parties shall keep all terms confidential."), 0o644))

	out, err := runCommand(t, "submit", contract, "--db", dbPath, "--contract-id", "c-cli", "--user-id", "u-1")
	require.NoError(t, err)
	assert.Contains(t, out, "queued for contract c-cli")

	// "job <id> queued for contract c-cli"
	fields := strings.Fields(out)
	require.GreaterOrEqual(t, len(fields), 2)
	jobID := fields[1]

	out, err = runCommand(t, "status", jobID, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "state:    queued")
	assert.Contains(t, out, "progress: 0%")
}

func TestStatusUnknownJob(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	_, err := runCommand(t, "status", "missing-job", "--db", dbPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job not found")
}

func TestSubmitMissingFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	_, err := runCommand(t, "submit", "/does/not/exist.pdf", "--db", dbPath)
	require.Error(t, err)
}

func TestDeadLettersEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	out, err := runCommand(t, "dead-letters", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "no dead-lettered jobs")
}
