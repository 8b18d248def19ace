package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/shopfloor/backend/internal/cli"
)

func TestRun_version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--version"}, &stdout, &stderr)

	assert.Equal(t, cli.ExitSuccess, code)
	assert.Contains(t, stdout.String(), Version)
	assert.Empty(t, stderr.String())
}

func TestRun_unknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"frobnicate"}, &stdout, &stderr)

	assert.Equal(t, cli.ExitCommandError, code)
	assert.Contains(t, stderr.String(), "error:")
}

func TestRun_invalidFormat(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--format", "xml", "reasons"}, &stdout, &stderr)

	assert.Equal(t, cli.ExitCommandError, code)
	assert.Contains(t, stderr.String(), "invalid format")
}

func TestRun_jsonError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	dir := t.TempDir()
	code := run([]string{"--data-dir", dir, "--format", "json", "whoami"}, &stdout, &stderr)

	assert.Equal(t, cli.ExitFailure, code)
	var resp cli.Response
	require.NoError(t, json.Unmarshal(stderr.Bytes(), &resp), stderr.String())
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNAUTHENTICATED", resp.Error.Code)
	assert.FileExists(t, filepath.Join(dir, "shopfloor.db"))
}
