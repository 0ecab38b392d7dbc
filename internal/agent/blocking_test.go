package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectBlockingError_MatchesRegardlessOfExitCode(t *testing.T) {
	t.Parallel()

	stdout := []byte("working...\nError: cannot proceed with implementation\nmore output\n")
	msg, found := DetectBlockingError(stdout, nil)
	require.True(t, found)
	assert.Contains(t, msg, "Error: cannot proceed with implementation")
}

func TestDetectBlockingError_CaseInsensitive(t *testing.T) {
	t.Parallel()

	msg, found := DetectBlockingError(nil, []byte("FATAL: UNABLE TO CONTINUE without credentials"))
	require.True(t, found)
	// The excerpt preserves the original casing.
	assert.Contains(t, msg, "UNABLE TO CONTINUE")
}

func TestDetectBlockingError_NormalProgressIsClean(t *testing.T) {
	t.Parallel()

	stdout := []byte("Reading files...\nEditing handler.go\nAll checklist items updated.\n")
	_, found := DetectBlockingError(stdout, nil)
	assert.False(t, found)
}

func TestDetectBlockingError_ContextWindow(t *testing.T) {
	t.Parallel()

	pad := strings.Repeat("x", 500)
	stdout := []byte(pad + " blocking error: disk full " + pad)
	msg, found := DetectBlockingError(stdout, nil)
	require.True(t, found)
	assert.Contains(t, msg, "disk full")
	assert.Less(t, len(msg), 400, "excerpt must stay a short window, got %d bytes", len(msg))
}

func TestDetectBlockingError_EmptyOutput(t *testing.T) {
	t.Parallel()

	_, found := DetectBlockingError(nil, nil)
	assert.False(t, found)
}
