package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chesapeakedev/stagehand/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func writePrompt(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "prompt.md")
	require.NoError(t, os.WriteFile(path, []byte("do the thing"), 0o644))
	return path
}

func newTestRunner(t *testing.T, root string, script string, timeout time.Duration) *ExecRunner {
	t.Helper()
	r, err := NewExecRunner(config.AgentConfig{
		Type:         "exec",
		Cmd:          []string{script},
		Timeout:      timeout,
		SettingsPath: filepath.Join(".agent", "settings.json"),
	}, config.ProfilesConfig{}, root)
	require.NoError(t, err)
	return r
}

func TestExecRunner_CapturesOutputAndExitCode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, "agent.sh", "echo out-line\necho err-line >&2\nexit 0\n")
	runner := newTestRunner(t, dir, script, time.Minute)

	res, err := runner.Run(context.Background(), PhaseImplement, writePrompt(t, dir), dir)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, string(res.Stdout), "out-line")
	assert.Contains(t, string(res.Stderr), "err-line")
}

func TestExecRunner_NonZeroExitIsNotAnError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, "agent.sh", "echo failed >&2\nexit 3\n")
	runner := newTestRunner(t, dir, script, time.Minute)

	res, err := runner.Run(context.Background(), PhasePlan, writePrompt(t, dir), dir)
	require.NoError(t, err, "a non-zero exit is reported in the result, not as a run error")
	assert.Equal(t, 3, res.ExitCode)
}

func TestExecRunner_TimeoutIsDistinct(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, "agent.sh", "sleep 5\n")
	runner := newTestRunner(t, dir, script, 100*time.Millisecond)

	_, err := runner.Run(context.Background(), PhaseImplement, writePrompt(t, dir), dir)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestExecRunner_StdinIsClosed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// `cat` would hang forever on an open terminal; with nulled stdin it
	// sees EOF immediately.
	script := writeScript(t, dir, "agent.sh", "cat\necho done\n")
	runner := newTestRunner(t, dir, script, 5*time.Second)

	res, err := runner.Run(context.Background(), PhaseImplement, writePrompt(t, dir), dir)
	require.NoError(t, err)
	assert.Contains(t, string(res.Stdout), "done")
}

func TestExecRunner_PromptAppendedAsArgument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, "agent.sh", `echo "prompt:$1"`+"\n")
	runner := newTestRunner(t, dir, script, time.Minute)

	res, err := runner.Run(context.Background(), PhasePlan, writePrompt(t, dir), dir)
	require.NoError(t, err)
	assert.Contains(t, string(res.Stdout), "prompt:do the thing")
}

func TestNewExecRunner_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := NewExecRunner(config.AgentConfig{Type: "hal9000"}, config.ProfilesConfig{}, t.TempDir())
	require.Error(t, err)
}

func TestNewExecRunner_KnownTypesBuildCommand(t *testing.T) {
	t.Parallel()

	r, err := NewExecRunner(config.AgentConfig{Type: "claude", Model: "opus"}, config.ProfilesConfig{}, t.TempDir())
	require.NoError(t, err)
	info := r.Describe()
	assert.Equal(t, "claude", info.Cmd[0])
	assert.Contains(t, info.Cmd, "--model")
	assert.Contains(t, info.Cmd, "--print")

	r, err = NewExecRunner(config.AgentConfig{Type: "codex"}, config.ProfilesConfig{}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{"codex", "exec", "--full-auto", "--skip-git-repo-check"}, r.Describe().Cmd)
}

func TestProfileSwap_RestoredAfterRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, "agent.sh", "cat .agent/settings.json\n")

	settingsPath := filepath.Join(dir, ".agent", "settings.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(settingsPath), 0o755))
	require.NoError(t, os.WriteFile(settingsPath, []byte(`{"mode":"original"}`), 0o644))

	profilePath := filepath.Join(dir, "plan-profile.json")
	require.NoError(t, os.WriteFile(profilePath, []byte(`{"mode":"restricted"}`), 0o644))

	r, err := NewExecRunner(config.AgentConfig{
		Type:         "exec",
		Cmd:          []string{script},
		Timeout:      time.Minute,
		SettingsPath: filepath.Join(".agent", "settings.json"),
	}, config.ProfilesConfig{Plan: profilePath}, dir)
	require.NoError(t, err)

	res, err := r.Run(context.Background(), PhasePlan, writePrompt(t, dir), dir)
	require.NoError(t, err)

	// The child saw the restricted profile.
	assert.Contains(t, string(res.Stdout), "restricted")

	// The original settings are back.
	data, err := os.ReadFile(settingsPath)
	require.NoError(t, err)
	assert.Equal(t, `{"mode":"original"}`, string(data))
}

func TestProfileSwap_RestoredAfterTimeout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, "agent.sh", "sleep 5\n")

	settingsPath := filepath.Join(dir, ".agent", "settings.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(settingsPath), 0o755))
	require.NoError(t, os.WriteFile(settingsPath, []byte(`{"mode":"original"}`), 0o644))

	profilePath := filepath.Join(dir, "implement-profile.json")
	require.NoError(t, os.WriteFile(profilePath, []byte(`{"mode":"permissive"}`), 0o644))

	r, err := NewExecRunner(config.AgentConfig{
		Type:         "exec",
		Cmd:          []string{script},
		Timeout:      100 * time.Millisecond,
		SettingsPath: filepath.Join(".agent", "settings.json"),
	}, config.ProfilesConfig{Implement: profilePath}, dir)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), PhaseImplement, writePrompt(t, dir), dir)
	require.True(t, errors.Is(err, ErrTimeout))

	data, err := os.ReadFile(settingsPath)
	require.NoError(t, err)
	assert.Equal(t, `{"mode":"original"}`, string(data), "settings must be restored even on timeout")
}

func TestProfileSwap_NoOriginalSettings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, "agent.sh", "true\n")

	profilePath := filepath.Join(dir, "profile.json")
	require.NoError(t, os.WriteFile(profilePath, []byte(`{}`), 0o644))

	settingsRel := filepath.Join(".agent", "settings.json")
	r, err := NewExecRunner(config.AgentConfig{
		Type:         "exec",
		Cmd:          []string{script},
		Timeout:      time.Minute,
		SettingsPath: settingsRel,
	}, config.ProfilesConfig{Plan: profilePath}, dir)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), PhasePlan, writePrompt(t, dir), dir)
	require.NoError(t, err)

	// No settings existed before, so none should exist after.
	_, statErr := os.Stat(filepath.Join(dir, settingsRel))
	assert.True(t, os.IsNotExist(statErr))
}

func TestProfileSwap_MissingProfileRunsWithoutSwap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, "agent.sh", "true\n")

	r, err := NewExecRunner(config.AgentConfig{
		Type:         "exec",
		Cmd:          []string{script},
		Timeout:      time.Minute,
		SettingsPath: filepath.Join(".agent", "settings.json"),
	}, config.ProfilesConfig{Plan: filepath.Join(dir, "missing.json")}, dir)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), PhasePlan, writePrompt(t, dir), dir)
	require.NoError(t, err)
}
