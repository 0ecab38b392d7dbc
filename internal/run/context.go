package run

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// RunContext is the per-invocation scratch state: a freshly created directory
// holding assembled prompts and captured agent output. It is removed at the
// end of the run unless the caller asked to keep debug files.
type RunContext struct {
	ID         string
	Dir        string
	PromptsDir string
	LogsDir    string

	keep bool
}

// NewRunContext creates the scratch directory tree for a run.
func NewRunContext(stagehandDir string, keep bool) (*RunContext, error) {
	id, err := newRunID()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(stagehandDir, "runs", id)
	rc := &RunContext{
		ID:         id,
		Dir:        dir,
		PromptsDir: filepath.Join(dir, "prompts"),
		LogsDir:    filepath.Join(dir, "logs"),
		keep:       keep,
	}
	for _, d := range []string{rc.PromptsDir, rc.LogsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create run dir: %w", err)
		}
	}
	return rc, nil
}

// WritePrompt stores an assembled prompt and returns its path.
func (rc *RunContext) WritePrompt(name, content string) (string, error) {
	path := filepath.Join(rc.PromptsDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write prompt %s: %w", name, err)
	}
	return path, nil
}

// WriteLogs captures a phase's stdout and stderr for post-mortem inspection.
func (rc *RunContext) WriteLogs(phase string, stdout, stderr []byte) (stdoutPath, stderrPath string, err error) {
	stdoutPath = filepath.Join(rc.LogsDir, phase+".stdout.log")
	stderrPath = filepath.Join(rc.LogsDir, phase+".stderr.log")
	if err := os.WriteFile(stdoutPath, stdout, 0o644); err != nil {
		return "", "", fmt.Errorf("write %s stdout: %w", phase, err)
	}
	if err := os.WriteFile(stderrPath, stderr, 0o644); err != nil {
		return "", "", fmt.Errorf("write %s stderr: %w", phase, err)
	}
	return stdoutPath, stderrPath, nil
}

// Cleanup removes the scratch directory unless debug files were requested.
func (rc *RunContext) Cleanup() {
	if rc.keep {
		log.Info().Str("dir", rc.Dir).Msg("keeping run debug files")
		return
	}
	if err := os.RemoveAll(rc.Dir); err != nil {
		log.Warn().Err(err).Str("dir", rc.Dir).Msg("failed to remove run dir")
	}
}

func newRunID() (string, error) {
	suffix, err := randomHex(3)
	if err != nil {
		return "", err
	}
	ts := time.Now().UTC().Format("20060102-150405")
	return fmt.Sprintf("%s-%s", ts, suffix), nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
