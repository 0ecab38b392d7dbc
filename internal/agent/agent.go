// Package agent invokes the external coding agent: one blocking process per
// phase, with a phase-specific permission profile swapped in around the
// invocation and a hard wall-clock timeout.
package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/chesapeakedev/stagehand/internal/config"
	"github.com/chesapeakedev/stagehand/internal/logging"
	"github.com/rs/zerolog/log"
)

// Phase selects the permission profile and downstream effects of an
// invocation.
type Phase string

const (
	PhasePlan      Phase = "plan"
	PhaseImplement Phase = "implement"
)

// ErrTimeout marks an invocation killed by its configured timeout, as
// opposed to one the agent failed. A stalled external process must be
// distinguishable from a crashed one.
var ErrTimeout = errors.New("agent timed out")

// Result is the captured outcome of one agent invocation.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Runner executes the external agent for one phase.
type Runner interface {
	Run(ctx context.Context, phase Phase, promptPath, workDir string) (Result, error)
	Describe() RunnerInfo
}

// RunnerInfo describes how the agent is invoked.
type RunnerInfo struct {
	Type    string
	Cmd     []string
	Model   string
	Timeout time.Duration
}

type agentSpec struct {
	subcommand string
	extraFlags []string
}

var agentSpecs = map[string]agentSpec{
	"claude": {
		extraFlags: []string{"--output-format", "text", "--print", "--dangerously-skip-permissions"},
	},
	"codex": {
		subcommand: "exec",
		extraFlags: []string{"--full-auto", "--skip-git-repo-check"},
	},
	"gemini": {
		extraFlags: []string{"--output-format", "text", "--approval-mode", "yolo"},
	},
	"opencode": {
		subcommand: "run",
	},
}

// ExecRunner runs the agent as a subprocess.
type ExecRunner struct {
	repoRoot string
	cfg      config.AgentConfig
	profiles config.ProfilesConfig
	cmd      []string
}

// NewExecRunner constructs a runner for the configured agent type.
func NewExecRunner(cfg config.AgentConfig, profiles config.ProfilesConfig, repoRoot string) (*ExecRunner, error) {
	var cmd []string
	if cfg.Type == "exec" {
		if len(cfg.Cmd) == 0 {
			return nil, fmt.Errorf("exec agent requires cmd")
		}
		cmd = cfg.Cmd
	} else {
		spec, ok := agentSpecs[cfg.Type]
		if !ok {
			return nil, fmt.Errorf("unknown agent type %q", cfg.Type)
		}
		cmd = prepareCmd(cfg.Type, spec, cfg.Model)
	}
	return &ExecRunner{
		repoRoot: repoRoot,
		cfg:      cfg,
		profiles: profiles,
		cmd:      cmd,
	}, nil
}

func prepareCmd(baseCmd string, spec agentSpec, model string) []string {
	out := []string{baseCmd}
	if spec.subcommand != "" {
		out = append(out, spec.subcommand)
	}
	if model != "" {
		out = append(out, "--model", model)
	}
	return append(out, spec.extraFlags...)
}

// Run executes one agent invocation. The permission profile for the phase is
// swapped into the shared settings file first and restored on every exit
// path, including timeout and panic.
func (r *ExecRunner) Run(ctx context.Context, phase Phase, promptPath, workDir string) (res Result, err error) {
	prompt, err := os.ReadFile(promptPath)
	if err != nil {
		return Result{}, fmt.Errorf("read prompt: %w", err)
	}

	restore, err := r.swapProfile(phase)
	if err != nil {
		return Result{}, err
	}
	defer restore()

	timeout := r.cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string(nil), r.cmd[1:]...), string(prompt))
	cmd := exec.CommandContext(runCtx, r.cmd[0], args...)
	cmd.Dir = workDir
	// The run is non-interactive by construction: the child reads EOF
	// immediately instead of waiting on a terminal.
	cmd.Stdin = nil

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if logging.DebugEnabled() {
		cmd.Stdout = io.MultiWriter(&stdout, os.Stderr)
		cmd.Stderr = io.MultiWriter(&stderr, os.Stderr)
	}

	log.Info().
		Str("phase", string(phase)).
		Str("agent", r.cfg.Type).
		Str("work_dir", workDir).
		Dur("timeout", timeout).
		Msg("agent start")

	start := time.Now()
	runErr := cmd.Run()
	res = Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if runCtx.Err() == context.DeadlineExceeded {
		log.Warn().Str("phase", string(phase)).Dur("timeout", timeout).Msg("agent timed out")
		return res, fmt.Errorf("%w (%s)", ErrTimeout, timeout)
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			log.Warn().Str("phase", string(phase)).Int("exit_code", res.ExitCode).Msg("agent exited non-zero")
			return res, nil
		}
		return res, fmt.Errorf("run agent: %w", runErr)
	}

	log.Info().
		Str("phase", string(phase)).
		Dur("duration", res.Duration).
		Msg("agent finished")
	return res, nil
}

// Describe returns invocation details for diagnostics.
func (r *ExecRunner) Describe() RunnerInfo {
	return RunnerInfo{
		Type:    r.cfg.Type,
		Cmd:     r.cmd,
		Model:   r.cfg.Model,
		Timeout: r.cfg.Timeout,
	}
}
