package vcs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

type gitBackend struct {
	root string
}

func gitAvailable(ctx context.Context, root string) bool {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = root
	return cmd.Run() == nil
}

func (g *gitBackend) Kind() Kind   { return KindGit }
func (g *gitBackend) Root() string { return g.root }

func (g *gitBackend) CurrentBranch(ctx context.Context) (string, error) {
	out, err := runCmdOutput(ctx, g.root, "git", "branch", "--show-current")
	if err != nil {
		return "", fmt.Errorf("git branch: %w", err)
	}
	branch := strings.TrimSpace(out)
	if branch == "" {
		// Detached HEAD; report the default branch name.
		return "main", nil
	}
	return branch, nil
}

func (g *gitBackend) status(ctx context.Context) ([]string, error) {
	// -uall lists untracked files individually; a bare --porcelain collapses
	// an untracked directory to one "?? dir/" line and the exclusion below
	// would miss everything inside it.
	out, err := runCmdOutput(ctx, g.root, "git", "status", "--porcelain", "-uall")
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		// Porcelain lines are "XY <path>".
		if len(line) > 3 && ownStatePath(strings.TrimSpace(line[3:])) {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (g *gitBackend) IsClean(ctx context.Context) (bool, error) {
	lines, err := g.status(ctx)
	if err != nil {
		return false, err
	}
	return len(lines) == 0, nil
}

func (g *gitBackend) HasChanges(ctx context.Context) (bool, error) {
	clean, err := g.IsClean(ctx)
	if err != nil {
		return false, err
	}
	return !clean, nil
}

func (g *gitBackend) BranchExists(ctx context.Context, name string) (bool, error) {
	out, err := runCmdOutput(ctx, g.root, "git", "branch", "--list", name)
	if err != nil {
		return false, fmt.Errorf("git branch --list: %w", err)
	}
	return strings.TrimSpace(out) != "", nil
}

func (g *gitBackend) CreateBranch(ctx context.Context, name string) error {
	if err := runCmdErr(ctx, g.root, "git", "checkout", "-b", name); err != nil {
		return fmt.Errorf("git checkout -b %s: %w", name, err)
	}
	return nil
}

func (g *gitBackend) SwitchBranch(ctx context.Context, name string) error {
	if err := runCmdErr(ctx, g.root, "git", "checkout", name); err != nil {
		return fmt.Errorf("git checkout %s: %w", name, err)
	}
	return nil
}

func (g *gitBackend) DeleteBranch(ctx context.Context, name string) error {
	if err := runCmdErr(ctx, g.root, "git", "branch", "-D", name); err != nil {
		return fmt.Errorf("git branch -D %s: %w", name, err)
	}
	return nil
}

func (g *gitBackend) CommitAll(ctx context.Context, subject string) error {
	// The pathspec keeps the tool's own state out of the work commit.
	if err := runCmdErr(ctx, g.root, "git", "add", "-A", "--", ".", ":(exclude)"+StateDir); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	if err := runCmdErr(ctx, g.root, "git", "commit", "-m", subject); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	return nil
}

func (g *gitBackend) Push(ctx context.Context, branch string, force bool) error {
	args := []string{"push", "--set-upstream", "origin", branch}
	if force {
		args = []string{"push", "--force-with-lease", "--set-upstream", "origin", branch}
	}
	if err := runCmdErr(ctx, g.root, "git", args...); err != nil {
		return fmt.Errorf("git push: %w", err)
	}
	return nil
}
