package vcs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// jjBackend drives a jujutsu repository. Branches map onto jj bookmarks;
// jj snapshots the working copy automatically, so "dirty" means the working
// copy revision has a non-empty diff.
type jjBackend struct {
	root string
}

func jjAvailable(ctx context.Context, root string) bool {
	cmd := exec.CommandContext(ctx, "jj", "root")
	cmd.Dir = root
	return cmd.Run() == nil
}

func (j *jjBackend) Kind() Kind   { return KindJJ }
func (j *jjBackend) Root() string { return j.root }

func (j *jjBackend) CurrentBranch(ctx context.Context) (string, error) {
	// The closest bookmark is the one on the working copy's parent.
	out, err := runCmdOutput(ctx, j.root, "jj", "log", "--no-graph", "-r", "@-", "-T", "bookmarks")
	if err != nil {
		return "", fmt.Errorf("jj log bookmarks: %w", err)
	}
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return "main", nil
	}
	return strings.TrimSuffix(fields[0], "*"), nil
}

func (j *jjBackend) changedPaths(ctx context.Context) ([]string, error) {
	out, err := runCmdOutput(ctx, j.root, "jj", "diff", "-r", "@", "--name-only")
	if err != nil {
		return nil, fmt.Errorf("jj diff: %w", err)
	}
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		p := strings.TrimSpace(line)
		if p == "" || ownStatePath(p) {
			continue
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (j *jjBackend) IsClean(ctx context.Context) (bool, error) {
	paths, err := j.changedPaths(ctx)
	if err != nil {
		return false, err
	}
	return len(paths) == 0, nil
}

func (j *jjBackend) HasChanges(ctx context.Context) (bool, error) {
	clean, err := j.IsClean(ctx)
	if err != nil {
		return false, err
	}
	return !clean, nil
}

func (j *jjBackend) BranchExists(ctx context.Context, name string) (bool, error) {
	out, err := runCmdOutput(ctx, j.root, "jj", "bookmark", "list", name)
	if err != nil {
		return false, fmt.Errorf("jj bookmark list: %w", err)
	}
	return strings.TrimSpace(out) != "", nil
}

func (j *jjBackend) CreateBranch(ctx context.Context, name string) error {
	if err := runCmdErr(ctx, j.root, "jj", "bookmark", "create", name, "-r", "@"); err != nil {
		return fmt.Errorf("jj bookmark create %s: %w", name, err)
	}
	return nil
}

func (j *jjBackend) SwitchBranch(ctx context.Context, name string) error {
	if err := runCmdErr(ctx, j.root, "jj", "new", name); err != nil {
		return fmt.Errorf("jj new %s: %w", name, err)
	}
	return nil
}

func (j *jjBackend) DeleteBranch(ctx context.Context, name string) error {
	if err := runCmdErr(ctx, j.root, "jj", "bookmark", "delete", name); err != nil {
		return fmt.Errorf("jj bookmark delete %s: %w", name, err)
	}
	return nil
}

func (j *jjBackend) CommitAll(ctx context.Context, subject string) error {
	// jj has already snapshotted the working copy; describe and seal it.
	// The fileset keeps the tool's own state out of the sealed commit.
	if err := runCmdErr(ctx, j.root, "jj", "commit", "-m", subject, "~"+StateDir); err != nil {
		return fmt.Errorf("jj commit: %w", err)
	}
	return nil
}

func (j *jjBackend) Push(ctx context.Context, branch string, force bool) error {
	// Move the bookmark onto the sealed commit before pushing.
	if err := runCmdErr(ctx, j.root, "jj", "bookmark", "set", branch, "-r", "@-"); err != nil {
		return fmt.Errorf("jj bookmark set: %w", err)
	}
	args := []string{"git", "push", "--bookmark", branch, "--allow-new"}
	if err := runCmdErr(ctx, j.root, "jj", args...); err != nil {
		return fmt.Errorf("jj git push: %w", err)
	}
	return nil
}
