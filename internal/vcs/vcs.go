package vcs

import (
	"context"
	"errors"
	"strings"
)

// Kind identifies a version-control backend.
type Kind string

const (
	KindGit Kind = "git"
	KindJJ  Kind = "jj"
)

// ErrNoBackend is returned by Detect when neither backend responds.
var ErrNoBackend = errors.New("no supported version-control backend detected")

// ErrBranchExists is returned when a branch the tool would create already
// exists and the user did not choose to reuse it.
var ErrBranchExists = errors.New("branch already exists")

// StateDir is the tool's own state tree inside the workspace (debug log,
// run database, lock files, scratch dirs). It is excluded from clean/dirty
// checks and never staged into a work commit.
const StateDir = ".stagehand"

// DebugLogPath is where the debug log is written inside StateDir.
const DebugLogPath = StateDir + "/debug.log"

// ownStatePath reports whether p is the tool's own state rather than user
// work.
func ownStatePath(p string) bool {
	return p == StateDir || p == StateDir+"/" || strings.HasPrefix(p, StateDir+"/")
}

// Backend is the closed set of operations the orchestrator needs from a
// version-control system.
type Backend interface {
	Kind() Kind
	Root() string
	// CurrentBranch returns the active branch or bookmark name, falling
	// back to a default when none is active.
	CurrentBranch(ctx context.Context) (string, error)
	// IsClean reports whether the working tree has no uncommitted changes,
	// ignoring everything under StateDir.
	IsClean(ctx context.Context) (bool, error)
	// HasChanges is the complement of IsClean with the same exclusion.
	HasChanges(ctx context.Context) (bool, error)
	BranchExists(ctx context.Context, name string) (bool, error)
	CreateBranch(ctx context.Context, name string) error
	SwitchBranch(ctx context.Context, name string) error
	DeleteBranch(ctx context.Context, name string) error
	// CommitAll stages everything outside StateDir and commits with the
	// given subject.
	CommitAll(ctx context.Context, subject string) error
	// Push publishes the branch. force applies force-with-lease semantics
	// and must only be set for branches this tool created.
	Push(ctx context.Context, branch string, force bool) error
}

// Context is the working-branch state created by PrepareBranch and consumed
// at commit/push and cleanup time.
type Context struct {
	Backend        Backend
	Branch         string
	PreviousBranch string
	// Created is true when this tool created the branch, which is the only
	// case where a forced push is permitted.
	Created bool
}

// Detect probes for the supported backends in fixed priority order: jj
// first, then git. A colocated jj repository must be driven through jj.
func Detect(ctx context.Context, root string) (Backend, error) {
	if jjAvailable(ctx, root) {
		return &jjBackend{root: root}, nil
	}
	if gitAvailable(ctx, root) {
		return &gitBackend{root: root}, nil
	}
	return nil, ErrNoBackend
}

// Cleanup returns to the previous branch and deletes the created branch.
// Failures are logged by the backends and swallowed: branch cleanup is not
// part of the success contract of a run.
func Cleanup(ctx context.Context, vc *Context) {
	if vc == nil || vc.Backend == nil || !vc.Created {
		return
	}
	if vc.PreviousBranch != "" {
		_ = vc.Backend.SwitchBranch(ctx, vc.PreviousBranch)
	}
	_ = vc.Backend.DeleteBranch(ctx, vc.Branch)
}
