package vcs

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/chesapeakedev/stagehand/internal/term"
	"github.com/chesapeakedev/stagehand/internal/workitem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Fix Login Bug!!", "fix-login-bug"},
		{"  spaces   everywhere  ", "spaces-everywhere"},
		{"already-slugged", "already-slugged"},
		{"___", ""},
		{"CamelCase And 123 Numbers", "camelcase-and-123-numbers"},
	}
	for _, tc := range tests {
		if got := Slug(tc.in); got != tc.want {
			t.Fatalf("Slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSlug_Truncation(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("verylong ", 20)
	slug := Slug(long)
	assert.LessOrEqual(t, len(slug), 50)
	assert.False(t, strings.HasSuffix(slug, "-"))
	assert.False(t, strings.Contains(slug, "--"))
}

func TestBranchName(t *testing.T) {
	t.Parallel()

	item := &workitem.WorkItem{Number: 42, Title: "Fix Login Bug!!"}
	name := BranchName(item)
	assert.Equal(t, "stagehand/42-fix-login-bug", name)

	for _, r := range strings.TrimPrefix(name, BranchPrefix) {
		valid := r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-'
		if !valid {
			t.Fatalf("branch name contains invalid rune %q", r)
		}
	}
}

func TestBranchName_EmptySlug(t *testing.T) {
	t.Parallel()

	item := &workitem.WorkItem{Number: 9, Title: "!!!"}
	assert.Equal(t, "stagehand/9", BranchName(item))
}

func TestCommitSubject(t *testing.T) {
	t.Parallel()

	short := &workitem.WorkItem{Number: 42, Title: "Fix login"}
	assert.Equal(t, "#42 Fix login", CommitSubject(short))

	long := &workitem.WorkItem{Number: 42, Title: strings.Repeat("long title ", 10)}
	subject := CommitSubject(long)
	assert.Len(t, subject, 50)
	assert.True(t, strings.HasSuffix(subject, "..."))
}

func TestCommitSubject_MultibyteTitle(t *testing.T) {
	t.Parallel()

	item := &workitem.WorkItem{Number: 7, Title: strings.Repeat("héllø wörld ", 10)}
	subject := CommitSubject(item)
	assert.True(t, utf8.ValidString(subject), "truncation must not split a rune")
	assert.Equal(t, 50, utf8.RuneCountInString(subject))
	assert.True(t, strings.HasSuffix(subject, "..."))
}

func TestPrepareBranch_CreatesDeterministicBranch(t *testing.T) {
	t.Parallel()

	repo := setupGitRepo(t)
	backend := &gitBackend{root: repo}
	item := &workitem.WorkItem{Number: 7, Title: "Add Feature"}

	decider := &term.Scripted{Confirms: []bool{false}}
	vc, err := PrepareBranch(context.Background(), backend, item, decider)
	require.NoError(t, err)
	assert.Equal(t, "stagehand/7-add-feature", vc.Branch)
	assert.True(t, vc.Created)

	current, err := backend.CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stagehand/7-add-feature", current)
}

func TestPrepareBranch_ExistingBranchIsFatal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupGitRepo(t)
	backend := &gitBackend{root: repo}
	item := &workitem.WorkItem{Number: 7, Title: "Add Feature"}

	require.NoError(t, runCmdErr(ctx, repo, "git", "branch", "stagehand/7-add-feature"))

	decider := &term.Scripted{Confirms: []bool{false}}
	_, err := PrepareBranch(ctx, backend, item, decider)
	require.ErrorIs(t, err, ErrBranchExists)
}

func TestPrepareBranch_ReuseCurrent(t *testing.T) {
	t.Parallel()

	repo := setupGitRepo(t)
	backend := &gitBackend{root: repo}
	item := &workitem.WorkItem{Number: 7, Title: "Add Feature"}

	before, err := backend.CurrentBranch(context.Background())
	require.NoError(t, err)

	decider := &term.Scripted{Confirms: []bool{true}}
	vc, err := PrepareBranch(context.Background(), backend, item, decider)
	require.NoError(t, err)
	assert.Equal(t, before, vc.Branch)
	assert.False(t, vc.Created)
}
