package vcs

import (
	"context"
	"fmt"
	"strings"

	"github.com/chesapeakedev/stagehand/internal/term"
	"github.com/chesapeakedev/stagehand/internal/workitem"
	"github.com/rs/zerolog/log"
)

// BranchPrefix is prepended to every branch this tool creates.
const BranchPrefix = "stagehand/"

const maxSlugLen = 50

// maxSubjectLen caps commit subjects, ellipsis included.
const maxSubjectLen = 50

// Slug lowercases s, collapses every run of non-alphanumerics into a single
// hyphen, trims edge hyphens, and truncates to maxSlugLen.
func Slug(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "-")
	}
	return slug
}

// BranchName derives the deterministic branch name for a work item.
func BranchName(item *workitem.WorkItem) string {
	slug := Slug(item.Title)
	if slug == "" {
		return fmt.Sprintf("%s%d", BranchPrefix, item.Number)
	}
	return fmt.Sprintf("%s%d-%s", BranchPrefix, item.Number, slug)
}

// CommitSubject builds the "#<id> <title>" commit subject, hard-capped at
// maxSubjectLen with an ellipsis marker.
func CommitSubject(item *workitem.WorkItem) string {
	subject := fmt.Sprintf("#%d %s", item.Number, item.Title)
	runes := []rune(subject)
	if len(runes) <= maxSubjectLen {
		return subject
	}
	// Truncate by runes so a multibyte title never gets split mid-character.
	return string(runes[:maxSubjectLen-3]) + "..."
}

// PrepareBranch offers to reuse the current branch or creates the
// deterministic work-item branch. Creating a branch that already exists is
// fatal: a stale branch from an earlier run must be dealt with explicitly,
// never silently reused.
func PrepareBranch(ctx context.Context, b Backend, item *workitem.WorkItem, decider term.Decider) (*Context, error) {
	current, err := b.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}

	name := BranchName(item)
	reuse, err := decider.Confirm(fmt.Sprintf("Stay on branch %q instead of creating %q?", current, name), false)
	if err != nil {
		return nil, err
	}
	if reuse {
		log.Info().Str("branch", current).Msg("reusing current branch")
		return &Context{Backend: b, Branch: current, PreviousBranch: current}, nil
	}

	exists, err := b.BranchExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrBranchExists, name)
	}
	if err := b.CreateBranch(ctx, name); err != nil {
		return nil, err
	}
	log.Info().Str("branch", name).Msg("created working branch")
	return &Context{Backend: b, Branch: name, PreviousBranch: current, Created: true}, nil
}
