package workitem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Source is the boundary to the tracked work-item system.
type Source interface {
	// Issue fetches an issue as a work item.
	Issue(ctx context.Context, owner, repo string, number int) (*WorkItem, error)
	// PullRequestFeedback fetches a PR with its review comments assembled
	// into the work item body.
	PullRequestFeedback(ctx context.Context, owner, repo string, number int) (*WorkItem, error)
	// UpdateBody replaces the remote description of the item.
	UpdateBody(ctx context.Context, item *WorkItem, body string) error
	// CreatePullRequest opens a PR and returns its URL.
	CreatePullRequest(ctx context.Context, owner, repo, head, base, title, body string) (string, error)
}

// Resolver turns references into work items.
type Resolver struct {
	source Source
	// originOwner/originRepo back-fill owner/repo for bare-number
	// references, typically derived from the origin remote.
	originOwner string
	originRepo  string
}

// NewResolver creates a resolver. origin may be empty when only local
// documents are used.
func NewResolver(source Source, originOwner, originRepo string) *Resolver {
	return &Resolver{source: source, originOwner: originOwner, originRepo: originRepo}
}

// Resolve fetches the work item behind a reference. Local paths are read
// from disk; tracked references go through the source.
func (r *Resolver) Resolve(ctx context.Context, ref Reference) (*WorkItem, error) {
	if ref.IsLocal() {
		return resolveLocal(ref.Path)
	}

	owner, repo := ref.Owner, ref.Repo
	if owner == "" {
		owner, repo = r.originOwner, r.originRepo
	}
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("cannot resolve #%d: no repository coordinates (not in a repo with a recognized origin?)", ref.Number)
	}
	if r.source == nil {
		return nil, fmt.Errorf("cannot resolve #%d: work-item source unavailable", ref.Number)
	}

	if ref.IsPR {
		return r.source.PullRequestFeedback(ctx, owner, repo, ref.Number)
	}
	return r.source.Issue(ctx, owner, repo, ref.Number)
}

func resolveLocal(path string) (*WorkItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read work item document: %w", err)
	}
	body := string(data)
	title := firstHeading(body)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &WorkItem{
		Title:     title,
		Body:      body,
		LocalPath: path,
	}, nil
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

var remoteRe = regexp.MustCompile(`(?:github\.com[:/])([^/]+)/([^/\s]+?)(?:\.git)?$`)

// ParseOriginURL extracts owner/repo coordinates from a git remote URL,
// supporting both SSH and HTTPS forms.
func ParseOriginURL(url string) (owner, repo string, ok bool) {
	m := remoteRe.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
