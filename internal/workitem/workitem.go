// Package workitem resolves the opaque user reference that starts a run
// (issue number, issue/PR URL, or local document path) into an immutable
// WorkItem.
package workitem

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// WorkItem is a resolved unit of work, immutable once fetched and scoped to
// a single orchestrator run.
type WorkItem struct {
	Number int
	Title  string
	Body   string
	Labels []string
	Owner  string
	Repo   string
	// LocalPath is set instead of Owner/Repo/Number when the work item is a
	// local document.
	LocalPath string
}

// IsLocal reports whether the item came from a local document rather than
// the tracked system.
func (w *WorkItem) IsLocal() bool {
	return w.LocalPath != ""
}

// Reference is a classified user input. Exactly one of the tracked fields
// (Number) or Path is populated.
type Reference struct {
	Owner  string
	Repo   string
	Number int
	IsPR   bool
	Path   string
}

// IsLocal reports whether the reference points at a local document.
func (r Reference) IsLocal() bool { return r.Path != "" }

var issueURLRe = regexp.MustCompile(`^https?://github\.com/([^/]+)/([^/]+)/(issues|pull)/(\d+)/?$`)

// ParseReference classifies raw input as a tracked reference (bare number,
// "#number", or full issue/PR URL) or a local document path. Anything that
// is neither a number nor a URL is treated as a path; existence is checked
// at resolve time.
func ParseReference(raw string) (Reference, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Reference{}, fmt.Errorf("empty work item reference")
	}

	if m := issueURLRe.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.Atoi(m[4])
		if err != nil {
			return Reference{}, fmt.Errorf("parse item number from %q: %w", trimmed, err)
		}
		return Reference{Owner: m[1], Repo: m[2], Number: n, IsPR: m[3] == "pull"}, nil
	}

	numeric := strings.TrimPrefix(trimmed, "#")
	if n, err := strconv.Atoi(numeric); err == nil && n > 0 {
		return Reference{Number: n}, nil
	}

	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return Reference{}, fmt.Errorf("unrecognized work item URL: %s", trimmed)
	}

	return Reference{Path: trimmed}, nil
}
