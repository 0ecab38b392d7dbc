package workitem

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// GitHubSource implements Source against the GitHub REST API.
type GitHubSource struct {
	client *github.Client
}

// NewGitHubSource builds a GitHub client. It authenticates with
// GITHUB_TOKEN (or GH_TOKEN) when set and falls back to anonymous access
// for public repositories.
func NewGitHubSource(ctx context.Context) *GitHubSource {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		token = os.Getenv("GH_TOKEN")
	}
	if token == "" {
		log.Debug().Msg("no github token in environment, using anonymous client")
		return &GitHubSource{client: github.NewClient(nil)}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &GitHubSource{client: github.NewClient(oauth2.NewClient(ctx, ts))}
}

func (s *GitHubSource) Issue(ctx context.Context, owner, repo string, number int) (*WorkItem, error) {
	issue, _, err := s.client.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("fetch issue %s/%s#%d: %w", owner, repo, number, err)
	}
	item := &WorkItem{
		Number: number,
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		Owner:  owner,
		Repo:   repo,
	}
	for _, l := range issue.Labels {
		item.Labels = append(item.Labels, l.GetName())
	}
	return item, nil
}

func (s *GitHubSource) PullRequestFeedback(ctx context.Context, owner, repo string, number int) (*WorkItem, error) {
	pr, _, err := s.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("fetch pull request %s/%s#%d: %w", owner, repo, number, err)
	}

	var b strings.Builder
	b.WriteString(pr.GetBody())
	b.WriteString("\n")

	comments, _, err := s.client.Issues.ListComments(ctx, owner, repo, number, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch pull request comments: %w", err)
	}
	for _, c := range comments {
		fmt.Fprintf(&b, "\n## Comment by %s\n\n%s\n", c.GetUser().GetLogin(), c.GetBody())
	}

	reviews, _, err := s.client.PullRequests.ListReviews(ctx, owner, repo, number, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch pull request reviews: %w", err)
	}
	for _, rv := range reviews {
		if strings.TrimSpace(rv.GetBody()) == "" {
			continue
		}
		fmt.Fprintf(&b, "\n## Review by %s (%s)\n\n%s\n", rv.GetUser().GetLogin(), rv.GetState(), rv.GetBody())
	}

	item := &WorkItem{
		Number: number,
		Title:  pr.GetTitle(),
		Body:   b.String(),
		Owner:  owner,
		Repo:   repo,
	}
	for _, l := range pr.Labels {
		item.Labels = append(item.Labels, l.GetName())
	}
	return item, nil
}

func (s *GitHubSource) UpdateBody(ctx context.Context, item *WorkItem, body string) error {
	req := &github.IssueRequest{Body: github.String(body)}
	if _, _, err := s.client.Issues.Edit(ctx, item.Owner, item.Repo, item.Number, req); err != nil {
		return fmt.Errorf("update issue body %s/%s#%d: %w", item.Owner, item.Repo, item.Number, err)
	}
	return nil
}

func (s *GitHubSource) CreatePullRequest(ctx context.Context, owner, repo, head, base, title, body string) (string, error) {
	pr, _, err := s.client.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.String(title),
		Head:  github.String(head),
		Base:  github.String(base),
		Body:  github.String(body),
	})
	if err != nil {
		return "", fmt.Errorf("create pull request: %w", err)
	}
	return pr.GetHTMLURL(), nil
}
