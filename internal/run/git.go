package run

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/chesapeakedev/stagehand/internal/workitem"
	"github.com/rs/zerolog/log"
)

// originOwner and originRepo backfill owner/repo coordinates for bare issue
// numbers from the git origin remote. Both return empty when no remote is
// configured, which only matters when the reference needs one.
func originOwner(ctx context.Context, root string) string {
	owner, _ := originCoords(ctx, root)
	return owner
}

func originRepo(ctx context.Context, root string) string {
	_, repo := originCoords(ctx, root)
	return repo
}

func originCoords(ctx context.Context, root string) (string, string) {
	cmd := exec.CommandContext(ctx, "git", "remote", "get-url", "origin")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return "", ""
	}
	owner, repo, ok := workitem.ParseOriginURL(strings.TrimSpace(string(out)))
	if !ok {
		return "", ""
	}
	return owner, repo
}

// runShell executes a configured command line through the shell. Used for
// the best-effort lint and artifact steps.
func runShell(ctx context.Context, dir, command string) error {
	log.Debug().Str("dir", dir).Str("cmd", command).Msg("running command")
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
