package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chesapeakedev/stagehand/internal/agent"
	"github.com/chesapeakedev/stagehand/internal/config"
	"github.com/chesapeakedev/stagehand/internal/db"
	"github.com/chesapeakedev/stagehand/internal/run"
	"github.com/chesapeakedev/stagehand/internal/term"
	"github.com/chesapeakedev/stagehand/internal/workitem"
	"github.com/spf13/viper"
)

func openDB() (*sql.DB, string, func(), error) {
	repoRoot, err := os.Getwd()
	if err != nil {
		return nil, "", func() {}, err
	}
	stagehandDir := filepath.Join(repoRoot, ".stagehand")
	if err := os.MkdirAll(stagehandDir, 0o755); err != nil {
		return nil, "", func() {}, err
	}
	dbPath := filepath.Join(stagehandDir, "stagehand.db")
	storeDB, err := db.Open(dbPath)
	if err != nil {
		return nil, "", func() {}, err
	}
	return storeDB, repoRoot, func() { _ = storeDB.Close() }, nil
}

func loadConfig(repoRoot string) (config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		path = filepath.Join(".stagehand", "config.json")
	}
	return config.Load(path, repoRoot)
}

func chooseDecider() term.Decider {
	if yes {
		return term.NonInteractive{}
	}
	return term.Interactive{}
}

func buildRunner(ctx context.Context, repoRoot string, cfg config.Config, store *db.Store) (*run.Runner, error) {
	agentRunner, err := agent.NewExecRunner(cfg.Agent, cfg.Profiles, repoRoot)
	if err != nil {
		return nil, fmt.Errorf("init agent: %w", err)
	}
	source := workitem.NewGitHubSource(ctx)
	return run.New(repoRoot, cfg, store, agentRunner, source, chooseDecider()), nil
}

func reportOutcome(out run.Outcome) {
	switch out.Status {
	case "complete":
		fmt.Printf("All %d acceptance criteria complete.\n", out.Completion.Total)
	case "incomplete":
		fmt.Printf("%d of %d acceptance criteria complete.\n", out.Completion.Completed, out.Completion.Total)
		for _, label := range out.Completion.Incomplete {
			fmt.Printf("  - [ ] %s\n", label)
		}
		fmt.Printf("Resume with: %s\n", out.ResumeCommand)
	case "planned":
		fmt.Printf("Plan written to %s.\n", out.PlanPath)
		fmt.Printf("Implement with: %s\n", out.ResumeCommand)
	}
	if out.PullRequestURL != "" {
		fmt.Printf("Pull request: %s\n", out.PullRequestURL)
	}
}
