package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize stagehand in the current repository",
		Long:  "Create the .stagehand directory with a default config, default permission profiles, and the plans directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			return scaffold(repoRoot)
		},
	}
}

func scaffold(repoRoot string) error {
	stagehandDir := filepath.Join(repoRoot, ".stagehand")
	log.Info().Str("dir", stagehandDir).Msg("creating stagehand directory")
	for _, dir := range []string{
		filepath.Join(stagehandDir, "runs"),
		filepath.Join(stagehandDir, "locks"),
		filepath.Join(stagehandDir, "profiles"),
		filepath.Join(repoRoot, ".plans"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(stagehandDir, "config.json")
	if _, err := os.Stat(configPath); err == nil {
		log.Info().Msg("config.json already exists, skipping")
	} else {
		log.Info().Str("path", configPath).Msg("installing default config")
		defaultConfig := map[string]any{
			"agent": map[string]any{
				"type":    "claude",
				"timeout": "10m",
			},
			"retention": map[string]any{
				"keep_last": 50,
				"keep_days": 30,
			},
		}
		if err := writeJSON(configPath, defaultConfig); err != nil {
			return err
		}
	}

	// The plan profile forbids edits outside the plans directory; the
	// implement profile opens the workspace up.
	planProfile := filepath.Join(stagehandDir, "profiles", "plan.json")
	if _, err := os.Stat(planProfile); os.IsNotExist(err) {
		if err := writeJSON(planProfile, map[string]any{
			"permissions": map[string]any{
				"allow": []string{"Read", "Edit(.plans/**)", "Write(.plans/**)"},
				"deny":  []string{"Bash(git push:*)"},
			},
		}); err != nil {
			return err
		}
	}
	implementProfile := filepath.Join(stagehandDir, "profiles", "implement.json")
	if _, err := os.Stat(implementProfile); os.IsNotExist(err) {
		if err := writeJSON(implementProfile, map[string]any{
			"permissions": map[string]any{
				"allow": []string{"Read", "Edit", "Write", "Bash"},
				"deny":  []string{"Bash(git push:*)"},
			},
		}); err != nil {
			return err
		}
	}

	fmt.Println("stagehand initialized successfully")
	return nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
