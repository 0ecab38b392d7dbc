package main

import (
	"fmt"
	"path/filepath"

	"github.com/chesapeakedev/stagehand/internal/logging"
	"github.com/chesapeakedev/stagehand/internal/vcs"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	debug   bool
	yes     bool
	rootCmd = &cobra.Command{
		Use:   "stagehand",
		Short: "stagehand drives a coding agent through plan and implement phases",
		Long: "stagehand turns a work item (an issue, a PR, or a local document) into a plan\n" +
			"file with an acceptance-criteria checklist, then drives an external coding\n" +
			"agent to implement it, tracking completion through the checklist.",
		SilenceUsage: true,
	}
)

// Execute runs the root command.
func Execute() error {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", filepath.Join(".stagehand", "config.json"), "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&yes, "yes", "y", false, "answer every prompt with its default")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		return fmt.Errorf("bind config flag: %w", err)
	}
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		logging.Init(debug, vcs.DebugLogPath)
	}
	rootCmd.AddCommand(runWorkflowCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(implementCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(pruneCmd())
	rootCmd.AddCommand(uiCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	return rootCmd.Execute()
}
