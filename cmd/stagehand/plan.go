package main

import (
	"github.com/chesapeakedev/stagehand/internal/db"
	"github.com/chesapeakedev/stagehand/internal/run"
	"github.com/spf13/cobra"
)

func planCmd() *cobra.Command {
	var planName string
	var keepDebug bool
	cmd := &cobra.Command{
		Use:   "plan <reference>",
		Short: "Write a plan for a work item without touching version control",
		Long: "Run only the plan phase for a work item. The plan file is left in the\n" +
			"plans directory for review; implement it with \"stagehand implement\".\n" +
			"If a plan with the chosen name already exists you are offered to\n" +
			"continue it instead of starting over.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, repoRoot, closeFn, err := openDB()
			if err != nil {
				return err
			}
			defer closeFn()
			cfg, err := loadConfig(repoRoot)
			if err != nil {
				return err
			}
			runner, err := buildRunner(cmd.Context(), repoRoot, cfg, db.NewStore(storeDB))
			if err != nil {
				return err
			}

			out, err := runner.Run(cmd.Context(), run.Request{
				Reference: args[0],
				PlanName:  planName,
				Mode:      run.ModeLocal,
				DoPlan:    true,
				KeepDebug: keepDebug,
			})
			if err != nil {
				return err
			}
			reportOutcome(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&planName, "plan", "", "plan name (prompted when omitted)")
	cmd.Flags().BoolVar(&keepDebug, "keep-debug", false, "keep prompts and agent output after the run")
	return cmd
}
