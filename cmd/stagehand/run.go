package main

import (
	"github.com/chesapeakedev/stagehand/internal/db"
	"github.com/chesapeakedev/stagehand/internal/run"
	"github.com/spf13/cobra"
)

func runWorkflowCmd() *cobra.Command {
	var planName string
	var keepDebug bool
	cmd := &cobra.Command{
		Use:   "run <reference>",
		Short: "Run the full workflow: branch, plan, implement, commit, push, PR",
		Long: "Run the full workflow for a work item. The reference is an issue number,\n" +
			"a GitHub issue or pull request URL, or a path to a local markdown document.",
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
				Reference:   args[0],
				PlanName:    planName,
				Mode:        run.ModeFull,
				DoPlan:      true,
				DoImplement: true,
				KeepDebug:   keepDebug,
			})
			if err != nil {
				return err
			}
			reportOutcome(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&planName, "plan", "", "plan name (defaults to the branch name)")
	cmd.Flags().BoolVar(&keepDebug, "keep-debug", false, "keep prompts and agent output after the run")
	return cmd
}
