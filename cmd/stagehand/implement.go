package main

import (
	"github.com/chesapeakedev/stagehand/internal/db"
	"github.com/chesapeakedev/stagehand/internal/run"
	"github.com/spf13/cobra"
)

func implementCmd() *cobra.Command {
	var keepDebug bool
	cmd := &cobra.Command{
		Use:   "implement <plan-name>",
		Short: "Implement an existing plan, resuming where the last run left off",
		Long: "Run only the implement phase against an existing plan file. The plan is\n" +
			"the checkpoint: re-running this command continues with whatever criteria\n" +
			"are still unchecked. Changes stay in the working tree.",
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
				PlanName:    args[0],
				Mode:        run.ModeLocal,
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
	cmd.Flags().BoolVar(&keepDebug, "keep-debug", false, "keep prompts and agent output after the run")
	return cmd
}
