package main

import (
	"context"
	"fmt"

	"github.com/cuemby/backfill/pkg/plugin"
	"github.com/cuemby/backfill/pkg/priority"
	"github.com/cuemby/backfill/pkg/scheduler"
	"github.com/cuemby/backfill/pkg/types"
	"github.com/spf13/cobra"
)

var priorityCmd = &cobra.Command{
	Use:   "priority",
	Short: "Compute the initial priority of one job",
	Long: `Load the plugin, compute the initial priority of a single job
through the predictor and unload it again.

Examples:
  # Ask the predictor about a job script
  backfilld priority --job-id 42 --script /jobs/a.sh --last 1000`,
	RunE: runPriority,
}

func init() {
	priorityCmd.Flags().Uint32("job-id", 0, "Job ID")
	priorityCmd.Flags().String("script", "", "Job script path")
	priorityCmd.Flags().StringSlice("argv", nil, "Job arguments")
	priorityCmd.Flags().Uint32("last", 0, "Last assigned priority")
	_ = priorityCmd.MarkFlagRequired("last")
}

func runPriority(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	jobID, _ := cmd.Flags().GetUint32("job-id")
	script, _ := cmd.Flags().GetString("script")
	argv, _ := cmd.Flags().GetStringSlice("argv")
	last, _ := cmd.Flags().GetUint32("last")

	// No backfill work in a one-shot run
	idle := scheduler.PassFunc(func(context.Context) error { return nil })

	p, err := plugin.New(cfg, idle, priority.Identity)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.Init(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
	}

	job := &types.Job{ID: jobID, ScriptPath: script, Argv: argv}
	result := p.InitialPriority(types.Priority(last), job)

	if err := p.Fini(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d\n", result)
	return nil
}
