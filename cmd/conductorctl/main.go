// Command conductorctl is the administrative CLI for the orchestrator:
// it operates directly on the store and worktree manager, independent
// of a running daemon, for cleanup sweeps and job inspection.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conductor-oss/conductor/internal/cleanup"
	"github.com/conductor-oss/conductor/internal/config"
	"github.com/conductor-oss/conductor/internal/store"
	"github.com/conductor-oss/conductor/internal/worktree"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "conductorctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "conductorctl",
		Short:         "Administrative CLI for the conductor job orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "conductor.toml", "path to the TOML config file")

	root.AddCommand(newCleanupCmd(&configPath))
	root.AddCommand(newJobsCmd(&configPath))
	return root
}

func openSweeper(configPath string) (*cleanup.Sweeper, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	wm, err := worktree.New(cfg.WorktreeBaseDir)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("init worktree manager: %w", err)
	}
	return cleanup.New(st, wm), func() { st.Close() }, nil
}

func newCleanupCmd(configPath *string) *cobra.Command {
	var (
		statuses   []string
		maxAgeDays int
		assumeYes  bool
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete terminal jobs and prune orphaned worktrees/repo caches",
		RunE: func(cmd *cobra.Command, args []string) error {
			sweeper, closeFn, err := openSweeper(*configPath)
			if err != nil {
				return err
			}
			defer closeFn()

			filter := cleanup.Filter{MaxAgeDays: maxAgeDays}
			for _, s := range statuses {
				filter.Statuses = append(filter.Statuses, store.Status(s))
			}

			ctx := context.Background()
			plan, err := sweeper.Plan(ctx, filter)
			if err != nil {
				return fmt.Errorf("plan sweep: %w", err)
			}

			fmt.Printf("plan: %d jobs, %d worktrees, %d repo caches\n",
				len(plan.Jobs), len(plan.Worktrees), len(plan.RepoCacheDirs))
			if dryRun || plan.IsEmpty() {
				return nil
			}

			ok, err := cleanup.Confirm(plan, assumeYes)
			if err != nil {
				return fmt.Errorf("confirm: %w", err)
			}
			if !ok {
				fmt.Println("aborted")
				return nil
			}

			result, err := sweeper.Run(ctx, filter)
			if err != nil {
				return fmt.Errorf("run sweep: %w", err)
			}
			fmt.Printf("removed %d jobs, %d worktrees, %d repo caches\n",
				len(result.JobsDeleted), len(result.WorktreesRemoved), len(result.RepoCachesPruned))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "job statuses to include (default: done,failed,cancelled)")
	cmd.Flags().IntVar(&maxAgeDays, "max-age-days", 0, "only include jobs created at least this many days ago")
	cmd.Flags().BoolVar(&assumeYes, "yes", false, "skip the interactive confirmation prompt")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only print the plan, never delete")
	return cmd
}

func newJobsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Inspect jobs"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List jobs as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			st, err := store.Open(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			jobs, err := st.ListJobs(context.Background(), store.ListFilter{})
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}
			return json.NewEncoder(os.Stdout).Encode(jobs)
		},
	}

	cmd.AddCommand(list)
	return cmd
}
