package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/stockbook/cmd/stockctl/cli"
	"github.com/odyssey-erp/stockbook/jobs"
)

func newJobsCmd() *cobra.Command {
	var redisAddr string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger upload cleanup jobs",
	}
	cmd.PersistentFlags().StringVar(&redisAddr, "redis", envOr("REDIS_ADDR", "127.0.0.1:6379"), "redis address")

	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Enqueue an immediate sweep of stale uploads",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := cli.NewJobsCLI(redisAddr)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			id, err := c.Trigger(cmd.Context(), jobs.TaskUploadSweep, "")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (%s)\n", jobs.TaskUploadSweep, id)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup PATH",
		Short: "Enqueue deletion of one uploaded file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cli.NewJobsCLI(redisAddr)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			if _, err := c.Trigger(cmd.Context(), jobs.TaskUploadCleanup, args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s for %s\n", jobs.TaskUploadCleanup, args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show default queue counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := cli.NewJobsCLI(redisAddr)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			stats, err := c.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
			return nil
		},
	})

	return cmd
}
