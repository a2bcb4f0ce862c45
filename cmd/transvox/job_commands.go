package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <job-id>",
		Short: "Cancel a queued or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.Stop(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			switch job.Status {
			case "cancelled":
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s cancelled\n", job.ID)
			case "running":
				fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for job %s\n", job.ID)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s already %s\n", job.ID, job.Status)
			}
			return nil
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <job-id>",
		Short: "Remove a finished job and its history record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.Clear(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s cleared\n", args[0])
			return nil
		},
	}
}

func newWhoamiCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity jobs are submitted under",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			who, err := client.Whoami(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User: %s\n", who.UserID)
			fmt.Fprintf(out, "Queued jobs: %d\n", who.QueueDepth)
			if who.LatestJob != nil {
				fmt.Fprintf(out, "Latest job: %s (%s)\n", who.LatestJob.ID, who.LatestJob.Status)
			}
			return nil
		},
	}
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check daemon liveness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			health, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}
			if health.Version != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", health.Status, health.Version)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), health.Status)
			}
			return nil
		},
	}
}
