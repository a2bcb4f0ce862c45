package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"transvox/internal/api"
	"transvox/internal/jobs"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if follow {
				return followJob(cmd, client, args[0])
			}
			job, err := client.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printJob(cmd, job)
			return nil
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "Poll status until the job finishes")
	return cmd
}

func printJob(cmd *cobra.Command, job api.JobView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:      %s\n", job.ID)
	fmt.Fprintf(out, "Status:   %s\n", job.Status)
	if job.Stage != "" {
		fmt.Fprintf(out, "Stage:    %s (%d%%)\n", job.Stage, job.Percent)
	}
	fmt.Fprintf(out, "Video:    %s\n", job.VideoPath)
	if job.Error != nil {
		fmt.Fprintf(out, "Error:    [%s] %s\n", job.Error.Kind, job.Error.Message)
	}
	if job.Result != nil && job.Result.FinalVideo != "" {
		fmt.Fprintf(out, "Dubbed:   %s\n", job.Result.FinalVideo)
	}
}

// followJob polls until the job reaches a terminal state, printing stage
// changes as they happen.
func followJob(cmd *cobra.Command, client *apiClient, jobID string) error {
	out := cmd.OutOrStdout()
	lastStage := ""
	lastPercent := -1

	for {
		job, err := client.Status(cmd.Context(), jobID)
		if err != nil {
			return err
		}
		if job.Stage != lastStage || job.Percent != lastPercent {
			fmt.Fprintf(out, "%3d%%  %s\n", job.Percent, job.Stage)
			lastStage = job.Stage
			lastPercent = job.Percent
		}
		if status, ok := jobs.ParseStatus(job.Status); ok && status.IsTerminal() {
			printJob(cmd, job)
			if status != jobs.StatusSucceeded {
				return fmt.Errorf("job %s %s", jobID, job.Status)
			}
			return nil
		}

		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-time.After(time.Second):
		}
	}
}
