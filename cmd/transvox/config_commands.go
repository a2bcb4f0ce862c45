package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"transvox/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write a sample configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}
			expanded, err := config.ExpandPath(path)
			if err != nil {
				return err
			}
			if err := config.CreateSample(expanded); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", expanded)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "input_dir:   %s\n", cfg.Paths.InputDir)
			fmt.Fprintf(out, "output_dir:  %s\n", cfg.Paths.OutputDir)
			fmt.Fprintf(out, "log_dir:     %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "api_bind:    %s\n", cfg.Paths.APIBind)
			fmt.Fprintf(out, "python:      %s\n", cfg.Pipeline.Python)
			fmt.Fprintf(out, "script:      %s\n", cfg.Pipeline.Script)
			fmt.Fprintf(out, "engines:     %s / %s\n", cfg.Pipeline.TranscribeEngine, cfg.Pipeline.TTSEngine)
			fmt.Fprintf(out, "job_timeout: %ds\n", cfg.Workflow.JobTimeout)
			return nil
		},
	})

	return cmd
}
