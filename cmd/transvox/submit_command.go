package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"transvox/internal/api"
	"transvox/internal/config"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		sourceLang       string
		targetLang       string
		transcribeEngine string
		ttsEngine        string
		noDiarization    bool
		noSeparation     bool
		speedFactor      float64
		follow           bool
	)

	cmd := &cobra.Command{
		Use:   "submit <video>",
		Short: "Submit a video for dubbing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoPath, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}

			req := api.StartRequest{
				VideoPath:        videoPath,
				SourceLang:       sourceLang,
				TargetLang:       targetLang,
				TranscribeEngine: transcribeEngine,
				TTSEngine:        ttsEngine,
				SpeedFactor:      speedFactor,
			}
			if noDiarization {
				disabled := false
				req.Diarization = &disabled
			}
			if noSeparation {
				disabled := false
				req.Separation = &disabled
			}

			resp, err := client.Start(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s queued\n", resp.Job.ID)

			if follow {
				return followJob(cmd, client, resp.Job.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceLang, "source-lang", "", "Source language (default: auto-detect)")
	cmd.Flags().StringVar(&targetLang, "target-lang", "", "Target dubbing language (required)")
	cmd.Flags().StringVar(&transcribeEngine, "engine", "", "Transcription engine")
	cmd.Flags().StringVar(&ttsEngine, "tts-engine", "", "TTS engine")
	cmd.Flags().BoolVar(&noDiarization, "no-diarization", false, "Disable speaker diarization")
	cmd.Flags().BoolVar(&noSeparation, "no-separation", false, "Disable vocal separation")
	cmd.Flags().Float64Var(&speedFactor, "speed-factor", 0, "TTS speed factor")
	cmd.Flags().BoolVar(&follow, "follow", false, "Poll status until the job finishes")
	_ = cmd.MarkFlagRequired("target-lang")

	return cmd
}
