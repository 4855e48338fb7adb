package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"crisisbench/internal/catalog"
	"crisisbench/internal/infer"
	"crisisbench/internal/lifecycle"
	"crisisbench/internal/runner"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Load each cataloged model in turn and run the question battery",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := a.cfg

			models, err := catalog.LoadModels(cfg.ModelsFile)
			if err != nil {
				return fmt.Errorf("load model catalog: %w", err)
			}
			questions, err := catalog.LoadQuestions(cfg.QuestionsFile)
			if err != nil {
				return fmt.Errorf("load question battery: %w", err)
			}
			a.log.Info().Int("models", len(models)).Int("questions", questions.Len()).
				Str("inference_url", cfg.InferenceURL).Msg("batch configured")

			client := infer.New(cfg.InferenceURL, cfg.AskTimeout(), a.log)
			ctrl := lifecycle.NewController(
				lifecycle.NewCommander(cfg.LMSPath), client,
				cfg.LoadTimeout(), cfg.VerifyBackoff(), a.log)

			stop := a.serveStatus()
			defer stop()

			r := runner.New(models, questions, ctrl, client, cfg.ResultsDir, a.tracker, a.log)
			summary, err := r.Run(ctx)
			if err != nil {
				return err
			}
			if summary.Failed > 0 {
				a.log.Warn().Int("failed", summary.Failed).
					Msg("some models did not complete; see run records")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "batch complete: %d succeeded, %d failed (%s)\n",
				summary.Succeeded, summary.Failed, summary.BatchDir)
			return nil
		},
	}
}
