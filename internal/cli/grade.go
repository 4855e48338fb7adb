package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"crisisbench/internal/aggregate"
	"crisisbench/internal/judge"
	"crisisbench/internal/report"
	"crisisbench/internal/runner"
)

func newGradeCmd(a *app) *cobra.Command {
	var (
		batchDir      string
		aggregateOnly bool
		mock          bool
		limit         int
		outputDir     string
	)

	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Aggregate a batch by question and grade it with the evaluator model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := a.cfg

			dir := batchDir
			if dir == "" {
				var err error
				dir, err = runner.LatestBatchDir(cfg.ResultsDir)
				if err != nil {
					return err
				}
				a.log.Info().Str("batch", dir).Msg("no batch given, grading the newest one")
			}

			set, err := aggregate.FromDir(dir)
			if err != nil {
				return err
			}
			a.log.Info().Int("files", set.Files()).Int("questions", set.Len()).Msg("batch aggregated")
			for _, c := range set.SentinelCounts() {
				ev := a.log.Info()
				if c.Sentinels > 0 {
					ev = a.log.Warn()
				}
				ev.Str("model", c.Model).Int("failed", c.Sentinels).Int("total", c.Total).
					Msg("answer completeness")
			}

			if outputDir == "" {
				outputDir = cfg.EvalOutputDir
			}
			if aggregateOnly {
				if err := os.MkdirAll(outputDir, 0o755); err != nil {
					return fmt.Errorf("create output dir: %w", err)
				}
				path := filepath.Join(outputDir, "aggregated_answers.json")
				if err := set.Save(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "aggregated answers saved to %s\n", path)
				return nil
			}

			var grader judge.Grader
			if mock {
				grader = judge.Mock{}
			} else {
				if cfg.GeminiAPIKey == "" {
					return fmt.Errorf("GEMINI_API_KEY is not set; use --mock or --aggregate-only")
				}
				backend, err := judge.NewGeminiBackend(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
				if err != nil {
					return err
				}
				// The timeout bounds each evaluator attempt, not the whole
				// retry cycle.
				grader = judge.New(backend, cfg.GradeTimeout(), a.log)
			}

			stop := a.serveStatus()
			defer stop()

			asm, err := report.NewAssembler(filepath.Join(outputDir, report.Filename(time.Now())))
			if err != nil {
				return err
			}
			bundles := set.Bundles()
			if limit > 0 && limit < len(bundles) {
				a.log.Info().Int("limit", limit).Msg("limiting questions for this run")
				bundles = bundles[:limit]
			}
			a.tracker.StartGrading(len(bundles))

			for i, b := range bundles {
				if err := ctx.Err(); err != nil {
					a.log.Warn().Str("report", asm.Path()).Int("graded", asm.Len()).
						Msg("interrupted; partial report kept")
					return err
				}
				a.log.Info().Int("n", i+1).Int("total", len(bundles)).
					Str("subcategory", b.Subcategory).Str("question", truncate(b.Question, 70)).
					Msg("grading question")

				result := grader.Grade(ctx, b.Question, b.Answers)

				if err := asm.Append(b.Category, b.Subcategory, b.Question, result); err != nil {
					return err
				}
				a.tracker.QuestionDone()
			}
			a.tracker.Finish()

			fmt.Fprintf(cmd.OutOrStdout(), "evaluation complete: %d questions, report at %s\n",
				asm.Len(), asm.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&batchDir, "batch", "", "Batch directory to grade (default: newest under the results dir)")
	cmd.Flags().BoolVar(&aggregateOnly, "aggregate-only", false, "Only write aggregated_answers.json, no grading")
	cmd.Flags().BoolVar(&mock, "mock", false, "Use the offline mock evaluator instead of the Gemini API")
	cmd.Flags().IntVar(&limit, "limit", 0, "Grade at most this many questions (0 = all)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for evaluation output (default: eval_output_dir)")
	return cmd
}
