// Package runner drives a full batch: for each cataloged model, cycle the
// serving slot through load and verify, fire the question battery, and
// persist the answers plus a run record before moving on. One model's
// failure never stops the batch.
package runner

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"crisisbench/internal/catalog"
	"crisisbench/internal/infer"
	"crisisbench/internal/lifecycle"
	"crisisbench/internal/qtree"
	"crisisbench/internal/results"
	"crisisbench/internal/statusapi"
)

// Lifecycle is the slice of the lifecycle controller the runner needs.
type Lifecycle interface {
	Load(ctx context.Context, modelID string) error
	Verify(ctx context.Context, modelID string) error
	BeginTesting() error
	Unload(ctx context.Context)
	State() lifecycle.State
}

// Asker sends one question to the currently loaded model.
type Asker interface {
	Ask(ctx context.Context, question string) infer.Answer
}

// Outcome is one model's line in the end-of-batch summary.
type Outcome struct {
	Model    string
	Status   string
	Duration time.Duration
	Err      string
}

// Summary covers the whole batch. It is logged, not persisted: the durable
// record is the per-model files in the batch directory.
type Summary struct {
	BatchDir  string
	Outcomes  []Outcome
	Succeeded int
	Failed    int
}

// Runner executes the battery against every model in the catalog.
type Runner struct {
	models    []catalog.Model
	questions *qtree.Tree[string]
	lc        Lifecycle
	ask       Asker
	tracker   *statusapi.Tracker
	log       zerolog.Logger

	resultsDir string
	now        func() time.Time
}

// New assembles a Runner over an already-loaded catalog and battery.
func New(models []catalog.Model, questions *qtree.Tree[string], lc Lifecycle, ask Asker,
	resultsDir string, tracker *statusapi.Tracker, log zerolog.Logger) *Runner {
	return &Runner{
		models:     models,
		questions:  questions,
		lc:         lc,
		ask:        ask,
		tracker:    tracker,
		log:        log,
		resultsDir: resultsDir,
		now:        time.Now,
	}
}

// Run processes every model sequentially and returns the batch summary.
// Only batch-level problems (no batch dir, canceled context) are errors;
// per-model failures are recorded in the summary and on disk.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	batchDir, err := CreateBatchDir(r.resultsDir, r.now())
	if err != nil {
		return nil, err
	}
	r.log.Info().Str("batch_dir", batchDir).Int("models", len(r.models)).
		Int("questions", r.questions.Len()).Msg("starting batch")
	r.tracker.StartBatch(len(r.models), r.questions.Len())

	s := &Summary{BatchDir: batchDir}
	for i, m := range r.models {
		if ctx.Err() != nil {
			r.lc.Unload(context.WithoutCancel(ctx))
			return s, ctx.Err()
		}
		r.tracker.StartModel(m.DisplayName, i+1)
		r.log.Info().Str("model", m.DisplayName).Int("index", i+1).
			Int("total", len(r.models)).Msg("testing model")

		out := r.runModel(ctx, batchDir, m)
		modelsTested.WithLabelValues(out.Status).Inc()
		s.Outcomes = append(s.Outcomes, out)
		if out.Status == results.StatusSuccess {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}

	r.lc.Unload(ctx)
	r.tracker.Finish()
	r.logSummary(s)
	return s, nil
}

func (r *Runner) runModel(ctx context.Context, batchDir string, m catalog.Model) Outcome {
	// Clear the slot first: whatever the previous model left behind must
	// not answer this model's questions.
	r.lc.Unload(ctx)
	r.syncState()

	attemptedAt := r.now()
	if err := r.lc.Load(ctx, m.ID); err != nil {
		r.syncState()
		r.writeFailure(batchDir, m, attemptedAt, err)
		return Outcome{Model: m.DisplayName, Status: results.StatusFailedToLoad, Err: err.Error()}
	}
	r.syncState()
	if err := r.lc.Verify(ctx, m.ID); err != nil {
		r.syncState()
		r.writeFailure(batchDir, m, attemptedAt, err)
		return Outcome{Model: m.DisplayName, Status: results.StatusFailedToLoad, Err: err.Error()}
	}
	r.syncState()
	if err := r.lc.BeginTesting(); err != nil {
		r.writeFailure(batchDir, m, attemptedAt, err)
		return Outcome{Model: m.DisplayName, Status: results.StatusError, Err: err.Error()}
	}
	r.syncState()

	// The clock starts at the first question: load and verify time is the
	// harness's cost, not the model's.
	started := r.now()
	tree := &results.Tree{}
	asked, failed := 0, 0
	total := r.questions.Len()

	walkErr := r.questions.Walk(func(cat, sub, question string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		ans := r.ask.Ask(ctx, question)
		asked++
		questionsAsked.Inc()
		if ans.Failed() {
			failed++
			sentinelAnswers.Inc()
			r.log.Warn().Str("model", m.DisplayName).Str("question", truncate(question, 70)).
				Str("kind", string(ans.Kind)).Msg("question failed")
		}
		r.tracker.QuestionDone()
		r.log.Info().Int("done", asked).Int("total", total).
			Str("subcategory", sub).Msg("question answered")
		return tree.Append(cat, sub, results.QA{Question: question, Answer: ans.String()})
	})

	finished := r.now()
	status := results.StatusSuccess
	errText := ""
	if walkErr != nil {
		status = results.StatusError
		errText = walkErr.Error()
	}

	stem := results.Stem(m.DisplayName, started)
	resultPath := results.ResultPath(batchDir, stem)
	if err := results.WriteJSON(resultPath, tree); err != nil {
		r.log.Error().Err(err).Str("model", m.DisplayName).Msg("writing results failed")
		return Outcome{Model: m.DisplayName, Status: results.StatusError, Err: err.Error()}
	}
	rec := results.RunRecord{
		ModelName:       m.DisplayName,
		ModelID:         m.ID,
		Status:          status,
		QuestionsCount:  asked,
		StartedAt:       started,
		FinishedAt:      finished,
		DurationSeconds: finished.Sub(started).Seconds(),
		DurationMMSS:    results.MMSS(finished.Sub(started)),
		ResultsFile:     stem + ".json",
		Error:           errText,
	}
	if err := results.WriteJSON(results.RunInfoPath(batchDir, stem), rec); err != nil {
		r.log.Error().Err(err).Str("model", m.DisplayName).Msg("writing run record failed")
	}

	r.log.Info().Str("model", m.DisplayName).Int("questions", asked).Int("failed", failed).
		Str("duration", rec.DurationMMSS).Msg("model finished")
	return Outcome{Model: m.DisplayName, Status: status, Duration: finished.Sub(started), Err: errText}
}

// writeFailure persists a run record for a model that never answered a
// question, so the batch directory accounts for every cataloged model.
func (r *Runner) writeFailure(batchDir string, m catalog.Model, attemptedAt time.Time, cause error) {
	status := results.StatusError
	if lifecycle.IsLoadFailure(cause) {
		status = results.StatusFailedToLoad
	}
	now := r.now()
	stem := results.Stem(m.DisplayName, attemptedAt)
	rec := results.RunRecord{
		ModelName:      m.DisplayName,
		ModelID:        m.ID,
		Status:         status,
		QuestionsCount: 0,
		StartedAt:      attemptedAt,
		FinishedAt:     now,
		DurationMMSS:   results.MMSS(now.Sub(attemptedAt)),
		Error:          cause.Error(),
	}
	rec.DurationSeconds = now.Sub(attemptedAt).Seconds()
	if err := results.WriteJSON(results.RunInfoPath(batchDir, stem), rec); err != nil {
		r.log.Error().Err(err).Str("model", m.DisplayName).Msg("writing failure record failed")
	}
}

func (r *Runner) logSummary(s *Summary) {
	for _, o := range s.Outcomes {
		e := r.log.Info().Str("model", o.Model).Str("status", o.Status)
		if o.Duration > 0 {
			e = e.Str("duration", results.MMSS(o.Duration))
		}
		if o.Err != "" {
			e = e.Str("error", o.Err)
		}
		e.Msg("batch result")
	}
	r.log.Info().Int("succeeded", s.Succeeded).Int("failed", s.Failed).
		Str("batch_dir", s.BatchDir).Msg("batch complete")
}

func (r *Runner) syncState() {
	r.tracker.ModelState(string(r.lc.State()))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
