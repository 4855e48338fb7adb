// Package statusapi exposes live pipeline progress over HTTP. Batch runs
// take hours; the status endpoint lets an operator check on them without
// tailing logs, and /metrics feeds Prometheus.
package statusapi

import (
	"sync"
	"time"
)

// Pipeline stages reported in status snapshots.
const (
	StageIdle    = "idle"
	StageBatch   = "batch"
	StageGrading = "grading"
	StageDone    = "done"
)

// Snapshot is one point-in-time view of the pipeline, served as JSON.
type Snapshot struct {
	Stage          string    `json:"stage"`
	StartedAt      time.Time `json:"started_at"`
	Model          string    `json:"model,omitempty"`
	ModelState     string    `json:"model_state,omitempty"`
	ModelIndex     int       `json:"model_index,omitempty"`
	ModelTotal     int       `json:"model_total,omitempty"`
	QuestionsDone  int       `json:"questions_done"`
	QuestionsTotal int       `json:"questions_total,omitempty"`
}

// Tracker is the mutable progress state shared between the pipeline and the
// status server. All methods are safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewTracker starts in the idle stage.
func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Stage: StageIdle, StartedAt: time.Now()}}
}

// StartBatch marks the beginning of a batch run.
func (t *Tracker) StartBatch(totalModels, totalQuestions int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap = Snapshot{
		Stage:          StageBatch,
		StartedAt:      time.Now(),
		ModelTotal:     totalModels,
		QuestionsTotal: totalQuestions,
	}
}

// StartModel switches progress to the index-th model (1-based).
func (t *Tracker) StartModel(name string, index int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Model = name
	t.snap.ModelIndex = index
	t.snap.QuestionsDone = 0
}

// ModelState records the current lifecycle state of the model under test.
func (t *Tracker) ModelState(state string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.ModelState = state
}

// QuestionDone bumps the per-model (or per-grading-run) question counter.
func (t *Tracker) QuestionDone() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.QuestionsDone++
}

// StartGrading marks the beginning of a grading run over n questions.
func (t *Tracker) StartGrading(totalQuestions int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap = Snapshot{
		Stage:          StageGrading,
		StartedAt:      time.Now(),
		QuestionsTotal: totalQuestions,
	}
}

// Finish marks the pipeline complete.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Stage = StageDone
	t.snap.Model = ""
	t.snap.ModelState = ""
}

// Snapshot returns a copy of the current progress.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}
