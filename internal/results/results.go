// Package results defines the per-model files a batch run produces: the
// answer file (category/subcategory tree of question/answer pairs) and the
// run record written next to it.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"crisisbench/internal/qtree"
)

// QA is one answered question. Answer may be a sentinel string when the
// inference call failed; see infer.IsSentinel.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Tree is the on-disk shape of a model result file.
type Tree = qtree.Tree[QA]

// Run statuses recorded in run records.
const (
	StatusSuccess      = "SUCCESS"
	StatusFailedToLoad = "FAILED_TO_LOAD"
	StatusError        = "ERROR"
)

// RunRecord describes one model's run within a batch. Written once when the
// run finishes; the size fields may be back-filled later by an external
// annotator without re-running inference.
type RunRecord struct {
	ModelName       string    `json:"model_name"`
	ModelID         string    `json:"model_id"`
	Status          string    `json:"status"`
	QuestionsCount  int       `json:"questions_count"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	DurationMMSS    string    `json:"duration_mmss"`
	ResultsFile     string    `json:"results_file,omitempty"`
	Error           string    `json:"error,omitempty"`

	ModelSizeBytes *int64   `json:"model_size_bytes,omitempty"`
	ModelSizeGB    *float64 `json:"model_size_gb,omitempty"`
	ModelFilePath  string   `json:"model_file_path,omitempty"`
}

const (
	// TimestampLayout is the second-resolution stamp embedded in filenames.
	TimestampLayout = "2006-01-02_15-04-05"
	runinfoSuffix   = "_runinfo.json"
)

// tsSuffix matches the trailing filename timestamp produced by Stem.
var tsSuffix = regexp.MustCompile(`_\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}$`)

// unsafeRunes collapses anything a filesystem might dislike.
var unsafeRunes = regexp.MustCompile(`[^a-zA-Z0-9._@-]+`)

// SafeName turns a model display name into a filename-safe stem: strip any
// path, drop the weights extension, replace remaining unsafe runes.
func SafeName(displayName string) string {
	name := displayName
	if strings.ContainsAny(name, `/\`) {
		name = filepath.Base(strings.ReplaceAll(name, `\`, `/`))
	}
	if ext := filepath.Ext(name); strings.EqualFold(ext, ".gguf") {
		name = strings.TrimSuffix(name, ext)
	}
	name = unsafeRunes.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	if name == "" {
		name = "model"
	}
	return name
}

// Stem builds the shared filename stem "<safe_name>_<timestamp>". The
// second-resolution stamp keeps repeated runs of one model from colliding.
func Stem(displayName string, t time.Time) string {
	return SafeName(displayName) + "_" + t.Format(TimestampLayout)
}

// ModelNameFromFile recovers the model name from a result filename by
// stripping the .json suffix and the trailing timestamp.
func ModelNameFromFile(filename string) string {
	base := filepath.Base(filename)
	if strings.EqualFold(filepath.Ext(base), ".json") {
		base = base[:len(base)-len(".json")]
	}
	return tsSuffix.ReplaceAllString(base, "")
}

// IsRunInfo reports whether the filename is a run record, not a result file.
func IsRunInfo(filename string) bool {
	return strings.HasSuffix(filepath.Base(filename), runinfoSuffix)
}

// RunInfoPath derives the run record path for a result file stem.
func RunInfoPath(dir, stem string) string {
	return filepath.Join(dir, stem+runinfoSuffix)
}

// ResultPath derives the result file path for a stem.
func ResultPath(dir, stem string) string {
	return filepath.Join(dir, stem+".json")
}

// WriteJSON persists v as human-indented UTF-8 JSON.
func WriteJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// LoadTree reads a model result file back into its tree form.
func LoadTree(path string) (*Tree, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t := qtree.New[QA]()
	if err := json.Unmarshal(b, t); err != nil {
		return nil, fmt.Errorf("parse result file %s: %w", path, err)
	}
	return t, nil
}

// LoadRunRecord reads a run record file.
func LoadRunRecord(path string) (RunRecord, error) {
	var r RunRecord
	b, err := os.ReadFile(path)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return r, fmt.Errorf("parse run record %s: %w", path, err)
	}
	return r, nil
}

// MMSS formats a duration as minutes:seconds for run records.
func MMSS(d time.Duration) string {
	s := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
