// Package report assembles the hierarchical evaluation report and keeps it
// on disk at all times. The file is rewritten after every graded question,
// so an interrupted run leaves behind everything graded so far.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"crisisbench/internal/qtree"
	"crisisbench/internal/results"
)

const filePrefix = "gemini_evaluation_report"

// Entry is one graded question inside the report tree. GeminiEvaluation is
// either the judge's parsed verdict or a diagnostic failure record.
type Entry struct {
	Question         string `json:"question"`
	GeminiEvaluation any    `json:"gemini_evaluation"`
}

// Tree is the on-disk shape of a report file.
type Tree = qtree.Tree[Entry]

// Filename builds the timestamped report filename for a run started at t.
func Filename(t time.Time) string {
	return filePrefix + "_" + t.Format(results.TimestampLayout) + ".json"
}

// Assembler accumulates entries and persists the whole report after each
// append with a plain truncate-and-write.
type Assembler struct {
	path string
	tree *Tree
}

// NewAssembler prepares a report at path, creating the parent directory.
func NewAssembler(path string) (*Assembler, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create report directory: %w", err)
		}
	}
	return &Assembler{path: path, tree: qtree.New[Entry]()}, nil
}

// Path returns where the report is written.
func (a *Assembler) Path() string { return a.path }

// Len is the number of graded questions in the report so far.
func (a *Assembler) Len() int { return a.tree.Len() }

// Append records one graded question under its taxonomy slot and flushes
// the full report to disk.
func (a *Assembler) Append(category, subcategory, question string, evaluation any) error {
	err := a.tree.Append(category, subcategory, Entry{
		Question:         question,
		GeminiEvaluation: evaluation,
	})
	if err != nil {
		return err
	}
	return results.WriteJSON(a.path, a.tree)
}

// Load reads a report file back, for inspection and round-trip tests.
func Load(path string) (*Tree, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t := qtree.New[Entry]()
	if err := t.UnmarshalJSON(b); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return t, nil
}
