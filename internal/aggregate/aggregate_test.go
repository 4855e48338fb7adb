package aggregate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"crisisbench/internal/results"
)

func writeResultFile(t *testing.T, dir, name string, tree *results.Tree) {
	t.Helper()
	if err := results.WriteJSON(filepath.Join(dir, name), tree); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func tree(t *testing.T, entries ...[4]string) *results.Tree {
	t.Helper()
	tr := &results.Tree{}
	for _, e := range entries {
		if err := tr.Append(e[0], e[1], results.QA{Question: e[2], Answer: e[3]}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return tr
}

func TestFromDirFanIn(t *testing.T) {
	dir := t.TempDir()
	writeResultFile(t, dir, "alpha_2026-08-30_10-00-00.json", tree(t,
		[4]string{"Medical", "Trauma", "q1", "a1 from alpha"},
		[4]string{"Medical", "Trauma", "q2", "a2 from alpha"},
		[4]string{"Shelter", "Cold", "q3", "a3 from alpha"},
	))
	writeResultFile(t, dir, "beta_2026-08-30_11-30-00.json", tree(t,
		[4]string{"Medical", "Trauma", "q1", "a1 from beta"},
		[4]string{"Medical", "Trauma", "q2", "ERROR: timed out"},
		[4]string{"Shelter", "Cold", "q3", "a3 from beta"},
	))
	// Run records must be ignored.
	if err := results.WriteJSON(filepath.Join(dir, "alpha_2026-08-30_10-00-00_runinfo.json"),
		results.RunRecord{ModelName: "alpha"}); err != nil {
		t.Fatalf("write runinfo: %v", err)
	}

	s, err := FromDir(dir)
	if err != nil {
		t.Fatalf("FromDir: %v", err)
	}
	if s.Files() != 2 {
		t.Fatalf("files: %d", s.Files())
	}
	// Two files x three questions fan in to three bundles of two answers.
	if s.Len() != 3 {
		t.Fatalf("unique questions: %d", s.Len())
	}
	for _, b := range s.Bundles() {
		if len(b.Answers) != 2 {
			t.Fatalf("question %q: %d answers", b.Question, len(b.Answers))
		}
	}
	b := s.Bundles()[0]
	if b.Question != "q1" || b.Category != "Medical" || b.Subcategory != "Trauma" {
		t.Fatalf("first bundle: %+v", b)
	}
	if b.Answers[0].Name != "alpha" || b.Answers[1].Name != "beta" {
		t.Fatalf("answer order: %+v", b.Answers)
	}
}

func TestFromDirStripsTimestamps(t *testing.T) {
	dir := t.TempDir()
	writeResultFile(t, dir, "gemma-3-12b-it@q8_0_2026-08-31_09-08-02.json", tree(t,
		[4]string{"C", "S", "q", "a"},
	))
	s, err := FromDir(dir)
	if err != nil {
		t.Fatalf("FromDir: %v", err)
	}
	if got := s.Bundles()[0].Answers[0].Name; got != "gemma-3-12b-it@q8_0" {
		t.Fatalf("model name: %q", got)
	}
}

func TestFromDirMissingModelIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	writeResultFile(t, dir, "alpha_2026-08-30_10-00-00.json", tree(t,
		[4]string{"C", "S", "q1", "a1"},
		[4]string{"C", "S", "q2", "a2"},
	))
	writeResultFile(t, dir, "beta_2026-08-30_11-00-00.json", tree(t,
		[4]string{"C", "S", "q1", "b1"},
	))

	s, err := FromDir(dir)
	if err != nil {
		t.Fatalf("FromDir: %v", err)
	}
	var q2 *Bundle
	for _, b := range s.Bundles() {
		if b.Question == "q2" {
			q2 = b
		}
	}
	if q2 == nil || len(q2.Answers) != 1 || q2.Answers[0].Name != "alpha" {
		t.Fatalf("q2 bundle: %+v", q2)
	}
}

func TestFromDirEmptyIsError(t *testing.T) {
	if _, err := FromDir(t.TempDir()); err == nil {
		t.Fatalf("expected error for empty directory")
	}
}

func TestFirstSeenTaxonomyWins(t *testing.T) {
	dir := t.TempDir()
	writeResultFile(t, dir, "alpha_2026-08-30_10-00-00.json", tree(t,
		[4]string{"Medical", "Trauma", "q1", "a"},
	))
	writeResultFile(t, dir, "beta_2026-08-30_11-00-00.json", tree(t,
		[4]string{"Renamed", "Other", "q1", "b"},
	))

	s, err := FromDir(dir)
	if err != nil {
		t.Fatalf("FromDir: %v", err)
	}
	b := s.Bundles()[0]
	if b.Category != "Medical" || b.Subcategory != "Trauma" {
		t.Fatalf("taxonomy: %s/%s", b.Category, b.Subcategory)
	}
	if len(b.Answers) != 2 {
		t.Fatalf("answers: %+v", b.Answers)
	}
}

func TestSentinelCounts(t *testing.T) {
	dir := t.TempDir()
	writeResultFile(t, dir, "alpha_2026-08-30_10-00-00.json", tree(t,
		[4]string{"C", "S", "q1", "fine"},
		[4]string{"C", "S", "q2", "ERROR: Received an empty or invalid response from the model."},
		[4]string{"C", "S", "q3", "API Call Error: connection refused"},
	))

	s, err := FromDir(dir)
	if err != nil {
		t.Fatalf("FromDir: %v", err)
	}
	counts := s.SentinelCounts()
	if len(counts) != 1 {
		t.Fatalf("counts: %+v", counts)
	}
	if counts[0].Model != "alpha" || counts[0].Total != 3 || counts[0].Sentinels != 2 {
		t.Fatalf("count: %+v", counts[0])
	}
}

func TestSaveShape(t *testing.T) {
	dir := t.TempDir()
	writeResultFile(t, dir, "alpha_2026-08-30_10-00-00.json", tree(t,
		[4]string{"Medical", "Trauma", "q1", "a1"},
	))
	s, err := FromDir(dir)
	if err != nil {
		t.Fatalf("FromDir: %v", err)
	}
	out := filepath.Join(dir, "aggregated_answers.json")
	if err := s.Save(out); err != nil {
		t.Fatalf("save: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded map[string]struct {
		Category    string            `json:"category"`
		Subcategory string            `json:"subcategory"`
		Answers     map[string]string `json:"answers"`
	}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("parse saved aggregate: %v", err)
	}
	q1, ok := decoded["q1"]
	if !ok {
		t.Fatalf("q1 missing: %v", decoded)
	}
	if q1.Category != "Medical" || q1.Subcategory != "Trauma" || q1.Answers["alpha"] != "a1" {
		t.Fatalf("q1 entry: %+v", q1)
	}
}
