// Package aggregate re-keys a batch directory of per-model result files by
// question, so each question carries every model's answer side by side.
package aggregate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"crisisbench/internal/infer"
	"crisisbench/internal/judge"
	"crisisbench/internal/results"
)

// Bundle is one question with every collected answer. The taxonomy comes
// from the first file that mentioned the question; later files may disagree
// but are not reconciled.
type Bundle struct {
	Question    string
	Category    string
	Subcategory string
	Answers     []judge.ModelAnswer
}

// SentinelCount summarizes one model's failed answers.
type SentinelCount struct {
	Model     string
	Sentinels int
	Total     int
}

// Set is the aggregated view of a batch. Bundle order is first-seen
// question order across files, which keeps grading runs deterministic.
type Set struct {
	bundles []*Bundle
	index   map[string]*Bundle

	modelOrder []string
	counts     map[string]*SentinelCount

	files int
}

// FromDir reads every result file in dir (run records are skipped) and
// merges them into a Set. An empty directory is an error: grading nothing
// is always a misconfiguration.
func FromDir(dir string) (*Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read batch directory: %w", err)
	}

	s := &Set{
		index:  make(map[string]*Bundle),
		counts: make(map[string]*SentinelCount),
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".json") || results.IsRunInfo(name) {
			continue
		}
		tree, err := results.LoadTree(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		model := results.ModelNameFromFile(name)
		s.files++
		err = tree.Walk(func(cat, sub string, qa results.QA) error {
			s.add(model, cat, sub, qa)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if s.files == 0 {
		return nil, fmt.Errorf("no result files found in %s", dir)
	}
	return s, nil
}

func (s *Set) add(model, cat, sub string, qa results.QA) {
	b := s.index[qa.Question]
	if b == nil {
		b = &Bundle{Question: qa.Question, Category: cat, Subcategory: sub}
		s.index[qa.Question] = b
		s.bundles = append(s.bundles, b)
	}
	// A question can recur within one file (say, under two subcategories);
	// the model keeps a single slot and the last answer wins.
	replaced := false
	for i := range b.Answers {
		if b.Answers[i].Name == model {
			b.Answers[i].Text = qa.Answer
			replaced = true
			break
		}
	}
	if !replaced {
		b.Answers = append(b.Answers, judge.ModelAnswer{Name: model, Text: qa.Answer})
	}

	c := s.counts[model]
	if c == nil {
		c = &SentinelCount{Model: model}
		s.counts[model] = c
		s.modelOrder = append(s.modelOrder, model)
	}
	c.Total++
	if infer.IsSentinel(qa.Answer) {
		c.Sentinels++
	}
}

// Bundles returns the questions in first-seen order.
func (s *Set) Bundles() []*Bundle { return s.bundles }

// Len is the number of unique questions.
func (s *Set) Len() int { return len(s.bundles) }

// Files is the number of result files consumed.
func (s *Set) Files() int { return s.files }

// SentinelCounts reports per-model failed-answer totals, in the order the
// models' files were read.
func (s *Set) SentinelCounts() []SentinelCount {
	out := make([]SentinelCount, 0, len(s.modelOrder))
	for _, m := range s.modelOrder {
		out = append(out, *s.counts[m])
	}
	return out
}

// MarshalJSON emits the aggregate in its on-disk shape: an object keyed by
// question, each value carrying the taxonomy and a model→answer map, all in
// insertion order.
func (s *Set) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, b := range s.bundles {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, b.Question); err != nil {
			return nil, err
		}
		buf.WriteByte('{')
		if err := writeKey(&buf, "category"); err != nil {
			return nil, err
		}
		if err := writeString(&buf, b.Category); err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		if err := writeKey(&buf, "subcategory"); err != nil {
			return nil, err
		}
		if err := writeString(&buf, b.Subcategory); err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		if err := writeKey(&buf, "answers"); err != nil {
			return nil, err
		}
		buf.WriteByte('{')
		for j, a := range b.Answers {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(&buf, a.Name); err != nil {
				return nil, err
			}
			if err := writeString(&buf, a.Text); err != nil {
				return nil, err
			}
		}
		buf.WriteByte('}')
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Save writes the aggregate to path as indented JSON.
func (s *Set) Save(path string) error {
	return results.WriteJSON(path, s)
}

func writeString(buf *bytes.Buffer, v string) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

func writeKey(buf *bytes.Buffer, k string) error {
	if err := writeString(buf, k); err != nil {
		return err
	}
	buf.WriteByte(':')
	return nil
}
