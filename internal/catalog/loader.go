// Package catalog loads the two run inputs: the model catalog (which models
// to test) and the question battery.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"crisisbench/internal/qtree"
)

// Model is one candidate model. ID is what the loader CLI understands
// (possibly a full weights path); DisplayName is the human-facing name used
// to derive result filenames.
type Model struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// File is the on-disk shape of the model selection file.
type File struct {
	LastUpdated string  `json:"last_updated"`
	Models      []Model `json:"models"`
}

// LoadModels reads the model selection file. Catalog order is preserved; the
// batch runner tests models in exactly this order.
func LoadModels(path string) ([]Model, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model catalog: %w", err)
	}
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse model catalog %s: %w", path, err)
	}
	if len(f.Models) == 0 {
		return nil, fmt.Errorf("model catalog %s lists no models", path)
	}
	for i, m := range f.Models {
		if strings.TrimSpace(m.ID) == "" {
			return nil, fmt.Errorf("model catalog %s: entry %d has empty id", path, i)
		}
		if strings.TrimSpace(m.DisplayName) == "" {
			f.Models[i].DisplayName = m.ID
		}
	}
	return f.Models, nil
}

// SaveModels writes a model selection back to disk, stamping last_updated.
func SaveModels(path string, models []Model) error {
	f := File{LastUpdated: time.Now().Format(time.RFC3339), Models: models}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// LoadQuestions reads the question battery: category -> subcategory -> list
// of question strings, order preserved.
func LoadQuestions(path string) (*qtree.Tree[string], error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	t := qtree.New[string]()
	if err := json.Unmarshal(b, t); err != nil {
		return nil, fmt.Errorf("parse questions %s: %w", path, err)
	}
	if t.Len() == 0 {
		return nil, fmt.Errorf("question file %s contains no questions", path)
	}
	return t, nil
}

// modelLine matches the leading model name in an `lms ls` table row, with an
// optional "(N variants)" annotation.
var (
	modelLine   = regexp.MustCompile(`^([a-zA-Z0-9/_.@\-]+(?:\s*\([^)]+\))?)\s+`)
	variantNote = regexp.MustCompile(`\s*\(\d+\s+variants?\)`)
)

// ParseList extracts catalog entries from `lms ls` output. Header rows and
// the trailing summary line are skipped; everything under the EMBEDDING
// section header is ignored since embedding models cannot answer questions.
func ParseList(output string) []Model {
	var models []Model
	inEmbedding := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "EMBEDDING") {
			inEmbedding = true
			continue
		}
		if inEmbedding || line == "" || strings.Contains(line, "PARAMS") || strings.HasPrefix(line, "You have") {
			continue
		}
		m := modelLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id := strings.TrimSpace(m[1])
		display := strings.TrimSpace(variantNote.ReplaceAllString(id, ""))
		models = append(models, Model{ID: id, DisplayName: display})
	}
	return models
}
