// Package qtree provides the two-level category/subcategory tree used by
// question batteries, per-model result files and evaluation reports.
//
// JSON object key order is significant for these files (they are read by
// humans and rendered in file order), so the tree preserves insertion order
// on both levels across marshal/unmarshal round trips.
package qtree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Tree is an ordered mapping of category -> subcategory -> entries.
// The zero value is an empty tree ready for use.
type Tree[T any] struct {
	cats  []string
	byCat map[string]*subtree[T]
}

type subtree[T any] struct {
	subs  []string
	bySub map[string][]T
}

// New returns an empty tree.
func New[T any]() *Tree[T] {
	return &Tree[T]{byCat: make(map[string]*subtree[T])}
}

// Append adds an entry under category/subcategory, creating either level on
// first sight. Keys must be non-empty after trimming whitespace.
func (t *Tree[T]) Append(category, subcategory string, v T) error {
	if strings.TrimSpace(category) == "" {
		return fmt.Errorf("empty category key")
	}
	if strings.TrimSpace(subcategory) == "" {
		return fmt.Errorf("empty subcategory key in %q", category)
	}
	if t.byCat == nil {
		t.byCat = make(map[string]*subtree[T])
	}
	st, ok := t.byCat[category]
	if !ok {
		st = &subtree[T]{bySub: make(map[string][]T)}
		t.byCat[category] = st
		t.cats = append(t.cats, category)
	}
	if _, ok := st.bySub[subcategory]; !ok {
		st.subs = append(st.subs, subcategory)
	}
	st.bySub[subcategory] = append(st.bySub[subcategory], v)
	return nil
}

// Categories returns category keys in insertion order.
func (t *Tree[T]) Categories() []string {
	return append([]string(nil), t.cats...)
}

// Subcategories returns subcategory keys of a category in insertion order.
func (t *Tree[T]) Subcategories(category string) []string {
	st, ok := t.byCat[category]
	if !ok {
		return nil
	}
	return append([]string(nil), st.subs...)
}

// Entries returns the entry slice for a category/subcategory pair.
// The returned slice is shared; callers must not mutate it.
func (t *Tree[T]) Entries(category, subcategory string) []T {
	st, ok := t.byCat[category]
	if !ok {
		return nil
	}
	return st.bySub[subcategory]
}

// Len reports the total number of entries across all leaves.
func (t *Tree[T]) Len() int {
	n := 0
	for _, st := range t.byCat {
		for _, es := range st.bySub {
			n += len(es)
		}
	}
	return n
}

// Walk visits every entry in file order. A non-nil error from fn stops the
// walk and is returned.
func (t *Tree[T]) Walk(fn func(category, subcategory string, v T) error) error {
	for _, c := range t.cats {
		st := t.byCat[c]
		for _, s := range st.subs {
			for _, v := range st.bySub[s] {
				if err := fn(c, s, v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// MarshalJSON renders the nested object with keys in insertion order.
func (t *Tree[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range t.cats {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, c); err != nil {
			return nil, err
		}
		st := t.byCat[c]
		buf.WriteByte('{')
		for j, s := range st.subs {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(&buf, s); err != nil {
				return nil, err
			}
			es := st.bySub[s]
			if len(es) == 0 {
				buf.WriteString("[]")
				continue
			}
			b, err := json.Marshal(es)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, k string) error {
	b, err := json.Marshal(k)
	if err != nil {
		return err
	}
	buf.Write(b)
	buf.WriteByte(':')
	return nil
}

// UnmarshalJSON decodes the nested object token by token so that key order
// is retained. Empty keys are rejected.
func (t *Tree[T]) UnmarshalJSON(data []byte) error {
	*t = *New[T]()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := expectDelim(dec, '{'); err != nil {
		return fmt.Errorf("top level: %w", err)
	}
	for dec.More() {
		cat, err := readKey(dec)
		if err != nil {
			return err
		}
		if err := expectDelim(dec, '{'); err != nil {
			return fmt.Errorf("category %q: %w", cat, err)
		}
		for dec.More() {
			sub, err := readKey(dec)
			if err != nil {
				return err
			}
			var entries []T
			if err := dec.Decode(&entries); err != nil {
				return fmt.Errorf("entries of %q/%q: %w", cat, sub, err)
			}
			for _, e := range entries {
				if err := t.Append(cat, sub, e); err != nil {
					return err
				}
			}
			if len(entries) == 0 {
				// Preserve empty leaves so round trips are lossless.
				if err := t.appendEmpty(cat, sub); err != nil {
					return err
				}
			}
		}
		if _, err := dec.Token(); err != nil { // closing }
			return err
		}
	}
	if _, err := dec.Token(); err != nil { // closing }
		return err
	}
	return nil
}

// appendEmpty registers a leaf with no entries.
func (t *Tree[T]) appendEmpty(category, subcategory string) error {
	if strings.TrimSpace(category) == "" || strings.TrimSpace(subcategory) == "" {
		return fmt.Errorf("empty key")
	}
	if t.byCat == nil {
		t.byCat = make(map[string]*subtree[T])
	}
	st, ok := t.byCat[category]
	if !ok {
		st = &subtree[T]{bySub: make(map[string][]T)}
		t.byCat[category] = st
		t.cats = append(t.cats, category)
	}
	if _, ok := st.bySub[subcategory]; !ok {
		st.subs = append(st.subs, subcategory)
		st.bySub[subcategory] = nil
	}
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	k, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	if strings.TrimSpace(k) == "" {
		return "", fmt.Errorf("empty object key")
	}
	return k, nil
}
