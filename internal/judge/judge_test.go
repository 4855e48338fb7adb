package judge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scripted struct {
	text string
	err  error
}

type fakeBackend struct {
	script []scripted
	calls  int
}

func (f *fakeBackend) GenerateStructured(ctx context.Context, prompt string) (Response, error) {
	f.calls++
	if len(f.script) == 0 {
		return Response{}, errors.New("script exhausted")
	}
	s := f.script[0]
	f.script = f.script[1:]
	return Response{Text: s.text, Raw: map[string]any{"text": s.text}}, s.err
}

func newTestJudge(b Backend) *Judge {
	j := New(b, time.Second, zerolog.Nop())
	j.base = 0
	return j
}

const goodVerdict = `{"gemini_ideal_answer": "Stay calm.", "evaluations": [{"model_name": "m1", "llm_answer": "run", "score": 3, "justification": "incomplete"}]}`

func TestGradeRetriesThenSucceeds(t *testing.T) {
	b := &fakeBackend{script: []scripted{
		{err: errors.New("temporary")},
		{err: errors.New("temporary")},
		{text: goodVerdict},
	}}
	j := newTestJudge(b)

	result := j.Grade(context.Background(), "q", []ModelAnswer{{Name: "m1", Text: "run"}})

	require.Equal(t, 3, b.calls)
	raw, ok := result.(json.RawMessage)
	require.True(t, ok, "expected parsed verdict, got %T", result)
	var v Verdict
	require.NoError(t, json.Unmarshal(raw, &v))
	assert.Equal(t, "Stay calm.", v.IdealAnswer)
	require.Len(t, v.Evaluations, 1)
	require.NotNil(t, v.Evaluations[0].Score)
	assert.Equal(t, 3, *v.Evaluations[0].Score)
}

func TestGrade404DoesNotRetry(t *testing.T) {
	b := &fakeBackend{script: []scripted{
		{err: &statusError{status: 404, body: "model not found", err: errors.New("not found")}},
	}}
	j := newTestJudge(b)

	result := j.Grade(context.Background(), "q", nil)

	require.Equal(t, 1, b.calls)
	f, ok := result.(Failure)
	require.True(t, ok, "expected Failure, got %T", result)
	assert.Equal(t, "HTTP 404 Not Found", f.Error)
	assert.Equal(t, 404, f.Status)
	assert.Equal(t, "model not found", f.ResponseText)
}

func TestGradeExhaustsRetries(t *testing.T) {
	b := &fakeBackend{script: []scripted{
		{err: errors.New("boom")},
		{err: errors.New("boom")},
		{err: errors.New("boom")},
	}}
	j := newTestJudge(b)

	result := j.Grade(context.Background(), "q", nil)

	require.Equal(t, 3, b.calls)
	f, ok := result.(Failure)
	require.True(t, ok)
	assert.Equal(t, "API call failed after multiple retries.", f.Error)
}

// hangingBackend blocks until its context expires on the first call, then
// answers normally.
type hangingBackend struct {
	calls int
}

func (b *hangingBackend) GenerateStructured(ctx context.Context, prompt string) (Response, error) {
	b.calls++
	if b.calls == 1 {
		<-ctx.Done()
		return Response{}, ctx.Err()
	}
	return Response{Text: goodVerdict}, nil
}

func TestGradeHungAttemptDoesNotStarveRetries(t *testing.T) {
	b := &hangingBackend{}
	j := New(b, 20*time.Millisecond, zerolog.Nop())
	j.base = 0

	// The deadline is per attempt: the hung first call times out on its
	// own, and the second attempt still gets its full budget.
	result := j.Grade(context.Background(), "q", []ModelAnswer{{Name: "m1", Text: "run"}})

	require.Equal(t, 2, b.calls)
	raw, ok := result.(json.RawMessage)
	require.True(t, ok, "expected parsed verdict, got %#v", result)
	var v Verdict
	require.NoError(t, json.Unmarshal(raw, &v))
	assert.Equal(t, "Stay calm.", v.IdealAnswer)
}

func TestGradeExtractsWrappedJSON(t *testing.T) {
	b := &fakeBackend{script: []scripted{
		{text: "Sure, here is my evaluation:\n```json\n" + goodVerdict + "\n```\nHope that helps!"},
	}}
	j := newTestJudge(b)

	result := j.Grade(context.Background(), "q", nil)

	raw, ok := result.(json.RawMessage)
	require.True(t, ok, "expected parsed verdict, got %T", result)
	var v Verdict
	require.NoError(t, json.Unmarshal(raw, &v))
	assert.Equal(t, "Stay calm.", v.IdealAnswer)
}

func TestGradeUnparseableBecomesDiagnostic(t *testing.T) {
	b := &fakeBackend{script: []scripted{{text: "I cannot answer that."}}}
	j := newTestJudge(b)

	result := j.Grade(context.Background(), "q", nil)

	require.Equal(t, 1, b.calls, "content failures must not retry")
	f, ok := result.(Failure)
	require.True(t, ok)
	assert.Equal(t, "Failed to parse model JSON output.", f.Error)
	assert.Equal(t, "I cannot answer that.", f.RawText)
	assert.NotNil(t, f.APIResponse)
}

func TestGradeToleratesNullScore(t *testing.T) {
	b := &fakeBackend{script: []scripted{
		{text: `{"gemini_ideal_answer": "x", "evaluations": [{"model_name": "m", "llm_answer": "", "score": null, "justification": "empty"}]}`},
	}}
	j := newTestJudge(b)

	raw, ok := j.Grade(context.Background(), "q", nil).(json.RawMessage)
	require.True(t, ok)
	var v Verdict
	require.NoError(t, json.Unmarshal(raw, &v))
	require.Len(t, v.Evaluations, 1)
	assert.Nil(t, v.Evaluations[0].Score)
}

func TestBuildPromptFramesEachModel(t *testing.T) {
	p := buildPrompt("How do I purify water?", []ModelAnswer{
		{Name: "alpha", Text: "Boil it."},
		{Name: "beta", Text: "Use tablets."},
	})
	assert.Contains(t, p, `"How do I purify water?"`)
	assert.Contains(t, p, "--- MODEL: alpha ---\nBoil it.")
	assert.Contains(t, p, "--- MODEL: beta ---\nUse tablets.")
	assert.Less(t, strings.Index(p, "alpha"), strings.Index(p, "beta"), "answer order must be preserved")
}

func TestMockGrader(t *testing.T) {
	v, ok := Mock{}.Grade(context.Background(), "q", []ModelAnswer{
		{Name: "good", Text: "an answer"},
		{Name: "bad", Text: "   "},
	}).(*Verdict)
	require.True(t, ok)
	require.Len(t, v.Evaluations, 2)
	assert.Equal(t, 5, *v.Evaluations[0].Score)
	assert.Equal(t, 0, *v.Evaluations[1].Score)
	assert.Contains(t, v.IdealAnswer, "q")
}
