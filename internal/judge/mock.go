package judge

import (
	"context"
	"strings"
)

// Mock is an offline Grader for dry runs without an API key. It hands out
// partial credit to any non-empty answer and zero otherwise, which is enough
// to exercise the full aggregation and report path end to end.
type Mock struct{}

func (Mock) Grade(_ context.Context, question string, answers []ModelAnswer) any {
	evaluations := make([]Evaluation, 0, len(answers))
	for _, a := range answers {
		score := 0
		justification := "Answer missing or empty."
		if strings.TrimSpace(a.Text) != "" {
			score = 5
			justification = "Mock evaluation: placeholder justification."
		}
		evaluations = append(evaluations, Evaluation{
			ModelName:     a.Name,
			LLMAnswer:     a.Text,
			Score:         &score,
			Justification: justification,
		})
	}
	return &Verdict{
		IdealAnswer: "This is a mock ideal answer for the question: " + question,
		Evaluations: evaluations,
	}
}
