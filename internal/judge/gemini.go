package judge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// judgeTemperature keeps evaluations consistent across runs.
const judgeTemperature float32 = 0.2

// statusError carries the HTTP status and body of a failed evaluator call
// so Grade can distinguish retryable failures from permanent ones.
type statusError struct {
	status int
	body   string
	err    error
}

func (e *statusError) Error() string {
	return fmt.Sprintf("evaluator HTTP %d: %v", e.status, e.err)
}

func (e *statusError) Unwrap() error { return e.err }

// httpStatus extracts the status and body from an evaluator error, if any.
func httpStatus(err error) (int, string, bool) {
	var se *statusError
	if errors.As(err, &se) {
		return se.status, se.body, true
	}
	return 0, "", false
}

type geminiBackend struct {
	client *genai.Client
	model  string
}

// NewGeminiBackend dials the Gemini API with the given key and model name.
func NewGeminiBackend(ctx context.Context, apiKey, model string) (Backend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiBackend{client: client, model: model}, nil
}

func (b *geminiBackend) GenerateStructured(ctx context.Context, prompt string) (Response, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(judgeTemperature),
		ResponseMIMEType: "application/json",
	}
	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(prompt), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return Response{}, &statusError{status: apiErr.Code, body: apiErr.Message, err: err}
		}
		return Response{}, err
	}
	return Response{Text: strings.TrimSpace(resp.Text()), Raw: resp}, nil
}
