// Package infer is the stateless client for the local OpenAI-compatible
// chat-completions endpoint: one question in, one answer out.
package infer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

// systemPrompt pins the persona and response style for every candidate model.
const systemPrompt = `You are CrisisAI, an AI assistant designed to provide clear, simple, and safe advice for people in emergency situations without access to experts.
Assume the user is under stress, has no special training, and needs practical, step-by-step instructions.
Prioritize safety above all else. Do not give medical advice that should come from a doctor, but provide correct and established first aid information.
If a common 'myth' or dangerous misconception is part of the user's question, directly and gently correct it with the safe alternative.`

const (
	// The server answers with whatever model is resident regardless of the
	// model field, but the field is still required by the protocol.
	placeholderModel = "local-model"
	maxAnswerTokens  = 4096
	probeTimeout     = 10 * time.Second
)

// Client asks questions against a single inference endpoint. It holds no
// per-model state; the server decides which model answers.
type Client struct {
	api        openai.Client
	log        zerolog.Logger
	askTimeout time.Duration
}

// New builds a client for the given base URL (the ".../v1" root).
func New(baseURL string, askTimeout time.Duration, log zerolog.Logger) *Client {
	api := openai.NewClient(
		option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"),
		option.WithAPIKey("not-needed"),
		// A failed ask must surface as a sentinel answer, not be retried.
		option.WithMaxRetries(0),
	)
	return &Client{api: api, log: log, askTimeout: askTimeout}
}

// Ask sends one question and returns a tagged Answer. It never returns a Go
// error: every failure mode collapses into a sentinel-bearing Answer so the
// batch can keep moving.
func (c *Client) Ask(ctx context.Context, question string) Answer {
	ctx, cancel := context.WithTimeout(ctx, c.askTimeout)
	defer cancel()

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(placeholderModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(question),
		},
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(maxAnswerTokens),
	})
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			c.log.Warn().Int("status", apierr.StatusCode).Err(err).Msg("inference API error")
			return Answer{Kind: FailAPI, Detail: fmt.Sprintf("inference endpoint returned HTTP %d", apierr.StatusCode)}
		}
		c.log.Warn().Err(err).Msg("inference call failed")
		return Answer{Kind: FailTransport, Detail: "could not reach the inference endpoint: " + err.Error()}
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		c.log.Warn().Msg("inference returned no usable choices")
		return Answer{Kind: FailEmpty}
	}
	return OK(resp.Choices[0].Message.Content)
}

// Probe issues a minimal one-token completion to confirm a model is actually
// serving. Unlike Ask it returns an error, because the lifecycle controller
// needs to distinguish "up" from "not up".
func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	_, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(placeholderModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("test"),
		},
		MaxTokens: openai.Int(1),
	})
	if err != nil {
		return fmt.Errorf("probe completion: %w", err)
	}
	return nil
}
