// Package llm asks an OpenAI-compatible model to explain questions a student
// got wrong. It is optional: reviews are complete without it.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/manasetna/exams/internal/llm/prompts"
	"github.com/manasetna/exams/internal/review"
)

// Explanation is the JSON object the model is asked to return.
type Explanation struct {
	Text string `json:"explanation"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client and loads the prompt templates.
func New(baseURL, apiKey, modelName string) (*Client, error) {
	if err := prompts.Load(prompts.Templates); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}, nil
}

// Explain returns a short explanation of why the key is correct for item.
func (c *Client) Explain(ctx context.Context, grade string, item review.Item, lang string) (string, error) {
	data, err := explainData(grade, item)
	if err != nil {
		return "", err
	}
	systemPrompt, err := prompts.BuildExplainPrompt(prompts.Language(lang), data)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	var out Explanation
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return "", fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	return strings.TrimSpace(out.Text), nil
}

// ExplainMissed fills Explanation on every missed item of r. A failed
// question is logged and left without an explanation; the review is never
// rejected because of the model.
func (c *Client) ExplainMissed(ctx context.Context, r *review.Review, lang string) {
	for _, item := range r.Missed() {
		if ctx.Err() != nil {
			return
		}
		text, err := c.Explain(ctx, r.Result.Grade, *item, lang)
		if err != nil {
			slog.Warn("explanation failed", "result_id", r.Result.ID, "question", item.Index, "error", err)
			continue
		}
		item.Explanation = text
	}
}

func explainData(grade string, item review.Item) (prompts.ExplainData, error) {
	data := prompts.ExplainData{
		Grade:        grade,
		QuestionText: item.Text,
		Options:      make([]string, len(item.Options)),
		CorrectIndex: -1,
		Answered:     item.Answered,
	}
	for i, o := range item.Options {
		data.Options[i] = o.Text
		if o.Correct {
			data.CorrectIndex = i
			data.CorrectText = o.Text
		}
		if o.Selected {
			data.SelectedIndex = i
			data.SelectedText = o.Text
		}
	}
	if data.CorrectIndex < 0 {
		return data, errors.New("question has no correct option")
	}
	return data, nil
}
