// Package aiassist turns a member's rough idea into a structured project proposal
// using a chat completion model.
package aiassist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/leoportal/leo-portal-api/models"
)

var (
	// ErrNotConfigured is returned when no API key is set
	ErrNotConfigured = errors.New("ai assistant is not configured")
	// ErrEmptyPrompt is returned for a blank prompt
	ErrEmptyPrompt = errors.New("prompt must not be empty")
)

const systemPrompt = `You help members of a LEO youth service club plan community service projects.
Reply with a single JSON object with these keys:
"title" (string), "summary" (string), "objectives" (array of strings),
"beneficiaries" (string), "budgetEstimate" (integer, in cents),
"timeline" (string), "resources" (array of strings).`

// Completer is the subset of the OpenAI client used here
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Assistant drafts project proposals
type Assistant struct {
	client Completer
	model  string
}

// New returns an Assistant backed by the OpenAI API. A nil Assistant is returned
// when apiKey is empty.
func New(apiKey, model string) *Assistant {
	if apiKey == "" {
		return nil
	}
	return NewWithClient(openai.NewClient(apiKey), model)
}

// NewWithClient returns an Assistant using an existing client
func NewWithClient(client Completer, model string) *Assistant {
	return &Assistant{client: client, model: model}
}

// GenerateProposal returns a draft built from prompt. The draft is not stored.
func (a *Assistant) GenerateProposal(ctx context.Context, prompt string) (models.ProjectIdeaRequest, error) {
	if a == nil || a.client == nil {
		return models.ProjectIdeaRequest{}, ErrNotConfigured
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return models.ProjectIdeaRequest{}, ErrEmptyPrompt
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.7,
	})
	if err != nil {
		return models.ProjectIdeaRequest{}, fmt.Errorf("failed to generate proposal: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.ProjectIdeaRequest{}, errors.New("model returned no choices")
	}

	return ParseProposal(resp.Choices[0].Message.Content)
}

// ParseProposal decodes the model output, tolerating a fenced code block around the JSON
func ParseProposal(content string) (models.ProjectIdeaRequest, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var draft models.ProjectIdeaRequest
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &draft); err != nil {
		return models.ProjectIdeaRequest{}, fmt.Errorf("failed to parse proposal: %w", err)
	}
	if strings.TrimSpace(draft.Title) == "" {
		return models.ProjectIdeaRequest{}, errors.New("proposal has no title")
	}
	if draft.BudgetEstimate < 0 {
		draft.BudgetEstimate = 0
	}
	draft.AIGenerated = true
	return draft, nil
}
