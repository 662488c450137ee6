package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"resume-screener/domain"
)

// OpenAIClient is the alternative judgment service, using chat completions in
// JSON mode at low temperature.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (o *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) &&
			apiErr.HTTPStatusCode != http.StatusTooManyRequests &&
			apiErr.HTTPStatusCode < 500 {
			return "", fmt.Errorf("openai request failed: %w", err)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrJudgeUnavailable, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", domain.ErrInvalidModelResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
