package llm

import (
	"context"
	"errors"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// Client is the minimal surface the summariser needs.  The model is passed
// per call so the caller can walk a fallback chain.
type Client interface {
	Complete(ctx context.Context, model, instruction, prompt string) (string, error)
}

// OpenAIClient calls the OpenAI chat completion API.  Credentials are loaded
// from the environment.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient constructs an OpenAI-backed client using OPENAI_API_KEY.
func NewOpenAIClient() *OpenAIClient {
	return &OpenAIClient{client: openai.NewClient(os.Getenv("OPENAI_API_KEY"))}
}

// Complete sends the instruction and prompt to the given model and returns
// the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, model, instruction, prompt string) (string, error) {
	if c.client == nil {
		return "", errors.New("openai client not initialized")
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}
