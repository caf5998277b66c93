package services

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider generates questions and scores answers through an
// OpenAI-compatible chat completions endpoint. Single attempt per call.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAIProvider(cfg AIConfig) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIBase != "" {
		clientConfig.BaseURL = cfg.OpenAIBase
	}

	model := cfg.OpenAIModel
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}
}

func (o *OpenAIProvider) Name() string { return "openai" }

func (o *OpenAIProvider) GenerateQuestions(ctx context.Context, resumeText string) ([]GeneratedQuestion, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: questionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: questionUserPrompt(resumeText)},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	var questions []GeneratedQuestion
	if !ExtractJSON(resp.Choices[0].Message.Content, &questions) || len(questions) != 6 {
		return nil, fmt.Errorf("openai returned no usable question set")
	}

	slog.Info("OpenAI model used", "model", o.model)
	return questions, nil
}

func (o *OpenAIProvider) ScoreAnswer(ctx context.Context, req ScoreRequest) (*ScoreResult, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: scoreSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: scoreUserPrompt(req)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("openai scoring failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	scored, ok := parseScoreResponse(resp.Choices[0].Message.Content)
	if !ok {
		return nil, fmt.Errorf("openai returned no usable score")
	}

	slog.Info("OpenAI model used (score)", "model", o.model)
	return scored, nil
}
