package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel is tried first when no override is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// geminiModelCandidates is the ordered list of model identifiers tried
// after the configured one. Models the API reports as unknown are skipped;
// any other provider error stops the walk.
var geminiModelCandidates = []string{
	"gemini-2.5-flash",
	"gemini-2.5-flash-lite",
	"gemini-2.5-pro",
	"gemini-2.0-flash",
	"gemini-1.5-pro",
	"gemini-1.5-flash",
}

// GeminiProvider generates questions and scores answers through the Gemini
// API.
type GeminiProvider struct {
	client *genai.Client
	models []string
}

func NewGeminiProvider(cfg AIConfig) *GeminiProvider {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		slog.Error("Failed to create genai client", "error", err)
		return nil
	}

	preferred := cfg.GeminiModel
	if preferred == "" {
		preferred = DefaultGeminiModel
	}

	candidates := []string{preferred}
	for _, m := range geminiModelCandidates {
		if m != preferred {
			candidates = append(candidates, m)
		}
	}

	return &GeminiProvider{
		client: client,
		models: candidates,
	}
}

func (g *GeminiProvider) Name() string { return "gemini" }

func (g *GeminiProvider) GenerateQuestions(ctx context.Context, resumeText string) ([]GeneratedQuestion, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("genai client not initialized")
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(questionSystemPrompt, genai.RoleUser),
	}

	var lastErr error
	for _, model := range g.models {
		result, err := g.client.Models.GenerateContent(ctx, model, genai.Text(questionUserPrompt(resumeText)), config)
		if err != nil {
			lastErr = err
			if isModelNotFound(err) {
				slog.Warn("Gemini model not found", "model", model)
				continue
			}
			return nil, fmt.Errorf("gemini generation failed: %w", err)
		}

		var questions []GeneratedQuestion
		if ExtractJSON(result.Text(), &questions) && len(questions) == 6 {
			slog.Info("Gemini model used", "model", model)
			return questions, nil
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("gemini generation failed: %w", lastErr)
	}
	return nil, fmt.Errorf("gemini returned no usable question set")
}

func (g *GeminiProvider) ScoreAnswer(ctx context.Context, req ScoreRequest) (*ScoreResult, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("genai client not initialized")
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(scoreSystemPrompt, genai.RoleUser),
	}

	var lastErr error
	for _, model := range g.models {
		result, err := g.client.Models.GenerateContent(ctx, model, genai.Text(scoreUserPrompt(req)), config)
		if err != nil {
			lastErr = err
			if isModelNotFound(err) {
				slog.Warn("Gemini model not found (score)", "model", model)
				continue
			}
			return nil, fmt.Errorf("gemini scoring failed: %w", err)
		}

		if scored, ok := parseScoreResponse(result.Text()); ok {
			slog.Info("Gemini model used (score)", "model", model)
			return scored, nil
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("gemini scoring failed: %w", lastErr)
	}
	return nil, fmt.Errorf("gemini returned no usable score")
}

// isModelNotFound reports whether the provider rejected the model
// identifier itself, which means the next candidate should be tried.
func isModelNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "404") || strings.Contains(msg, "not found") || strings.Contains(msg, "is not supported")
}
