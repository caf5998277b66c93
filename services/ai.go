package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/crispai/crisp/backend/models"
)

// GeneratedQuestion is the shape the AI provider must return, one entry per
// interview question.
type GeneratedQuestion struct {
	Question   string `json:"question"`
	Difficulty string `json:"difficulty"`
	TimeLimit  int    `json:"timeLimit"`
}

// ScoreRequest carries one question/answer pair to the scorer.
type ScoreRequest struct {
	Question   string
	Answer     string
	Difficulty string
	ResumeText string
}

// ScoreResult is the scorer's verdict: an integer in [0,10] and a short
// rationale.
type ScoreResult struct {
	Score     int    `json:"score"`
	Rationale string `json:"rationale"`
}

// AIProvider is implemented by the Gemini and OpenAI clients.
type AIProvider interface {
	GenerateQuestions(ctx context.Context, resumeText string) ([]GeneratedQuestion, error)
	ScoreAnswer(ctx context.Context, req ScoreRequest) (*ScoreResult, error)
	Name() string
}

// NewAIProvider selects a provider from configuration. A missing API key
// yields no provider (nil) rather than an error; the fallback paths cover
// that case unless strict mode demands otherwise.
func NewAIProvider(cfg AIConfig) AIProvider {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIKey == "" {
			slog.Warn("OpenAI selected but no API key configured")
			return nil
		}
		return NewOpenAIProvider(cfg)
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			slog.Warn("Gemini selected but no API key configured")
			return nil
		}
		// NewGeminiProvider returns a typed nil when client construction
		// fails; the interface value must stay nil in that case.
		if provider := NewGeminiProvider(cfg); provider != nil {
			return provider
		}
		return nil
	}
	slog.Warn("Unknown AI provider", "provider", cfg.Provider)
	return nil
}

// AIService wraps a provider with the deterministic fallback paths and the
// strict-mode switch.
type AIService struct {
	provider  AIProvider
	requireAI bool
}

func NewAIService(cfg AIConfig) *AIService {
	return &AIService{
		provider:  NewAIProvider(cfg),
		requireAI: cfg.RequireAI,
	}
}

// GenerateQuestions returns exactly six questions: two easy (20s), two
// medium (60s), two hard (120s), in that order. When the provider fails or
// disagrees with that shape, the fixed fallback set is returned unless
// strict mode is on, in which case the failure propagates.
func (s *AIService) GenerateQuestions(ctx context.Context, resumeText string) ([]models.Question, error) {
	if s.provider != nil {
		generated, err := s.provider.GenerateQuestions(ctx, resumeText)
		if err == nil {
			if err := validateQuestionSet(generated); err == nil {
				slog.Info("Questions generated via provider", "provider", s.provider.Name())
				return toModelQuestions(generated), nil
			} else if s.requireAI {
				return nil, fmt.Errorf("provider returned unusable question set: %w", err)
			} else {
				slog.Warn("Provider question set rejected, using fallback", "error", err)
			}
		} else {
			if s.requireAI {
				return nil, fmt.Errorf("question generation failed: %w", err)
			}
			slog.Warn("Question generation failed, using fallback", "error", err)
		}
	} else if s.requireAI {
		return nil, fmt.Errorf("AI is required but not configured")
	}

	slog.Warn("Using fallback questions")
	return FallbackQuestions(), nil
}

// ScoreAnswer returns an integer score in [0,10] with a rationale. The AI
// result is accepted only when its score field is numeric; otherwise the
// heuristic takes over unless strict mode is on.
func (s *AIService) ScoreAnswer(ctx context.Context, req ScoreRequest) (*ScoreResult, error) {
	if s.provider != nil {
		result, err := s.provider.ScoreAnswer(ctx, req)
		if err == nil && result != nil {
			slog.Info("Answer scored via provider", "provider", s.provider.Name(), "score", result.Score)
			return result, nil
		}
		if s.requireAI {
			if err == nil {
				err = fmt.Errorf("provider returned no usable score")
			}
			return nil, fmt.Errorf("answer scoring failed: %w", err)
		}
		slog.Warn("Answer scoring failed, using heuristic", "error", err)
	} else if s.requireAI {
		return nil, fmt.Errorf("AI is required but not configured")
	}

	score := HeuristicScore(req.Answer, req.Difficulty)
	slog.Info("Answer scored via heuristic", "score", score)
	return &ScoreResult{Score: score}, nil
}

// validateQuestionSet checks the fixed contract: six questions, positions
// 0-1 easy, 2-3 medium, 4-5 hard, time limits 20/60/120.
func validateQuestionSet(questions []GeneratedQuestion) error {
	if len(questions) != models.QuestionCount {
		return fmt.Errorf("expected %d questions, got %d", models.QuestionCount, len(questions))
	}
	expected := []string{
		models.DifficultyEasy, models.DifficultyEasy,
		models.DifficultyMedium, models.DifficultyMedium,
		models.DifficultyHard, models.DifficultyHard,
	}
	for i, q := range questions {
		if strings.TrimSpace(q.Question) == "" {
			return fmt.Errorf("question %d is empty", i)
		}
		if q.Difficulty != expected[i] {
			return fmt.Errorf("question %d: expected difficulty %s, got %s", i, expected[i], q.Difficulty)
		}
		if q.TimeLimit != models.TimeLimitFor(q.Difficulty) {
			return fmt.Errorf("question %d: expected time limit %d, got %d", i, models.TimeLimitFor(q.Difficulty), q.TimeLimit)
		}
	}
	return nil
}

func toModelQuestions(generated []GeneratedQuestion) []models.Question {
	questions := make([]models.Question, len(generated))
	for i, q := range generated {
		questions[i] = models.Question{
			Question:   q.Question,
			Difficulty: q.Difficulty,
			TimeLimit:  q.TimeLimit,
		}
	}
	return questions
}

// FallbackQuestions is the fixed non-AI question set: two easy, two medium,
// two hard, with the standard time limits.
func FallbackQuestions() []models.Question {
	return []models.Question{
		{Question: "Explain React components and props.", Difficulty: models.DifficultyEasy, TimeLimit: models.TimeLimitEasy},
		{Question: "Difference between let/const/var in JavaScript.", Difficulty: models.DifficultyEasy, TimeLimit: models.TimeLimitEasy},
		{Question: "Describe closures in JavaScript with an example.", Difficulty: models.DifficultyMedium, TimeLimit: models.TimeLimitMedium},
		{Question: "Explain React hooks compared to class components.", Difficulty: models.DifficultyMedium, TimeLimit: models.TimeLimitMedium},
		{Question: "Design a scalable real-time chat architecture with React/Node.", Difficulty: models.DifficultyHard, TimeLimit: models.TimeLimitHard},
		{Question: "Optimize React app performance for large datasets.", Difficulty: models.DifficultyHard, TimeLimit: models.TimeLimitHard},
	}
}

// answerKeywords is the fixed technical-term list the heuristic scorer
// matches against.
var answerKeywords = []string{
	"react", "component", "hook", "state", "props",
	"node", "express", "api", "database", "async",
	"await", "promise", "mongodb", "performance", "scalability",
}

// HeuristicScore computes the non-AI fallback score: base 5, plus a length
// bonus, plus one point per three matched keywords (capped at 3), plus a
// difficulty adjustment, clamped to [0,10] and rounded.
func HeuristicScore(answer, difficulty string) int {
	score := 5.0

	switch {
	case len(answer) > 400:
		score += 3
	case len(answer) > 200:
		score += 2
	case len(answer) > 80:
		score += 1
	}

	lower := strings.ToLower(answer)
	matched := 0
	for _, keyword := range answerKeywords {
		if strings.Contains(lower, keyword) {
			matched++
		}
	}
	score += math.Min(3, float64(matched/3))

	switch difficulty {
	case models.DifficultyHard:
		score += 1
	case models.DifficultyMedium:
		score += 0.5
	}

	return ClampScore(score)
}

// ClampScore rounds to the nearest integer and clamps into [0,10].
func ClampScore(score float64) int {
	rounded := int(math.Round(score))
	if rounded < 0 {
		return 0
	}
	if rounded > 10 {
		return 10
	}
	return rounded
}

var (
	fencedBlockPattern = regexp.MustCompile("(?is)```(?:json)?\\s*\\n(.*?)```")
	bareArrayPattern   = regexp.MustCompile(`(?s)\[\s*\{.*\}\s*\]`)
)

// ExtractJSON pulls a JSON value out of free-form provider text. Strategies
// run in order and the first that parses wins: direct parse, fenced code
// block, bare array literal. Returns false when none parse.
func ExtractJSON(text string, v interface{}) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	candidates := []string{text}
	if m := fencedBlockPattern.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := bareArrayPattern.FindString(text); m != "" {
		candidates = append(candidates, m)
	}

	for _, candidate := range candidates {
		if json.Unmarshal([]byte(strings.TrimSpace(candidate)), v) == nil {
			return true
		}
	}
	return false
}

// resumeExcerpt trims resume context for prompt inclusion. The cut lands
// on a rune boundary so the provider never sees a torn UTF-8 sequence.
func resumeExcerpt(resumeText string, limit int) string {
	if resumeText == "" {
		return ""
	}
	if len(resumeText) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(resumeText[cut]) {
			cut--
		}
		resumeText = resumeText[:cut]
	}
	return "Resume excerpt: " + resumeText
}

const questionSystemPrompt = "You are an interview assistant. Generate 6 concise technical questions for a Full-Stack (React + Node) role: 2 easy (20s), 2 medium (60s), 2 hard (120s). Return ONLY valid JSON (no prose). Output must be a JSON array of 6 objects with fields: question (string), difficulty (one of easy|medium|hard), timeLimit (number: 20|60|120)."

const scoreSystemPrompt = "You are an interview evaluator. Score answers 0-10 (integer). Consider technical accuracy, completeness, clarity, and relevance; higher expectations for hard questions. Return ONLY JSON."

func questionUserPrompt(resumeText string) string {
	return fmt.Sprintf("%s\nGenerate the 6 questions now as JSON only.", resumeExcerpt(resumeText, 1200))
}

func scoreUserPrompt(req ScoreRequest) string {
	resumeHint := ""
	if req.ResumeText != "" {
		resumeHint = "\n" + resumeExcerpt(req.ResumeText, 600)
	}
	return fmt.Sprintf("Question (%s): %s%s\nCandidate Answer: %s\nReturn JSON only: {\"score\": integer 0-10, \"rationale\": string (<= 200 chars)}",
		req.Difficulty, req.Question, resumeHint, req.Answer)
}

// parseScoreResponse accepts a provider response only when the score field
// is numeric, then clamps and rounds it like the heuristic does.
func parseScoreResponse(text string) (*ScoreResult, bool) {
	var parsed struct {
		Score     *float64 `json:"score"`
		Rationale string   `json:"rationale"`
	}
	if !ExtractJSON(text, &parsed) || parsed.Score == nil {
		return nil, false
	}
	return &ScoreResult{
		Score:     ClampScore(*parsed.Score),
		Rationale: parsed.Rationale,
	}, true
}
