package stage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/nguyentantai21042004/meeting-summary/internal/config"
	"github.com/nguyentantai21042004/meeting-summary/internal/logger"
)

// generateFunc performs one generation call with a single API key
type generateFunc func(ctx context.Context, apiKey, model, prompt string) (string, error)

type geminiSummarizer struct {
	mu          sync.Mutex
	apiKeys     []string
	currentKey  int
	model       string
	extraPrompt string
	generate    generateFunc
	logger      logger.Logger
}

// NewGeminiSummarizer creates a Summarizer that rotates through the configured Gemini API keys
func NewGeminiSummarizer(cfg *config.Config, log logger.Logger) (Summarizer, error) {
	if len(cfg.Gemini.APIKeys) == 0 {
		return nil, fmt.Errorf("no gemini api keys configured")
	}
	return &geminiSummarizer{
		apiKeys:     cfg.Gemini.APIKeys,
		model:       cfg.Summary.Model,
		extraPrompt: cfg.Summary.ExtraPrompt,
		generate:    callGemini,
		logger:      log,
	}, nil
}

// Summarize calls Gemini, rotating keys on 429 / quota errors
func (s *geminiSummarizer) Summarize(ctx context.Context, text string, opts SummarizeOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = s.model
	}
	prompt := systemPrompt + "\n\n" + buildUserContent(text, pick(opts.ExtraPrompt, s.extraPrompt))

	var lastErr error
	for range len(s.apiKeys) {
		idx, key := s.key()

		summary, err := s.generate(ctx, key, model, prompt)
		if err != nil {
			if isQuotaError(err) {
				s.logger.Warn(ctx, "Key %d rate limited, rotating...", idx+1)
				s.rotateFrom(idx)
				lastErr = err
				continue
			}
			return "", fmt.Errorf("generate content: %w", err)
		}

		summary = strings.TrimSpace(summary)
		if summary == "" {
			return "", fmt.Errorf("empty response from Gemini")
		}
		return summary, nil
	}

	return "", fmt.Errorf("all API keys exhausted: %w", lastErr)
}

func (s *geminiSummarizer) key() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentKey, s.apiKeys[s.currentKey]
}

// rotateFrom advances past idx unless another caller already rotated
func (s *geminiSummarizer) rotateFrom(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentKey == idx {
		s.currentKey = (s.currentKey + 1) % len(s.apiKeys)
	}
}

func isQuotaError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

func callGemini(ctx context.Context, apiKey, model, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("create client: %w", err)
	}

	result, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}

	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", nil
	}

	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	return text.String(), nil
}
