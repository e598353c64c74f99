package stage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/nguyentantai21042004/meeting-summary/internal/config"
	"github.com/nguyentantai21042004/meeting-summary/internal/logger"
)

var reThink = regexp.MustCompile(`(?s)^\s*<think>.*?</think>`)

// chatClient is the part of the Ollama client the summarizer needs
type chatClient interface {
	Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
}

type ollamaSummarizer struct {
	client      chatClient
	model       string
	extraPrompt string
	logger      logger.Logger
}

// NewOllamaSummarizer creates a Summarizer talking to a local Ollama server.
// The host comes from ollama.host, falling back to OLLAMA_HOST and the Ollama default.
func NewOllamaSummarizer(cfg *config.Config, log logger.Logger) (Summarizer, error) {
	var client *api.Client
	if cfg.Ollama.Host != "" {
		base, err := url.Parse(cfg.Ollama.Host)
		if err != nil {
			return nil, fmt.Errorf("parse ollama host: %w", err)
		}
		client = api.NewClient(base, http.DefaultClient)
	} else {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		client = c
	}

	return &ollamaSummarizer{
		client:      client,
		model:       cfg.Summary.Model,
		extraPrompt: cfg.Summary.ExtraPrompt,
		logger:      log,
	}, nil
}

// Summarize sends one non-streaming chat request and returns the reply
func (s *ollamaSummarizer) Summarize(ctx context.Context, text string, opts SummarizeOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = s.model
	}

	stream := false
	req := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserContent(text, pick(opts.ExtraPrompt, s.extraPrompt))},
		},
		Stream: &stream,
	}

	s.logger.Debug(ctx, "Requesting summary from ollama model %s (%d chars)", model, len(text))

	var reply strings.Builder
	err := s.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}

	summary := strings.TrimSpace(reThink.ReplaceAllString(reply.String(), ""))
	if summary == "" {
		return "", fmt.Errorf("empty response from ollama model %s", model)
	}
	return summary, nil
}
