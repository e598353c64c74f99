package stage

import (
	"fmt"

	"github.com/nguyentantai21042004/meeting-summary/internal/config"
	"github.com/nguyentantai21042004/meeting-summary/internal/logger"
)

// NewSummarizer picks the summarization backend named by summary.backend
func NewSummarizer(cfg *config.Config, log logger.Logger) (Summarizer, error) {
	switch cfg.Summary.Backend {
	case config.BackendGemini:
		return NewGeminiSummarizer(cfg, log)
	case config.BackendOllama, "":
		return NewOllamaSummarizer(cfg, log)
	default:
		return nil, fmt.Errorf("unknown summary backend %q", cfg.Summary.Backend)
	}
}
