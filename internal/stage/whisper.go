package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nguyentantai21042004/meeting-summary/internal/config"
	"github.com/nguyentantai21042004/meeting-summary/internal/logger"
	"github.com/nguyentantai21042004/meeting-summary/pkg/executor"
)

type whisperTranscriber struct {
	cfg      config.WhisperConfig
	executor executor.Executor
	logger   logger.Logger
}

// NewWhisperTranscriber creates a Transcriber backed by the whisper.cpp CLI
func NewWhisperTranscriber(cfg *config.Config, exec executor.Executor, log logger.Logger) Transcriber {
	return &whisperTranscriber{
		cfg:      cfg.Whisper,
		executor: exec,
		logger:   log,
	}
}

// Transcribe writes <stem>.txt and <stem>.srt next to the audio file and returns the text.
// A transcript already on disk for the same stem is reused.
func (w *whisperTranscriber) Transcribe(ctx context.Context, audioPath string, opts TranscribeOptions) (Transcript, error) {
	prefix := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	out := Transcript{
		TextPath: prefix + ".txt",
		SRTPath:  prefix + ".srt",
	}

	if data, err := os.ReadFile(out.TextPath); err == nil {
		w.logger.Info(ctx, "Reusing existing transcript: %s", out.TextPath)
		out.Text = strings.TrimSpace(string(data))
		return w.finish(out)
	}

	modelPath := w.modelPath(opts.Model)
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-otxt",
		"-osrt",
		"-t", strconv.Itoa(w.cfg.Threads),
		"-of", prefix,
	}
	if lang := w.language(opts.Language); lang != "" {
		args = append(args, "-l", lang)
	}

	w.logger.Info(ctx, "Starting transcription with model %s (%d threads): %s", modelPath, w.cfg.Threads, audioPath)

	if _, err := w.executor.Execute(ctx, w.cfg.BinaryPath, args...); err != nil {
		return Transcript{}, fmt.Errorf("whisper transcribe: %w", err)
	}

	data, err := os.ReadFile(out.TextPath)
	if err != nil {
		return Transcript{}, fmt.Errorf("read transcript: %w", err)
	}
	out.Text = strings.TrimSpace(string(data))

	w.logger.Info(ctx, "Transcription completed: %s", out.TextPath)
	return w.finish(out)
}

func (w *whisperTranscriber) finish(out Transcript) (Transcript, error) {
	if out.Text == "" {
		return Transcript{}, fmt.Errorf("transcript is empty")
	}
	if _, err := os.Stat(out.SRTPath); err != nil {
		out.SRTPath = ""
	}
	return out, nil
}

// modelPath maps a model selector such as "turbo" to a ggml model file.
// Selectors that already look like a path are used as-is.
func (w *whisperTranscriber) modelPath(selector string) string {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		selector = w.cfg.DefaultModel
	}
	if strings.ContainsRune(selector, filepath.Separator) || filepath.Ext(selector) == ".bin" || filepath.Ext(selector) == ".gguf" {
		return selector
	}
	if w.cfg.ModelDir != "" {
		return filepath.Join(w.cfg.ModelDir, "ggml-"+selector+".bin")
	}
	return w.cfg.ModelPath
}

// language maps "auto" and empty to no CLI override
func (w *whisperTranscriber) language(hint string) string {
	lang := strings.TrimSpace(hint)
	if lang == "" {
		lang = strings.TrimSpace(w.cfg.Language)
	}
	if strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}
