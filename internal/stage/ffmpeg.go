package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nguyentantai21042004/meeting-summary/internal/config"
	"github.com/nguyentantai21042004/meeting-summary/internal/logger"
	"github.com/nguyentantai21042004/meeting-summary/pkg/executor"
)

type ffmpegExtractor struct {
	binary     string
	sampleRate int
	executor   executor.Executor
	logger     logger.Logger
}

// NewFFmpegExtractor creates an Extractor that writes <stem>.wav into the directory it is given
func NewFFmpegExtractor(cfg *config.Config, exec executor.Executor, log logger.Logger) Extractor {
	return &ffmpegExtractor{
		binary:     cfg.FFmpeg.BinaryPath,
		sampleRate: cfg.FFmpeg.SampleRate,
		executor:   exec,
		logger:     log,
	}
}

// ExtractAudio converts the video's audio track to 16kHz mono PCM WAV in
// outputDir, or next to the video when outputDir is empty. An existing WAV
// for the same stem in that directory is reused.
func (e *ffmpegExtractor) ExtractAudio(ctx context.Context, videoPath, outputDir string) (string, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return "", fmt.Errorf("video not found: %s", videoPath)
	}
	if outputDir == "" {
		outputDir = filepath.Dir(videoPath)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	audioPath := filepath.Join(outputDir, stem(videoPath)+".wav")
	if _, err := os.Stat(audioPath); err == nil {
		e.logger.Info(ctx, "Reusing existing audio: %s", audioPath)
		return audioPath, nil
	}

	e.logger.Info(ctx, "Extracting audio: %s", videoPath)

	// -vn drops video, -ac 1 mono, pcm_s16le is what whisper.cpp reads natively
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", videoPath,
		"-vn",
		"-ar", strconv.Itoa(e.sampleRate),
		"-ac", "1",
		"-c:a", "pcm_s16le",
		audioPath,
	}

	if _, err := e.executor.Execute(ctx, e.binary, args...); err != nil {
		return "", fmt.Errorf("ffmpeg extract audio: %w", err)
	}

	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("audio file missing after extraction: %s", audioPath)
	}

	e.logger.Info(ctx, "Audio extracted successfully: %s", audioPath)
	return audioPath, nil
}
