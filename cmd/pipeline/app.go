package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/nguyentantai21042004/meeting-summary/internal/config"
	"github.com/nguyentantai21042004/meeting-summary/internal/export"
	"github.com/nguyentantai21042004/meeting-summary/internal/job"
	"github.com/nguyentantai21042004/meeting-summary/internal/logger"
	"github.com/nguyentantai21042004/meeting-summary/internal/stage"
	"github.com/nguyentantai21042004/meeting-summary/internal/store"
	"github.com/nguyentantai21042004/meeting-summary/internal/tracing"
	"github.com/nguyentantai21042004/meeting-summary/pkg/executor"
)

// app holds the wired dependencies shared by every command
type app struct {
	cfg      *config.Config
	logger   logger.Logger
	registry *job.Registry
	closers  []func(context.Context) error
}

func newApp(ctx context.Context, configFile string) (*app, error) {
	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// Initialize logger
	log := logger.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	log.Info(ctx, "System: %s/%s, CPU cores: %d", runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
	log.Info(ctx, "Summary backend: %s (%s), max concurrent jobs: %d, chunk fan-out: %d",
		cfg.Summary.Backend, cfg.Summary.Model, cfg.Performance.MaxConcurrent, cfg.Performance.ChunkFanout)

	if err := ensureDirectories(cfg); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: log}

	shutdownTracing, err := tracing.Init(cfg.Tracing.Enabled, "meeting-summary", os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, shutdownTracing)

	// Initialize dependencies
	exec := executor.New()
	summarizer, err := stage.NewSummarizer(cfg, log)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("create summarizer: %w", err)
	}

	var snapshots store.Store = store.NewMemory()
	if cfg.Redis.Addr != "" {
		rs, err := store.NewRedis(ctx, cfg.Redis)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		snapshots = rs
		a.closers = append(a.closers, func(context.Context) error { return rs.Close() })
		log.Info(ctx, "Persisting finished jobs to redis at %s", cfg.Redis.Addr)
	}

	a.registry = job.NewRegistry(job.Stages{
		Extractor:   stage.NewFFmpegExtractor(cfg, exec, log),
		Transcriber: stage.NewWhisperTranscriber(cfg, exec, log),
		Summarizer:  summarizer,
	}, job.Options{
		MaxConcurrent: cfg.Performance.MaxConcurrent,
		ChunkFanout:   cfg.Performance.ChunkFanout,
		Retention:     cfg.Jobs.Retention,
		SweepInterval: cfg.Jobs.SweepInterval,
		WorkDir:       cfg.Paths.Output,
		Store:         snapshots,
		Exporter:      export.New(log),
	}, log)

	return a, nil
}

// request builds a job request for a local video with the configured defaults
func (a *app) request(videoPath string) job.Request {
	return job.Request{
		VideoPath:     videoPath,
		WhisperModel:  a.cfg.Whisper.DefaultModel,
		Language:      a.cfg.Whisper.Language,
		SummaryModel:  a.cfg.Summary.Model,
		ContextLength: a.cfg.Summary.ContextLength,
		ExtraPrompt:   a.cfg.Summary.ExtraPrompt,
	}
}

// shutdown waits for running jobs, then releases resources
func (a *app) shutdown(ctx context.Context) {
	if err := a.registry.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "Jobs still running at shutdown: %v", err)
	}
	a.close(ctx)
}

func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn(ctx, "Shutdown step failed: %v", err)
		}
	}
	a.closers = nil
}

// ensureDirectories creates required directories if they don't exist
func ensureDirectories(cfg *config.Config) error {
	dirs := []string{
		cfg.Paths.Output,
		cfg.Paths.Uploads,
	}
	if cfg.Watch.Enabled {
		dirs = append(dirs, cfg.Watch.Dir)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
