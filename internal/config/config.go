package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Whisper     WhisperConfig     `yaml:"whisper"`
	FFmpeg      FFmpegConfig      `yaml:"ffmpeg"`
	Paths       PathsConfig       `yaml:"paths"`
	Logging     LoggingConfig     `yaml:"logging"`
	Performance PerformanceConfig `yaml:"performance"`
	Summary     SummaryConfig     `yaml:"summary"`
	Ollama      OllamaConfig      `yaml:"ollama"`
	Gemini      GeminiConfig      `yaml:"gemini"`
	Server      ServerConfig      `yaml:"server"`
	Jobs        JobsConfig        `yaml:"jobs"`
	Redis       RedisConfig       `yaml:"redis"`
	Watch       WatchConfig       `yaml:"watch"`
	Tracing     TracingConfig     `yaml:"tracing"`
}

type WhisperConfig struct {
	BinaryPath   string `yaml:"binary_path"`
	ModelPath    string `yaml:"model_path"`
	ModelDir     string `yaml:"model_dir"`
	DefaultModel string `yaml:"default_model"`
	Language     string `yaml:"language"`
	Threads      int    `yaml:"threads"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	SampleRate int    `yaml:"sample_rate"`
}

type PathsConfig struct {
	Output  string `yaml:"output"`
	Uploads string `yaml:"uploads"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type PerformanceConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
	ChunkFanout   int `yaml:"chunk_fanout"`
}

type SummaryConfig struct {
	Backend       string `yaml:"backend"`
	Model         string `yaml:"model"`
	ContextLength int    `yaml:"context_length"`
	ExtraPrompt   string `yaml:"extra_prompt"`
}

type OllamaConfig struct {
	Host string `yaml:"host"`
}

type GeminiConfig struct {
	Model   string   `yaml:"model"`
	APIKeys []string `yaml:"api_keys"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	Mode string `yaml:"mode"`
}

type JobsConfig struct {
	Retention     time.Duration `yaml:"retention"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type WatchConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

const (
	BackendOllama = "ollama"
	BackendGemini = "gemini"
)

// Load reads the YAML file at path, applies environment overrides and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if len(c.Gemini.APIKeys) == 0 {
		if raw := os.Getenv("GEMINI_API_KEYS"); raw != "" {
			for _, key := range strings.Split(raw, ",") {
				if key = strings.TrimSpace(key); key != "" {
					c.Gemini.APIKeys = append(c.Gemini.APIKeys, key)
				}
			}
		}
	}
	if c.Ollama.Host == "" {
		c.Ollama.Host = os.Getenv("OLLAMA_HOST")
	}
}

// Validate checks required keys and fills defaults for the optional ones.
func (c *Config) Validate() error {
	if c.Whisper.ModelPath == "" && c.Whisper.ModelDir == "" {
		return fmt.Errorf("whisper.model_path or whisper.model_dir is required")
	}
	if c.Paths.Output == "" {
		return fmt.Errorf("paths.output is required")
	}

	if c.Summary.Backend == "" {
		c.Summary.Backend = BackendOllama
	}
	switch c.Summary.Backend {
	case BackendOllama:
	case BackendGemini:
		if len(c.Gemini.APIKeys) == 0 {
			return fmt.Errorf("gemini.api_keys is required for the gemini backend")
		}
	default:
		return fmt.Errorf("summary.backend must be %q or %q, got %q", BackendOllama, BackendGemini, c.Summary.Backend)
	}
	if c.Summary.ContextLength < 0 {
		return fmt.Errorf("summary.context_length must be >= 0")
	}
	if c.Watch.Enabled && c.Watch.Dir == "" {
		return fmt.Errorf("watch.dir is required when watch is enabled")
	}

	if c.Whisper.BinaryPath == "" {
		c.Whisper.BinaryPath = "whisper-cli"
	}
	if c.Whisper.DefaultModel == "" {
		c.Whisper.DefaultModel = "turbo"
	}
	if c.Whisper.Threads == 0 {
		c.Whisper.Threads = 8
	}
	if c.FFmpeg.BinaryPath == "" {
		c.FFmpeg.BinaryPath = "ffmpeg"
	}
	if c.FFmpeg.SampleRate == 0 {
		c.FFmpeg.SampleRate = 16000
	}
	if c.Paths.Uploads == "" {
		c.Paths.Uploads = c.Paths.Output + "/uploads"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Performance.MaxConcurrent == 0 {
		c.Performance.MaxConcurrent = 2
	}
	if c.Performance.ChunkFanout == 0 {
		c.Performance.ChunkFanout = 2
	}
	if c.Summary.Model == "" {
		if c.Summary.Backend == BackendGemini {
			c.Summary.Model = c.Gemini.Model
		} else {
			c.Summary.Model = "qwen3:30b-a3b"
		}
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash"
	}
	if c.Summary.Model == "" {
		c.Summary.Model = c.Gemini.Model
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Jobs.Retention == 0 {
		c.Jobs.Retention = time.Hour
	}
	if c.Jobs.SweepInterval == 0 {
		c.Jobs.SweepInterval = time.Minute
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 7 * 24 * time.Hour
	}

	return nil
}
