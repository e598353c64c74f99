package config

import (
	"os"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: Config{
				Whisper: WhisperConfig{ModelPath: "models/test.bin"},
				Paths:   PathsConfig{Output: "data/output"},
			},
			wantErr: false,
		},
		{
			name: "model dir instead of path",
			config: Config{
				Whisper: WhisperConfig{ModelDir: "models"},
				Paths:   PathsConfig{Output: "data/output"},
			},
			wantErr: false,
		},
		{
			name: "missing model",
			config: Config{
				Paths: PathsConfig{Output: "data/output"},
			},
			wantErr: true,
		},
		{
			name: "missing paths",
			config: Config{
				Whisper: WhisperConfig{ModelPath: "models/test.bin"},
			},
			wantErr: true,
		},
		{
			name: "gemini without keys",
			config: Config{
				Whisper: WhisperConfig{ModelPath: "models/test.bin"},
				Paths:   PathsConfig{Output: "data/output"},
				Summary: SummaryConfig{Backend: BackendGemini},
			},
			wantErr: true,
		},
		{
			name: "unknown backend",
			config: Config{
				Whisper: WhisperConfig{ModelPath: "models/test.bin"},
				Paths:   PathsConfig{Output: "data/output"},
				Summary: SummaryConfig{Backend: "openai"},
			},
			wantErr: true,
		},
		{
			name: "negative context length",
			config: Config{
				Whisper: WhisperConfig{ModelPath: "models/test.bin"},
				Paths:   PathsConfig{Output: "data/output"},
				Summary: SummaryConfig{ContextLength: -1},
			},
			wantErr: true,
		},
		{
			name: "watch without dir",
			config: Config{
				Whisper: WhisperConfig{ModelPath: "models/test.bin"},
				Paths:   PathsConfig{Output: "data/output"},
				Watch:   WatchConfig{Enabled: true},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := Config{
		Whisper: WhisperConfig{ModelPath: "models/test.bin"},
		Paths:   PathsConfig{Output: "out"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.Summary.Backend != BackendOllama {
		t.Errorf("Backend = %q, want %q", cfg.Summary.Backend, BackendOllama)
	}
	if cfg.Summary.Model != "qwen3:30b-a3b" {
		t.Errorf("Summary.Model = %q", cfg.Summary.Model)
	}
	if cfg.Performance.MaxConcurrent != 2 || cfg.Performance.ChunkFanout != 2 {
		t.Errorf("Performance = %+v", cfg.Performance)
	}
	if cfg.Paths.Uploads != "out/uploads" {
		t.Errorf("Uploads = %q", cfg.Paths.Uploads)
	}
	if cfg.Jobs.Retention != time.Hour {
		t.Errorf("Retention = %v", cfg.Jobs.Retention)
	}
	if cfg.Whisper.DefaultModel != "turbo" {
		t.Errorf("DefaultModel = %q", cfg.Whisper.DefaultModel)
	}
}

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	content := `
whisper:
  model_path: "models/test.bin"
  binary_path: "./whisper"
  language: "en"

paths:
  output: "data/output"

summary:
  backend: "ollama"
  context_length: 4000

jobs:
  retention: "30m"

logging:
  level: "info"
  format: "text"
`

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Whisper.ModelPath != "models/test.bin" {
		t.Errorf("ModelPath = %v, want %v", cfg.Whisper.ModelPath, "models/test.bin")
	}
	if cfg.Summary.ContextLength != 4000 {
		t.Errorf("ContextLength = %v, want 4000", cfg.Summary.ContextLength)
	}
	if cfg.Jobs.Retention != 30*time.Minute {
		t.Errorf("Retention = %v, want 30m", cfg.Jobs.Retention)
	}
}

func TestLoadGeminiKeysFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEYS", "k1, k2,,")

	path := t.TempDir() + "/config.yaml"
	content := "whisper:\n  model_path: m.bin\npaths:\n  output: out\nsummary:\n  backend: gemini\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Gemini.APIKeys) != 2 || cfg.Gemini.APIKeys[1] != "k2" {
		t.Errorf("APIKeys = %v", cfg.Gemini.APIKeys)
	}
	if cfg.Summary.Model != "gemini-2.5-flash" {
		t.Errorf("Summary.Model = %q", cfg.Summary.Model)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Error("Load() should return error for nonexistent file")
	}
}
