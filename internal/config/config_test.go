package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected driver 'sqlite', got %q", cfg.Database.Driver)
	}
	if cfg.Discovery.Timeout != 10*time.Second {
		t.Errorf("expected discovery timeout 10s, got %v", cfg.Discovery.Timeout)
	}
	if cfg.Discovery.MaxLinks != 50 {
		t.Errorf("expected max_links 50, got %d", cfg.Discovery.MaxLinks)
	}
	if cfg.Persistence.ChunkSize != 50 {
		t.Errorf("expected chunk_size 50, got %d", cfg.Persistence.ChunkSize)
	}
	if cfg.Server.Port != 8787 {
		t.Errorf("expected port 8787, got %d", cfg.Server.Port)
	}
	if cfg.OpenAI.Debug {
		t.Error("expected debug mode off by default")
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
openai:
  answer_model: gpt-4.1
  debug: true
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.OpenAI.AnswerModel != "gpt-4.1" {
		t.Errorf("expected answer model 'gpt-4.1', got %q", cfg.OpenAI.AnswerModel)
	}
	if !cfg.OpenAI.Debug {
		t.Error("expected debug mode on")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.OpenAI.AnswerTimeout != 60*time.Second {
		t.Errorf("expected default answer_timeout, got %v", cfg.OpenAI.AnswerTimeout)
	}
	if cfg.Workflow.QuestionsPerCategory != 5 {
		t.Errorf("expected default questions_per_category, got %d", cfg.Workflow.QuestionsPerCategory)
	}
}

func TestParseRejectsUnknownDriver(t *testing.T) {
	_, err := parse([]byte("database:\n  driver: oracle\n"))
	if !errors.Is(err, ErrInvalidDriver) {
		t.Errorf("expected ErrInvalidDriver, got %v", err)
	}
}

func TestParseRejectsOversizedChunks(t *testing.T) {
	_, err := parse([]byte("persistence:\n  chunk_size: 500\n"))
	if !errors.Is(err, ErrInvalidChunkSize) {
		t.Errorf("expected ErrInvalidChunkSize, got %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Archive.Bucket != "brandlens-responses" {
		t.Errorf("expected archive bucket from file, got %q", cfg.Archive.Bucket)
	}
}

func TestGetDatabasePath(t *testing.T) {
	cfg := &Config{}
	defaultPath := cfg.GetDatabasePath()
	if filepath.Base(defaultPath) != "brandlens.db" {
		t.Errorf("expected default db file name, got %q", defaultPath)
	}

	cfg.Database.Path = "/custom/path.db"
	if cfg.GetDatabasePath() != "/custom/path.db" {
		t.Errorf("expected '/custom/path.db', got %q", cfg.GetDatabasePath())
	}
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("BRANDLENS_TEST_KEY", "sk-test")
	cfg := &Config{OpenAI: OpenAI{APIKeyEnv: "BRANDLENS_TEST_KEY"}}
	if cfg.APIKey() != "sk-test" {
		t.Errorf("expected key from env, got %q", cfg.APIKey())
	}
}
