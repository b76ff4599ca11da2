package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

var (
	ErrInvalidDriver    = errors.New("database.driver must be sqlite or postgres")
	ErrInvalidChunkSize = errors.New("persistence.chunk_size must be between 1 and 100")
	ErrInvalidQuestions = errors.New("workflow.questions_per_category must not be negative")
)

type Config struct {
	Server      Server      `yaml:"server"`
	Database    Database    `yaml:"database"`
	OpenAI      OpenAI      `yaml:"openai"`
	Discovery   Discovery   `yaml:"discovery"`
	Workflow    Workflow    `yaml:"workflow"`
	Persistence Persistence `yaml:"persistence"`
	Archive     Archive     `yaml:"archive"`
	Logging     Logging     `yaml:"logging"`
}

type Server struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type Database struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type OpenAI struct {
	APIKeyEnv         string        `yaml:"api_key_env"`
	BaseURL           string        `yaml:"base_url"`
	AnswerModel       string        `yaml:"answer_model"`
	GenerationModel   string        `yaml:"generation_model"`
	Debug             bool          `yaml:"debug"`
	AnswerTimeout     time.Duration `yaml:"answer_timeout"`
	GenerationTimeout time.Duration `yaml:"generation_timeout"`
}

type Discovery struct {
	Timeout   time.Duration `yaml:"timeout"`
	MaxLinks  int           `yaml:"max_links"`
	UserAgent string        `yaml:"user_agent"`
}

type Workflow struct {
	QuestionsPerCategory int           `yaml:"questions_per_category"`
	CategoryDelay        time.Duration `yaml:"category_delay"`
	PromptDelay          time.Duration `yaml:"prompt_delay"`
	ContentMaxPages      int           `yaml:"content_max_pages"`
	PageTimeout          time.Duration `yaml:"page_timeout"`
}

type Persistence struct {
	ChunkSize      int           `yaml:"chunk_size"`
	ChunkDelay     time.Duration `yaml:"chunk_delay"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
}

type Archive struct {
	Enabled      bool   `yaml:"enabled"`
	Endpoint     string `yaml:"endpoint"`
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`
	UseSSL       bool   `yaml:"use_ssl"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ConfigDir returns the XDG config directory for brandlens.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "brandlens")
}

// DataDir returns the XDG data directory for brandlens.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "brandlens")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/brandlens/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'brandlens init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the configuration with every default applied and no file overlay.
func Default() *Config {
	return defaults()
}

func defaults() *Config {
	return &Config{
		Server: Server{Port: 8787, CORSOrigins: []string{"*"}},
		Database: Database{
			Driver: "sqlite",
		},
		OpenAI: OpenAI{
			APIKeyEnv:         "OPENAI_API_KEY",
			BaseURL:           "https://api.openai.com/v1",
			AnswerModel:       "gpt-4o-mini",
			GenerationModel:   "gpt-4o-mini",
			AnswerTimeout:     60 * time.Second,
			GenerationTimeout: 45 * time.Second,
		},
		Discovery: Discovery{
			Timeout:   10 * time.Second,
			MaxLinks:  50,
			UserAgent: "BrandLens/1.0 (+visibility analysis)",
		},
		Workflow: Workflow{
			QuestionsPerCategory: 5,
			CategoryDelay:        time.Second,
			PromptDelay:          250 * time.Millisecond,
			ContentMaxPages:      10,
			PageTimeout:          30 * time.Second,
		},
		Persistence: Persistence{
			ChunkSize:      50,
			ChunkDelay:     50 * time.Millisecond,
			MaxRetries:     3,
			RetryBaseDelay: 200 * time.Millisecond,
		},
		Logging: Logging{Level: "info", Format: "console"},
	}
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := defaults()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a workflow step.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return ErrInvalidDriver
	}
	if c.Persistence.ChunkSize < 1 || c.Persistence.ChunkSize > 100 {
		return ErrInvalidChunkSize
	}
	if c.Workflow.QuestionsPerCategory < 0 {
		return ErrInvalidQuestions
	}
	return nil
}

// GetDatabasePath returns the sqlite file path from config or the XDG default.
func (c *Config) GetDatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(DataDir(), "brandlens.db")
}

// APIKey resolves the OpenAI API key from the configured environment variable.
func (c *Config) APIKey() string {
	if c.OpenAI.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.OpenAI.APIKeyEnv)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
