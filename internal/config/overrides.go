package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. BRANDLENS_SERVER_PORT.
const EnvPrefix = "BRANDLENS"

// NewViper returns a viper instance reading BRANDLENS_* environment variables
// with dotted keys mapped to underscores.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyOverrides copies every key set in v (by bound flag or environment)
// over cfg and validates the result.
func ApplyOverrides(cfg *Config, v *viper.Viper) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"database.driver", &cfg.Database.Driver},
		{"database.path", &cfg.Database.Path},
		{"database.dsn", &cfg.Database.DSN},
		{"openai.base_url", &cfg.OpenAI.BaseURL},
		{"openai.answer_model", &cfg.OpenAI.AnswerModel},
		{"openai.generation_model", &cfg.OpenAI.GenerationModel},
		{"logging.level", &cfg.Logging.Level},
		{"logging.format", &cfg.Logging.Format},
		{"archive.endpoint", &cfg.Archive.Endpoint},
		{"archive.bucket", &cfg.Archive.Bucket},
	}
	for _, s := range strs {
		if v.IsSet(s.key) {
			*s.dst = v.GetString(s.key)
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"server.port", &cfg.Server.Port},
		{"workflow.questions_per_category", &cfg.Workflow.QuestionsPerCategory},
		{"persistence.chunk_size", &cfg.Persistence.ChunkSize},
	}
	for _, i := range ints {
		if v.IsSet(i.key) {
			*i.dst = v.GetInt(i.key)
		}
	}

	if v.IsSet("openai.debug") {
		cfg.OpenAI.Debug = v.GetBool("openai.debug")
	}
	if v.IsSet("archive.enabled") {
		cfg.Archive.Enabled = v.GetBool("archive.enabled")
	}

	return cfg.Validate()
}
