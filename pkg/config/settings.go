package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Settings holds every runtime knob the application reads. Values come from
// environment variables (optionally via a .env file), with sensible defaults
// for local development.
type Settings struct {
	// LLM settings
	LLMModel       string        `mapstructure:"llm_model"`
	LLMTemperature float32       `mapstructure:"llm_temperature"`
	LLMTimeout     time.Duration `mapstructure:"llm_timeout"`
	OpenAIAPIKey   string        `mapstructure:"openai_api_key"`
	OpenAIBaseURL  string        `mapstructure:"openai_base_url"`

	// Agent behaviour
	MaxRevisions           int `mapstructure:"max_revisions"`
	CritiqueScoreThreshold int `mapstructure:"critique_score_threshold"`

	// Data
	DataPath string `mapstructure:"data_path"`

	// HTTP API
	ListenAddr string `mapstructure:"listen_addr"`

	// Session checkpointing
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// Load reads settings from the environment. A .env file in the working
// directory is honoured when present, matching how the rest of the tooling is
// configured in development.
func Load() (*Settings, error) {
	// Missing .env is not an error, only malformed ones are.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("llm_model", "gpt-4o-mini")
	v.SetDefault("llm_temperature", 0.0)
	v.SetDefault("llm_timeout", 60*time.Second)
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_base_url", "")
	v.SetDefault("max_revisions", 3)
	v.SetDefault("critique_score_threshold", 80)
	v.SetDefault("data_path", "data/portfolio.csv")
	v.SetDefault("listen_addr", ":8000")
	v.SetDefault("session_ttl", time.Hour)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "unmarshal settings")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate enforces the invariants the agent core relies on.
func (s *Settings) Validate() error {
	if s.MaxRevisions < 1 {
		return errors.Errorf("max_revisions must be >= 1, got %d", s.MaxRevisions)
	}
	if s.CritiqueScoreThreshold < 0 || s.CritiqueScoreThreshold > 100 {
		return errors.Errorf("critique_score_threshold must be in [0,100], got %d", s.CritiqueScoreThreshold)
	}
	if s.LLMTemperature < 0 || s.LLMTemperature > 2 {
		return errors.Errorf("llm_temperature must be in [0,2], got %f", s.LLMTemperature)
	}
	return nil
}
