// Package config loads typed settings from NOVA_* environment variables
// and an optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// API keys; empty keys leave the matching provider out of the
	// failover chain.
	GeminiAPIKey        string `mapstructure:"gemini_api_key"`
	GroqAPIKey          string `mapstructure:"groq_api_key"`
	DeepgramAPIKey      string `mapstructure:"deepgram_api_key"`
	CloudflareAccountID string `mapstructure:"cloudflare_account_id"`
	CloudflareAPIToken  string `mapstructure:"cloudflare_api_token"`

	SampleRate       int           `mapstructure:"sample_rate"`
	SilenceThreshold float64       `mapstructure:"silence_threshold"`
	SilenceDuration  time.Duration `mapstructure:"silence_duration"`
	MaxRecording     time.Duration `mapstructure:"max_recording"`

	MaxContextTurns int    `mapstructure:"max_context_turns"`
	Language        string `mapstructure:"language"`
	SystemPrompt    string `mapstructure:"system_prompt"`

	HistoryPath string `mapstructure:"history_path"`
}

// Load reads settings with precedence: environment variables over config
// file over defaults. A missing config file is fine.
func Load() (*Config, error) {
	v := viper.New()

	// Every key needs a default so AutomaticEnv can find it during
	// unmarshalling.
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("groq_api_key", "")
	v.SetDefault("deepgram_api_key", "")
	v.SetDefault("cloudflare_account_id", "")
	v.SetDefault("cloudflare_api_token", "")
	v.SetDefault("system_prompt", "")
	v.SetDefault("sample_rate", 16000)
	v.SetDefault("silence_threshold", 0.03)
	v.SetDefault("silence_duration", 1500*time.Millisecond)
	v.SetDefault("max_recording", 15*time.Second)
	v.SetDefault("max_context_turns", 10)
	v.SetDefault("language", "auto")
	v.SetDefault("history_path", "nova.db")

	v.SetEnvPrefix("NOVA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("nova")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/nova")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return config, nil
}

// Validate ensures at least one generation provider has credentials.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" && c.GroqAPIKey == "" {
		return fmt.Errorf("no generation provider configured, set NOVA_GEMINI_API_KEY or NOVA_GROQ_API_KEY")
	}
	return nil
}

// ConfiguredProviders names the providers whose credentials are present,
// for startup logging.
func (c *Config) ConfiguredProviders() []string {
	var configured []string
	if c.GeminiAPIKey != "" {
		configured = append(configured, "gemini")
	}
	if c.GroqAPIKey != "" {
		configured = append(configured, "groq")
	}
	if c.DeepgramAPIKey != "" {
		configured = append(configured, "deepgram")
	}
	if c.CloudflareAccountID != "" && c.CloudflareAPIToken != "" {
		configured = append(configured, "cloudflare")
	}
	return configured
}
