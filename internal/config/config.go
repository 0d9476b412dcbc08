package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all environment-driven settings. Provider keys toggle provider
// availability at startup: an unset key simply means that client is never
// registered. Base URLs are overridable so tests can point clients at fakes.
type Config struct {
	AppPort            int    `mapstructure:"APP_PORT"`
	DatabasePath       string `mapstructure:"DATABASE_PATH"`
	PublicHostURL      string `mapstructure:"PUBLIC_HOST_URL"`
	SessionSecret      string `mapstructure:"SESSION_SECRET"`
	GuestMessageLimit  int    `mapstructure:"GUEST_MESSAGE_LIMIT"`
	OpenAIAPIKey       string `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL      string `mapstructure:"OPENAI_BASE_URL"`
	GeminiAPIKey       string `mapstructure:"GEMINI_API_KEY"`
	GeminiBaseURL      string `mapstructure:"GEMINI_BASE_URL"`
	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	LogLevel           string `mapstructure:"LOG_LEVEL"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("APP_PORT", 8000)
	viper.SetDefault("DATABASE_PATH", "./database.db")
	viper.SetDefault("PUBLIC_HOST_URL", "http://localhost:8000")
	viper.SetDefault("SESSION_SECRET", "default-secret-key")
	viper.SetDefault("GUEST_MESSAGE_LIMIT", 10)
	viper.SetDefault("LOG_LEVEL", "INFO")
	// Empty defaults register the keys so AutomaticEnv can fill them during
	// Unmarshal; an unset provider key leaves that client unregistered.
	for _, key := range []string{
		"OPENAI_API_KEY", "OPENAI_BASE_URL",
		"GEMINI_API_KEY", "GEMINI_BASE_URL",
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET",
	} {
		viper.SetDefault(key, "")
	}

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
