package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
	Addr               string   `mapstructure:"addr" yaml:"addr"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins" yaml:"cors_allowed_origins"`
}

// SecurityConfig holds the secret the credential vault derives its key from.
// Changing it makes every stored ciphertext unreadable.
type SecurityConfig struct {
	Secret string `mapstructure:"secret" yaml:"secret"`
}

// OpenAIConfig holds the platform-default language-model settings.
type OpenAIConfig struct {
	// APIKey may be empty; the engine then runs in offline mode.
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
}

// TwilioConfig holds the platform-default messaging bundle.
type TwilioConfig struct {
	AccountSID     string `mapstructure:"account_sid" yaml:"account_sid"`
	AuthToken      string `mapstructure:"auth_token" yaml:"auth_token"`
	WhatsAppNumber string `mapstructure:"whatsapp_number" yaml:"whatsapp_number"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
}

// SchedulerConfig controls the notification scheduler.
type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Workers bounds per-user parallelism within one tick. 1 is sequential.
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// MetricsConfig controls the periodic metrics log line.
type MetricsConfig struct {
	LogIntervalSec int `mapstructure:"log_interval_sec" yaml:"log_interval_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	HTTP      HTTPConfig      `mapstructure:"http" yaml:"http"`
	Security  SecurityConfig  `mapstructure:"security" yaml:"security"`
	OpenAI    OpenAIConfig    `mapstructure:"openai" yaml:"openai"`
	Twilio    TwilioConfig    `mapstructure:"twilio" yaml:"twilio"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// DefaultConfigPath returns ~/.config/smarttask/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "smarttask", "config.yaml")
}

// DefaultDatabasePath returns ~/.config/smarttask/smarttask.db.
func DefaultDatabasePath() string {
	return filepath.Join(filepath.Dir(DefaultConfigPath()), "smarttask.db")
}

// envAliases lets the conventional provider variables work without the
// SMARTTASK_ prefix.
var envAliases = map[string][]string{
	"openai.api_key":         {"OPENAI_API_KEY"},
	"twilio.account_sid":     {"TWILIO_ACCOUNT_SID"},
	"twilio.auth_token":      {"TWILIO_AUTH_TOKEN"},
	"twilio.whatsapp_number": {"TWILIO_WHATSAPP_NUMBER"},
	"security.secret":        {"ENCRYPTION_SECRET"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath())
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cors_allowed_origins", []string{})
	v.SetDefault("security.secret", "")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("openai.max_tokens", 500)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("twilio.account_sid", "")
	v.SetDefault("twilio.auth_token", "")
	v.SetDefault("twilio.whatsapp_number", "")
	v.SetDefault("twilio.base_url", "https://api.twilio.com")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.workers", 1)
	v.SetDefault("metrics.log_interval_sec", 300)
}

// LoadConfig reads configuration from the YAML file at path, then overlays
// environment variables (SMARTTASK_OPENAI_API_KEY and friends, plus a local
// .env file). A missing config file is not an error.
func LoadConfig(path string) (*AppConfig, error) {
	// .env is optional.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SMARTTASK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	for key, names := range envAliases {
		args := append([]string{key, "SMARTTASK_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.OpenAI.MaxTokens <= 0 {
		cfg.OpenAI.MaxTokens = 500
	}
	if cfg.Scheduler.Workers < 1 {
		cfg.Scheduler.Workers = 1
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed. Secrets are written as given.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("database", cfg.Database)
	v.Set("http", cfg.HTTP)
	v.Set("security", cfg.Security)
	v.Set("openai", cfg.OpenAI)
	v.Set("twilio", cfg.Twilio)
	v.Set("scheduler", cfg.Scheduler)
	v.Set("metrics", cfg.Metrics)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
