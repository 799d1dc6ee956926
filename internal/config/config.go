package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Providers    ProviderConfig     `mapstructure:"providers"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Lock         LockConfig         `mapstructure:"lock"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	BodyLimitMB int    `mapstructure:"body_limit_mb"`
	CORSOrigins string `mapstructure:"cors_origins"`
	StaticDir   string `mapstructure:"static_dir"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig selects the SQL driver. Driver is one of "postgres", "pgx" or "sqlite";
// Path is only used by sqlite.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"`
}

type StorageConfig struct {
	AudioDir string `mapstructure:"audio_dir"`
}

// ProviderConfig configures the OpenAI-compatible backend used for every collaborator
type ProviderConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ChatModel       string        `mapstructure:"chat_model"`
	EvalModel       string        `mapstructure:"eval_model"`
	TranscribeModel string        `mapstructure:"transcribe_model"`
	TTSModel        string        `mapstructure:"tts_model"`
	TTSVoice        string        `mapstructure:"tts_voice"`
	TTSFormat       string        `mapstructure:"tts_format"`
	Language        string        `mapstructure:"language"`
}

// ConversationConfig holds the turn-taking policy knobs
type ConversationConfig struct {
	EvalContextLimit  int `mapstructure:"eval_context_limit"`
	ReplyContextLimit int `mapstructure:"reply_context_limit"`
	// EndCallAfter forces a wrap-up once the reply context holds this many entries. 0 disables.
	// Must not exceed ReplyContextLimit unless that limit is 0 (unbounded).
	EndCallAfter int `mapstructure:"end_call_after"`
}

// LockConfig enables the Redis backed per-session lock when RedisAddr is set
type LockConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

type RateLimitConfig struct {
	Max    int           `mapstructure:"max"`
	Window time.Duration `mapstructure:"window"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads config.json from the usual locations, applying defaults and environment overrides.
// A missing config file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	homeDir, err := os.UserHomeDir()
	if err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".naduri"))
	}

	return load(v)
}

// LoadFile reads an explicit config file
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("NADURI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	loadEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.body_limit_mb", 25)
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("server.static_dir", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "naduri")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "naduri")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "./app.db")

	v.SetDefault("storage.audio_dir", "./storage/audio")

	v.SetDefault("providers.api_key", "")
	v.SetDefault("providers.base_url", "")
	v.SetDefault("providers.timeout", 60*time.Second)
	v.SetDefault("providers.chat_model", "gpt-4o-mini")
	v.SetDefault("providers.eval_model", "gpt-4o-mini")
	v.SetDefault("providers.transcribe_model", "gpt-4o-mini-transcribe")
	v.SetDefault("providers.tts_model", "tts-1")
	v.SetDefault("providers.tts_voice", "echo")
	v.SetDefault("providers.tts_format", "wav")
	v.SetDefault("providers.language", "Korean")

	v.SetDefault("conversation.eval_context_limit", 10)
	v.SetDefault("conversation.reply_context_limit", 20)
	v.SetDefault("conversation.end_call_after", 6)

	v.SetDefault("lock.redis_addr", "")
	v.SetDefault("lock.redis_password", "")
	v.SetDefault("lock.redis_db", 0)
	v.SetDefault("lock.ttl", 2*time.Minute)

	v.SetDefault("rate_limit.max", 60)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("metrics.enabled", true)
}

func loadEnvOverrides(cfg *Config) {
	// Database overrides
	if dbHost := os.Getenv("POSTGRES_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("POSTGRES_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			cfg.Database.Port = port
		}
	}
	if dbUser := os.Getenv("POSTGRES_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPass := os.Getenv("POSTGRES_PASSWORD"); dbPass != "" {
		cfg.Database.Password = dbPass
	}
	if dbName := os.Getenv("POSTGRES_DB"); dbName != "" {
		cfg.Database.Database = dbName
	}

	// The OpenAI SDKs read this variable by convention
	if cfg.Providers.APIKey == "" {
		cfg.Providers.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "pgx", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Conversation.EvalContextLimit < 0 || c.Conversation.ReplyContextLimit < 0 {
		return fmt.Errorf("context limits must not be negative")
	}
	if c.Conversation.EndCallAfter < 0 {
		return fmt.Errorf("conversation.end_call_after must not be negative")
	}
	// the wrap-up policy counts entries in the reply window, so it must fit inside it
	if c.Conversation.ReplyContextLimit > 0 && c.Conversation.EndCallAfter > c.Conversation.ReplyContextLimit {
		return fmt.Errorf("conversation.end_call_after (%d) exceeds conversation.reply_context_limit (%d)",
			c.Conversation.EndCallAfter, c.Conversation.ReplyContextLimit)
	}
	if c.Providers.Timeout <= 0 {
		return fmt.Errorf("providers.timeout must be positive")
	}
	return nil
}
