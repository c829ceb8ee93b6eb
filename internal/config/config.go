// Package config provides environment configuration for the concierge.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Data files
	DataDir     string
	CorpusFile  string
	ProfileFile string
	FeedbackDir string
	CorpusWatch bool
	RulesFile   string

	// Storage
	StorageDriver string
	DatabaseURL   string

	// NATS settings
	NATSEnabled  bool
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings. An empty secret disables the admin API.
	JWTSecret string

	// LLM settings
	LLMProvider     string
	GeminiAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	LLMModel        string
	LLMTimeout      time.Duration
	RerankTimeout   time.Duration
	LLMTemperature  float64
	LLMMaxTokens    int

	// Chat
	ChatCooldown        time.Duration
	ChatHistoryMessages int
	MaxConversations    int
	ConversationTTL     time.Duration
	ChatTurnTimeout     time.Duration

	// Persona
	AssistantName string
	SubjectName   string
	ContactEmail  string
	WorkPage      string
	EducationPage string

	// Admin rate limiting
	AdminRateLimitRequests int
	AdminRateLimitWindow   time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

var defaults = map[string]any{
	"PORT":                      "8080",
	"SERVER_READ_TIMEOUT":       30 * time.Second,
	"SERVER_WRITE_TIMEOUT":      60 * time.Second,
	"DATA_DIR":                  "./data/chatbot",
	"CORPUS_WATCH":              true,
	"STORAGE_DRIVER":            StorageFile,
	"NATS_ENABLED":              false,
	"NATS_URL":                  "nats://localhost:4222",
	"LLM_TIMEOUT":               30 * time.Second,
	"RERANK_TIMEOUT":            10 * time.Second,
	"LLM_TEMPERATURE":           0.7,
	"LLM_MAX_TOKENS":            1024,
	"CHAT_COOLDOWN":             8 * time.Second,
	"CHAT_HISTORY_MESSAGES":     20,
	"CHAT_MAX_CONVERSATIONS":    1000,
	"CHAT_CONVERSATION_TTL":     2 * time.Hour,
	"CHAT_TURN_TIMEOUT":         45 * time.Second,
	"WORK_PAGE":                 "/work",
	"EDUCATION_PAGE":            "/education",
	"ADMIN_RATE_LIMIT_REQUESTS": 60,
	"ADMIN_RATE_LIMIT_WINDOW":   time.Minute,
	"LOG_LEVEL":                 "info",
	"LOG_FORMAT":                "json",
	"TRACING_ENABLED":           false,
	"TRACING_ENDPOINT":          "localhost:4318",
}

// MinJWTSecretLength is the shortest accepted admin signing secret.
const MinJWTSecretLength = 32

// knownSecrets are placeholder secrets found in public sample configs.
var knownSecrets = []string{
	"development-secret-change-in-production",
	"secret",
	"changeme",
}

// keys without a default that are still read from the environment.
var optional = []string{
	"CORPUS_FILE", "PROFILE_FILE", "FEEDBACK_DIR", "RULES_FILE", "DATABASE_URL", "JWT_SECRET",
	"NATS_CA_FILE", "NATS_CERT_FILE", "NATS_KEY_FILE", "NATS_TOKEN",
	"LLM_PROVIDER", "GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "LLM_MODEL",
	"ASSISTANT_NAME", "SUBJECT_NAME", "CONTACT_EMAIL",
}

// Load reads configuration from a .env file when present, the environment,
// and the optional CONFIG_FILE, in increasing order of precedence for the
// environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range optional {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", file, err)
			}
		}
	}

	dataDir := v.GetString("DATA_DIR")
	cfg := &Config{
		ServerPort:         v.GetString("PORT"),
		ServerReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
		ServerWriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),

		DataDir:     dataDir,
		CorpusFile:  orDefault(v.GetString("CORPUS_FILE"), filepath.Join(dataDir, "knowledge-base", "chunks.json")),
		ProfileFile: orDefault(v.GetString("PROFILE_FILE"), filepath.Join(dataDir, "knowledge-base", "profile.json")),
		FeedbackDir: orDefault(v.GetString("FEEDBACK_DIR"), filepath.Join(dataDir, "feedback")),
		CorpusWatch: v.GetBool("CORPUS_WATCH"),
		RulesFile:   v.GetString("RULES_FILE"),

		StorageDriver: strings.ToLower(v.GetString("STORAGE_DRIVER")),
		DatabaseURL:   v.GetString("DATABASE_URL"),

		NATSEnabled:  v.GetBool("NATS_ENABLED"),
		NATSURL:      v.GetString("NATS_URL"),
		NATSCAFile:   v.GetString("NATS_CA_FILE"),
		NATSCertFile: v.GetString("NATS_CERT_FILE"),
		NATSKeyFile:  v.GetString("NATS_KEY_FILE"),
		NATSToken:    v.GetString("NATS_TOKEN"),

		JWTSecret: v.GetString("JWT_SECRET"),

		LLMProvider:     strings.ToLower(v.GetString("LLM_PROVIDER")),
		GeminiAPIKey:    v.GetString("GEMINI_API_KEY"),
		OpenAIAPIKey:    v.GetString("OPENAI_API_KEY"),
		AnthropicAPIKey: v.GetString("ANTHROPIC_API_KEY"),
		LLMModel:        v.GetString("LLM_MODEL"),
		LLMTimeout:      v.GetDuration("LLM_TIMEOUT"),
		RerankTimeout:   v.GetDuration("RERANK_TIMEOUT"),
		LLMTemperature:  v.GetFloat64("LLM_TEMPERATURE"),
		LLMMaxTokens:    v.GetInt("LLM_MAX_TOKENS"),

		ChatCooldown:        v.GetDuration("CHAT_COOLDOWN"),
		ChatHistoryMessages: v.GetInt("CHAT_HISTORY_MESSAGES"),
		MaxConversations:    v.GetInt("CHAT_MAX_CONVERSATIONS"),
		ConversationTTL:     v.GetDuration("CHAT_CONVERSATION_TTL"),
		ChatTurnTimeout:     v.GetDuration("CHAT_TURN_TIMEOUT"),

		AssistantName: v.GetString("ASSISTANT_NAME"),
		SubjectName:   v.GetString("SUBJECT_NAME"),
		ContactEmail:  v.GetString("CONTACT_EMAIL"),
		WorkPage:      v.GetString("WORK_PAGE"),
		EducationPage: v.GetString("EDUCATION_PAGE"),

		AdminRateLimitRequests: v.GetInt("ADMIN_RATE_LIMIT_REQUESTS"),
		AdminRateLimitWindow:   v.GetDuration("ADMIN_RATE_LIMIT_WINDOW"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		TracingEndpoint: v.GetString("TRACING_ENDPOINT"),
		TracingEnabled:  v.GetBool("TRACING_ENABLED"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StorageFile:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required when STORAGE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.JWTSecret != "" {
		if slices.Contains(knownSecrets, c.JWTSecret) {
			return errors.New("config: JWT_SECRET is a published placeholder; generate a random secret")
		}
		if len(c.JWTSecret) < MinJWTSecretLength {
			return fmt.Errorf("config: JWT_SECRET must be at least %d bytes", MinJWTSecretLength)
		}
	}

	if c.ChatTurnTimeout <= 0 {
		return errors.New("config: CHAT_TURN_TIMEOUT must be positive")
	}
	if c.ServerWriteTimeout > 0 && c.ChatTurnTimeout >= c.ServerWriteTimeout {
		return fmt.Errorf("config: CHAT_TURN_TIMEOUT (%s) must be shorter than SERVER_WRITE_TIMEOUT (%s)",
			c.ChatTurnTimeout, c.ServerWriteTimeout)
	}
	return nil
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
