package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	envConfigPath        = "SONGTLDR_CONFIG"
	envDotEnvPath        = "SONGTLDR_ENV_FILE"
	envBotToken          = "BOT_TOKEN"
	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	envBotAdmin          = "BOT_ADMIN"
	envTelegramAllowFrom = "TELEGRAM_ALLOW_FROM"
	envAPIKey            = "API_KEY"
	envGeniusToken       = "GENIUS_ACCESS_TOKEN"
	envOpenAIAPIKey      = "OPENAI_API_KEY"
)

const (
	DefaultSummarizerProvider = "openai"
	DefaultSummarizerModel    = "gpt-3.5-turbo"
	DefaultSummaryTimeoutMS   = 60000
	DefaultLyricsProvider     = "genius"
	DefaultGatewayHost        = "0.0.0.0"
	DefaultGatewayPort        = 18790
)

// Config is the root runtime configuration.
type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	Lyrics     LyricsConfig     `json:"lyrics"`
	Summarizer SummarizerConfig `json:"summarizer"`
	Gateway    GatewayConfig    `json:"gateway"`
	Logging    LoggingConfig    `json:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// TelegramConfig configures the Telegram transport and the admin filter.
type TelegramConfig struct {
	Enabled            bool     `json:"enabled"`
	Token              string   `json:"token"`
	AdminChatIDs       []int64  `json:"admin_chat_ids"`
	AllowFrom          []string `json:"allow_from"`
	DisableAdminMirror bool     `json:"disable_admin_mirror"`
}

// LyricsConfig configures the lyrics provider client.
type LyricsConfig struct {
	Provider              string `json:"provider"`
	BaseURL               string `json:"base_url"`
	APIBaseURL            string `json:"api_base_url"`
	AccessToken           string `json:"access_token"`
	UserAgent             string `json:"user_agent"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// SummarizerConfig configures the completion backend used for summaries.
type SummarizerConfig struct {
	Provider              string         `json:"provider"`
	Model                 string         `json:"model"`
	APIKey                string         `json:"api_key,omitempty"`
	APIKeyEnv             string         `json:"api_key_env"`
	BaseURL               string         `json:"base_url"`
	Organization          string         `json:"organization"`
	Project               string         `json:"project"`
	RequestTimeoutSeconds int            `json:"request_timeout_seconds"`
	TimeoutMS             int            `json:"timeout_ms"`
	MaxTokens             int            `json:"max_tokens"`
	Temperature           float64        `json:"temperature"`
	OpenCode              OpenCodeConfig `json:"opencode"`
}

// OpenCodeConfig configures the OpenCode summarizer backend.
type OpenCodeConfig struct {
	BaseURL     string `json:"base_url"`
	Username    string `json:"username"`
	PasswordEnv string `json:"password_env"`
}

// GatewayConfig configures the status server bind settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Default returns the configuration used when no config file is present.
func Default() Config {
	return Config{
		Telegram: TelegramConfig{Enabled: true},
		Lyrics:   LyricsConfig{Provider: DefaultLyricsProvider},
		Summarizer: SummarizerConfig{
			Provider:  DefaultSummarizerProvider,
			Model:     DefaultSummarizerModel,
			TimeoutMS: DefaultSummaryTimeoutMS,
		},
		Gateway: GatewayConfig{Host: DefaultGatewayHost, Port: DefaultGatewayPort},
	}
}

// LoadConfig loads .env, resolves an optional config.json on top of the defaults
// and applies environment overrides.
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := Default()

	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SummaryTimeoutMS returns the configured summarization race timeout, falling back to the default.
func (c SummarizerConfig) SummaryTimeoutMS() int {
	if c.TimeoutMS <= 0 {
		return DefaultSummaryTimeoutMS
	}

	return c.TimeoutMS
}

// ResolveAPIKey returns the explicit api key, then the value of api_key_env,
// then OPENAI_API_KEY.
func (c SummarizerConfig) ResolveAPIKey() string {
	if apiKey := strings.TrimSpace(c.APIKey); apiKey != "" {
		return apiKey
	}
	if apiKeyEnv := strings.TrimSpace(c.APIKeyEnv); apiKeyEnv != "" {
		if apiKey := strings.TrimSpace(os.Getenv(apiKeyEnv)); apiKey != "" {
			return apiKey
		}
	}

	return strings.TrimSpace(os.Getenv(envOpenAIAPIKey))
}

// loadDotEnv reads KEY=value pairs without overriding variables already set.
func loadDotEnv() error {
	path := strings.TrimSpace(os.Getenv(envDotEnvPath))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides injects env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	if token := firstEnv(envBotToken, envTelegramBotToken); token != "" {
		cfg.Telegram.Token = token
	}

	if rawAdmins := strings.TrimSpace(os.Getenv(envBotAdmin)); rawAdmins != "" {
		admins, err := parseChatIDs(rawAdmins)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envBotAdmin, err)
		}
		cfg.Telegram.AdminChatIDs = admins
	}

	if rawAllowFrom := strings.TrimSpace(os.Getenv(envTelegramAllowFrom)); rawAllowFrom != "" {
		cfg.Telegram.AllowFrom = parseCSV(rawAllowFrom)
	}

	if apiKey := strings.TrimSpace(os.Getenv(envAPIKey)); apiKey != "" {
		cfg.Summarizer.APIKey = apiKey
	}

	if token := strings.TrimSpace(os.Getenv(envGeniusToken)); token != "" {
		cfg.Lyrics.AccessToken = token
	}

	return nil
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}

	return ""
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// parseChatIDs parses a comma-separated list of numeric Telegram chat ids.
func parseChatIDs(input string) ([]int64, error) {
	values := parseCSV(input)
	ids := make([]int64, 0, len(values))
	for _, value := range values {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q", value)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// findConfigPath resolves the active config file location.
//
// SONGTLDR_CONFIG must point to a file when set. Otherwise cwd-local fallbacks
// are checked and an empty path means no file is present.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", nil
}
