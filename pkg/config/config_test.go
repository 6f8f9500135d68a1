package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFromEnvPath(t *testing.T) {
	unsetConfigEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
	  "telegram": {"enabled": true, "admin_chat_ids": [7]},
	  "summarizer": {"provider": "fantasy", "model": "openai/gpt-4o-mini"},
	  "gateway": {"host": "127.0.0.1", "port": 9000},
	  "logging": {"format": "json", "level": "debug", "add_source": true}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv(envConfigPath, path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Logging.Format != "json" {
		t.Fatalf("logging.format = %q, want %q", cfg.Logging.Format, "json")
	}
	if !cfg.Logging.AddSource {
		t.Fatal("logging.add_source = false, want true")
	}
	if cfg.Summarizer.Provider != "fantasy" {
		t.Fatalf("summarizer.provider = %q, want fantasy", cfg.Summarizer.Provider)
	}
	if cfg.Summarizer.TimeoutMS != DefaultSummaryTimeoutMS {
		t.Fatalf("summarizer.timeout_ms = %d, want default %d", cfg.Summarizer.TimeoutMS, DefaultSummaryTimeoutMS)
	}
	if cfg.Lyrics.Provider != DefaultLyricsProvider {
		t.Fatalf("lyrics.provider = %q, want %q", cfg.Lyrics.Provider, DefaultLyricsProvider)
	}
	if len(cfg.Telegram.AdminChatIDs) != 1 || cfg.Telegram.AdminChatIDs[0] != 7 {
		t.Fatalf("telegram.admin_chat_ids = %v, want [7]", cfg.Telegram.AdminChatIDs)
	}
}

func TestLoadConfigInvalidEnvPath(t *testing.T) {
	unsetConfigEnv(t)
	t.Setenv(envConfigPath, filepath.Join(t.TempDir(), "missing.json"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config path")
	}
}

func TestLoadConfigWithoutFileUsesDefaultsAndEnv(t *testing.T) {
	unsetConfigEnv(t)
	t.Chdir(t.TempDir())

	t.Setenv(envBotToken, "123:token")
	t.Setenv(envAPIKey, "sk-test")
	t.Setenv(envBotAdmin, "11, 22")
	t.Setenv(envGeniusToken, "genius-token")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Telegram.Token != "123:token" {
		t.Fatalf("telegram.token = %q", cfg.Telegram.Token)
	}
	if !cfg.Telegram.Enabled {
		t.Fatal("telegram should be enabled by default")
	}
	if cfg.Summarizer.APIKey != "sk-test" {
		t.Fatalf("summarizer.api_key = %q", cfg.Summarizer.APIKey)
	}
	if cfg.Summarizer.Model != DefaultSummarizerModel {
		t.Fatalf("summarizer.model = %q, want %q", cfg.Summarizer.Model, DefaultSummarizerModel)
	}
	if got := cfg.Telegram.AdminChatIDs; len(got) != 2 || got[0] != 11 || got[1] != 22 {
		t.Fatalf("admin chat ids = %v, want [11 22]", got)
	}
	if cfg.Lyrics.AccessToken != "genius-token" {
		t.Fatalf("lyrics.access_token = %q", cfg.Lyrics.AccessToken)
	}
}

func TestLoadConfigRejectsInvalidAdminID(t *testing.T) {
	unsetConfigEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv(envBotAdmin, "12,abc")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for non-numeric admin id")
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	unsetConfigEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TELEGRAM_BOT_TOKEN=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Telegram.Token != "from-dotenv" {
		t.Fatalf("telegram.token = %q, want from-dotenv", cfg.Telegram.Token)
	}
}

func TestSummaryTimeoutFallsBackToDefault(t *testing.T) {
	if got := (SummarizerConfig{}).SummaryTimeoutMS(); got != DefaultSummaryTimeoutMS {
		t.Fatalf("SummaryTimeoutMS = %d, want %d", got, DefaultSummaryTimeoutMS)
	}
	if got := (SummarizerConfig{TimeoutMS: 1500}).SummaryTimeoutMS(); got != 1500 {
		t.Fatalf("SummaryTimeoutMS = %d, want 1500", got)
	}
}

func TestResolveAPIKeyPrecedence(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-default")
	t.Setenv("TEST_SUMMARIZER_KEY", "sk-env")

	cfg := SummarizerConfig{APIKeyEnv: "TEST_SUMMARIZER_KEY"}
	if got := cfg.ResolveAPIKey(); got != "sk-env" {
		t.Fatalf("ResolveAPIKey() = %q, want sk-env", got)
	}

	cfg.APIKey = " sk-explicit "
	if got := cfg.ResolveAPIKey(); got != "sk-explicit" {
		t.Fatalf("ResolveAPIKey() = %q, want sk-explicit", got)
	}

	t.Setenv("TEST_SUMMARIZER_KEY", "")
	cfg.APIKey = ""
	if got := cfg.ResolveAPIKey(); got != "sk-default" {
		t.Fatalf("ResolveAPIKey() = %q, want sk-default", got)
	}
}

func TestParseCSV(t *testing.T) {
	got := parseCSV(" a, ,b ,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("parseCSV = %v, want [a b]", got)
	}
}

// unsetConfigEnv clears variables that would leak from the developer shell.
func unsetConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{envConfigPath, envDotEnvPath, envBotToken, envTelegramBotToken, envBotAdmin, envTelegramAllowFrom, envAPIKey, envGeniusToken, envOpenAIAPIKey} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}
