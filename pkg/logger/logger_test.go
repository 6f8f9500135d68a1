package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"songtldr/pkg/config"
)

func TestLoggerJSONEntryShape(t *testing.T) {
	unsetLoggingEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json", Level: "info"}, &out)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.With("component", "pipeline").Info("Request finished", "request_id", "42", "replied", true)

	entry := decodeSingleEntry(t, out.String())

	if entry.Level != "info" {
		t.Fatalf("level = %q, want %q", entry.Level, "info")
	}
	if entry.Message != "Request finished" {
		t.Fatalf("message = %q, want %q", entry.Message, "Request finished")
	}
	if entry.Component != "pipeline" {
		t.Fatalf("component = %q, want %q", entry.Component, "pipeline")
	}
	if entry.Timestamp == "" {
		t.Fatal("expected timestamp")
	}
	if got := entry.Fields["request_id"]; got != "42" {
		t.Fatalf("fields.request_id = %v, want %q", got, "42")
	}
	if got := entry.Fields["replied"]; got != true {
		t.Fatalf("fields.replied = %v, want true", got)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	unsetLoggingEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json", Level: "error"}, &out)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.Info("Ignored")
	if got := strings.TrimSpace(out.String()); got != "" {
		t.Fatalf("expected no output for info, got %q", got)
	}

	log.Error("Kept")
	if got := strings.TrimSpace(out.String()); got == "" {
		t.Fatal("expected output for error")
	}
}

func TestLoggerEnvironmentOverrides(t *testing.T) {
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envLogFormat, "text")
	defer unsetLoggingEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json", Level: "error"}, &out)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.Debug("Debug enabled", "component", "test")
	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected debug output with env override")
	}
	if strings.HasPrefix(line, "{") {
		t.Fatalf("expected text format override, got %q", line)
	}
}

func TestLoggerDefaultsToTextFormat(t *testing.T) {
	unsetLoggingEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{}, &out)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.Info("Default format")
	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected log output")
	}
	if strings.HasPrefix(line, "{") {
		t.Fatalf("expected text format by default, got %q", line)
	}
}

func TestLoggerRejectsUnknownFormat(t *testing.T) {
	unsetLoggingEnv(t)

	if _, err := newWithWriter(config.LoggingConfig{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLoggerRedactsSecrets(t *testing.T) {
	unsetLoggingEnv(t)

	const token = "123456:ABCDEF"
	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json", Level: "info"}, &out, token, "")
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.With("url", "https://api.telegram.org/bot"+token+"/getMe").
		Error("Request failed for "+token, "error", errors.New("post bot"+token+": timeout"))

	raw := out.String()
	if strings.Contains(raw, token) {
		t.Fatalf("expected token to be redacted, got %q", raw)
	}

	entry := decodeSingleEntry(t, raw)
	if entry.Message != "Request failed for "+redactedValue {
		t.Fatalf("message = %q", entry.Message)
	}
	if got := entry.Fields["error"]; got != "post bot"+redactedValue+": timeout" {
		t.Fatalf("fields.error = %v", got)
	}
}

func TestSecretsCollectsCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Telegram.Token = "tg"
	cfg.Summarizer.APIKey = "sk"

	secrets := Secrets(&cfg)
	if len(secrets) != 3 || secrets[0] != "tg" || secrets[1] != "sk" {
		t.Fatalf("Secrets = %v", secrets)
	}
	if Secrets(nil) != nil {
		t.Fatal("expected nil secrets for nil config")
	}
}

func decodeSingleEntry(t *testing.T, raw string) LogEntry {
	t.Helper()

	line := strings.TrimSpace(raw)
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry LogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("unmarshal log entry: %v", err)
	}

	return entry
}

func unsetLoggingEnv(t *testing.T) {
	t.Helper()
	_ = os.Unsetenv(envLogLevel)
	_ = os.Unsetenv(envLogFormat)
	_ = os.Unsetenv(envLogAddSource)
}
