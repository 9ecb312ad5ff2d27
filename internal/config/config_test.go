package config

import (
	"strings"
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:        AppConfig{Env: "local", Port: 8080},
		DB:         DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "screener"},
		Redis:      RedisConfig{Host: "localhost", Port: 6379},
		Auth:       AuthConfig{JWTSecret: "secret"},
		OpenAI:     OpenAIConfig{APIKey: "sk-test"},
		ElevenLabs: ElevenLabsConfig{APIKey: "el-test"},
	}
}

func TestValidate_ReportsEveryMissingField(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"APP_ENV", "DB_HOST", "REDIS_HOST", "JWT_SECRET", "OPENAI_API_KEY", "ELEVENLABS_API_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %q", want, err.Error())
		}
	}
}

func TestValidate_ProductionRequiresSSLModeAndIssuer(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
	if !strings.Contains(err.Error(), "DB_SSLMODE") || !strings.Contains(err.Error(), "JWT_ISSUER") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestValidate_AppliesDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.ElevenLabs.DefaultVoiceID != DefaultVoiceID || c.ElevenLabs.ModelID != DefaultTTSModel {
		t.Fatalf("unexpected tts defaults %+v", c.ElevenLabs)
	}
	if c.OpenAI.ChatModel != "gpt-4o" || c.OpenAI.TranscribeModel != "whisper-1" {
		t.Fatalf("unexpected openai defaults %+v", c.OpenAI)
	}
	if c.Screening.Timeout != 30*time.Second || c.Screening.SynthesisTimeout != time.Minute {
		t.Fatalf("unexpected timeouts %+v", c.Screening)
	}
	if c.Screening.HistoryLimit != 50 || c.Screening.CallbackDelay != time.Hour {
		t.Fatalf("unexpected screening defaults %+v", c.Screening)
	}
	if c.Redis.SessionTTL != 4*time.Hour {
		t.Fatalf("unexpected session ttl %v", c.Redis.SessionTTL)
	}
	if c.DB.ConnectWait != 30*time.Second {
		t.Fatalf("unexpected db connect wait %v", c.DB.ConnectWait)
	}
}

func TestValidate_RejectsHTTPSpeechURL(t *testing.T) {
	c := validLocal()
	c.ElevenLabs.BaseURL = "https://api.elevenlabs.io"
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "ELEVENLABS_BASE_URL") {
		t.Fatalf("expected base url error, got %v", err)
	}
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	env := map[string]string{
		"APP_ENV": "dev", "APP_PORT": "9000",
		"DB_HOST": "db", "DB_PORT": "5432", "DB_USER": "u", "DB_NAME": "n",
		"REDIS_HOST": "cache", "REDIS_PORT": "6379", "REDIS_SESSION_TTL": "2h",
		"JWT_SECRET":         "s",
		"OPENAI_API_KEY":     "k",
		"ELEVENLABS_API_KEY": "e",
		"SCREENING_TIMEOUT":  "5s", "SCREENING_AUTO_ROUTE": "true", "CALL_HISTORY_LIMIT": "20",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.App.Port != 9000 || c.RedisAddr() != "cache:6379" || c.Redis.SessionTTL != 2*time.Hour {
		t.Fatalf("unexpected config %+v", c)
	}
	if c.Screening.Timeout != 5*time.Second || !c.Screening.AutoRoute || c.Screening.HistoryLimit != 20 {
		t.Fatalf("unexpected screening %+v", c.Screening)
	}
}

func TestLoad_ReportsBadDuration(t *testing.T) {
	t.Setenv("APP_PORT", "1")
	t.Setenv("DB_PORT", "1")
	t.Setenv("REDIS_PORT", "1")
	t.Setenv("SCREENING_TIMEOUT", "soon")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "SCREENING_TIMEOUT") {
		t.Fatalf("expected duration error, got %v", err)
	}
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	c := validLocal()
	c.App.LogLevel = "chatty"
	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "LOG_LEVEL") {
		t.Fatalf("expected LOG_LEVEL error, got %v", err)
	}

	c = validLocal()
	c.App.LogLevel = "warn"
	if err := c.Validate(); err != nil {
		t.Fatalf("warn is a valid level: %v", err)
	}
}
