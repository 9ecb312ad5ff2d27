package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"call-screener/pkg/logger"
	"call-screener/pkg/utils"
)

// Config holds all configuration required by the API process.
// All values come from env (optionally pre-seeded from a .env file by main).
// No other package reads raw environment variables.
type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Auth       AuthConfig
	OpenAI     OpenAIConfig
	ElevenLabs ElevenLabsConfig
	Screening  ScreeningConfig
}

type AppConfig struct {
	Env  string
	Port int
	// LogLevel overrides the env's default level when set.
	LogLevel string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	// ConnectWait bounds how long startup keeps retrying an unreachable database.
	ConnectWait time.Duration
}

type RedisConfig struct {
	Host string
	Port int

	// SessionTTL bounds how long a call's telephony session id stays indexed.
	SessionTTL time.Duration
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	ChatModel       string
	TranscribeModel string
}

type ElevenLabsConfig struct {
	APIKey         string
	BaseURL        string
	DefaultVoiceID string
	ModelID        string
}

type ScreeningConfig struct {
	// Timeout bounds one transcription or classification round trip.
	Timeout time.Duration
	// SynthesisTimeout bounds a whole speech stream.
	SynthesisTimeout time.Duration

	Workers    int
	QueueSize  int
	MaxPerUser int

	// AutoRoute feeds the classifier's recommendation into routing for calls still ringing.
	AutoRoute bool

	// CallbackDelay is used when a callback is requested without an explicit time.
	CallbackDelay time.Duration
	// CallbackGrace is how long past its time a scheduled callback may stay open.
	CallbackGrace time.Duration

	HistoryLimit int
}

const (
	DefaultVoiceID         = "EXAVITQu4vr4xnSDxMaL"
	DefaultTTSModel        = "eleven_monolingual_v1"
	DefaultChatModel       = "gpt-4o"
	DefaultTranscribeModel = "whisper-1"
)

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port, parseErrs = requiredInt(parseErrs, "APP_PORT")
	c.App.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port, parseErrs = requiredInt(parseErrs, "DB_PORT")
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	c.DB.ConnectWait, parseErrs = optionalDuration(parseErrs, "DB_CONNECT_WAIT")

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port, parseErrs = requiredInt(parseErrs, "REDIS_PORT")
	c.Redis.SessionTTL, parseErrs = optionalDuration(parseErrs, "REDIS_SESSION_TTL")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL, parseErrs = optionalDuration(parseErrs, "JWT_ACCESS_TTL")

	c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	c.OpenAI.BaseURL = strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	c.OpenAI.ChatModel = strings.TrimSpace(os.Getenv("OPENAI_CHAT_MODEL"))
	c.OpenAI.TranscribeModel = strings.TrimSpace(os.Getenv("OPENAI_TRANSCRIBE_MODEL"))

	c.ElevenLabs.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	c.ElevenLabs.BaseURL = strings.TrimSpace(os.Getenv("ELEVENLABS_BASE_URL"))
	c.ElevenLabs.DefaultVoiceID = strings.TrimSpace(os.Getenv("ELEVENLABS_VOICE_ID"))
	c.ElevenLabs.ModelID = strings.TrimSpace(os.Getenv("ELEVENLABS_MODEL_ID"))

	c.Screening.Timeout, parseErrs = optionalDuration(parseErrs, "SCREENING_TIMEOUT")
	c.Screening.SynthesisTimeout, parseErrs = optionalDuration(parseErrs, "SYNTHESIS_TIMEOUT")
	c.Screening.Workers, parseErrs = optionalInt(parseErrs, "SCREENING_WORKERS")
	c.Screening.QueueSize, parseErrs = optionalInt(parseErrs, "SCREENING_QUEUE_SIZE")
	c.Screening.MaxPerUser, parseErrs = optionalInt(parseErrs, "SCREENING_MAX_PER_USER")
	c.Screening.AutoRoute = strings.EqualFold(strings.TrimSpace(os.Getenv("SCREENING_AUTO_ROUTE")), "true")
	c.Screening.CallbackDelay, parseErrs = optionalDuration(parseErrs, "CALLBACK_DEFAULT_DELAY")
	c.Screening.CallbackGrace, parseErrs = optionalDuration(parseErrs, "CALLBACK_GRACE")
	c.Screening.HistoryLimit, parseErrs = optionalInt(parseErrs, "CALL_HISTORY_LIMIT")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate applies defaults in place and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.LogLevel != "" {
		if _, err := logger.ParseLevel(c.App.LogLevel); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.DB.ConnectWait <= 0 {
		c.DB.ConnectWait = 30 * time.Second
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}
	if c.Redis.SessionTTL <= 0 {
		c.Redis.SessionTTL = 4 * time.Hour
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}

	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.OpenAI.ChatModel == "" {
		c.OpenAI.ChatModel = DefaultChatModel
	}
	if c.OpenAI.TranscribeModel == "" {
		c.OpenAI.TranscribeModel = DefaultTranscribeModel
	}

	if c.ElevenLabs.APIKey == "" {
		errs = append(errs, errors.New("ELEVENLABS_API_KEY is required"))
	}
	if c.ElevenLabs.BaseURL == "" {
		c.ElevenLabs.BaseURL = "wss://api.elevenlabs.io"
	} else if !strings.HasPrefix(c.ElevenLabs.BaseURL, "ws://") && !strings.HasPrefix(c.ElevenLabs.BaseURL, "wss://") {
		errs = append(errs, fmt.Errorf("ELEVENLABS_BASE_URL must be a ws:// or wss:// url, got %q", c.ElevenLabs.BaseURL))
	}
	if c.ElevenLabs.DefaultVoiceID == "" {
		c.ElevenLabs.DefaultVoiceID = DefaultVoiceID
	}
	if c.ElevenLabs.ModelID == "" {
		c.ElevenLabs.ModelID = DefaultTTSModel
	}

	s := &c.Screening
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.SynthesisTimeout <= 0 {
		s.SynthesisTimeout = 60 * time.Second
	}
	if s.Workers <= 0 {
		s.Workers = 8
	}
	if s.QueueSize <= 0 {
		s.QueueSize = 256
	}
	if s.MaxPerUser <= 0 {
		s.MaxPerUser = 4
	}
	if s.CallbackDelay <= 0 {
		s.CallbackDelay = time.Hour
	}
	if s.CallbackGrace <= 0 {
		s.CallbackGrace = 24 * time.Hour
	}
	if s.HistoryLimit <= 0 {
		s.HistoryLimit = 50
	}
	if s.HistoryLimit > 500 {
		errs = append(errs, fmt.Errorf("CALL_HISTORY_LIMIT must be <= 500, got %d", s.HistoryLimit))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// PostgresDSN contains the password; never log it.
func (c Config) PostgresDSN() string {
	return utils.PostgresDSN(c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func requiredInt(errs []error, key string) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, append(errs, fmt.Errorf("%s is required", key))
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func optionalInt(errs []error, key string) (int, []error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, errs
	}
	return requiredInt(errs, key)
}

// optionalDuration returns 0 when unset so Validate can apply the default.
func optionalDuration(errs []error, key string) (time.Duration, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be a duration, got %q", key, v))
	}
	return d, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
