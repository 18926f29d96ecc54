package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/transcribot/transcribot/internal/consts"
)

type Config struct {
	TelegramBotToken string

	// Transcription / translation backends
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	WhisperModel        string
	TranslationProvider string
	TranslationModel    string
	GeminiAPIKey        string
	GeminiModel         string

	// Persistence
	PostgreDSN string
	SQLitePath string

	LogLevel string
	LogDir   string

	// Freemium and job limits
	DailyFreeLimit     int
	MaxFileSizeMB      int
	SessionIdleTimeout time.Duration
	QuotaTimezone      string
	FFmpegPath         string
	MaxConcurrentJobs  int
	JobTimeout         time.Duration

	// Webhook server and payments
	WebhookPort             string
	BaseURL                 string
	StripeSecretKey         string
	StripeWebhookSecret     string
	StripeSubscriptionPrice string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:       os.Getenv("OPENAI_BASE_URL"),
		WhisperModel:        getEnvOrDefault("WHISPER_MODEL", "whisper-1"),
		TranslationProvider: strings.ToLower(getEnvOrDefault("TRANSLATION_PROVIDER", "openai")),
		TranslationModel:    getEnvOrDefault("TRANSLATION_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),

		PostgreDSN: os.Getenv("POSTGRE_DSN"),
		SQLitePath: os.Getenv("SQLITE_PATH"),

		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		LogDir:   getEnvOrDefault("LOG_DIR", "logs"),

		QuotaTimezone: getEnvOrDefault("QUOTA_TIMEZONE", "UTC"),
		FFmpegPath:    getEnvOrDefault("FFMPEG_PATH", "ffmpeg"),

		WebhookPort:             getEnvOrDefault("WEBHOOK_PORT", "8080"),
		BaseURL:                 os.Getenv("BASE_URL"),
		StripeSecretKey:         os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:     os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeSubscriptionPrice: os.Getenv("STRIPE_SUBSCRIPTION_PRICE"),
	}

	var err error
	if cfg.DailyFreeLimit, err = getEnvInt("DAILY_FREE_LIMIT", consts.DefaultDailyFree); err != nil {
		return nil, err
	}
	if cfg.MaxFileSizeMB, err = getEnvInt("MAX_FILE_SIZE_MB", consts.DefaultMaxFileSizeMB); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrentJobs, err = getEnvInt("MAX_CONCURRENT_JOBS", 8); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTimeout, err = getEnvDuration("SESSION_IDLE_TIMEOUT", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.JobTimeout, err = getEnvDuration("JOB_TIMEOUT", consts.DefaultJobTimeout); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	required := map[string]string{
		"TELEGRAM_BOT_TOKEN": c.TelegramBotToken,
		"OPENAI_API_KEY":     c.OpenAIAPIKey,
	}

	for key, value := range required {
		if value == "" {
			return fmt.Errorf("required environment variable %s is not set", key)
		}
	}

	if c.DailyFreeLimit < 0 {
		return fmt.Errorf("DAILY_FREE_LIMIT must not be negative, got %d", c.DailyFreeLimit)
	}
	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE_MB must be positive, got %d", c.MaxFileSizeMB)
	}
	if c.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be positive, got %d", c.MaxConcurrentJobs)
	}
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive, got %s", c.SessionIdleTimeout)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("JOB_TIMEOUT must be positive, got %s", c.JobTimeout)
	}
	if _, err := time.LoadLocation(c.QuotaTimezone); err != nil {
		return fmt.Errorf("invalid QUOTA_TIMEZONE %q: %w", c.QuotaTimezone, err)
	}

	switch c.TranslationProvider {
	case "openai":
	case "gemini":
		if !c.HasGeminiConfig() {
			return fmt.Errorf("TRANSLATION_PROVIDER=gemini requires GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown TRANSLATION_PROVIDER %q", c.TranslationProvider)
	}

	return nil
}

func (c *Config) HasDatabaseConfig() bool {
	return c.PostgreDSN != ""
}

func (c *Config) HasSQLiteConfig() bool {
	return c.SQLitePath != ""
}

func (c *Config) HasGeminiConfig() bool {
	return c.GeminiAPIKey != "" && c.GeminiModel != ""
}

// HasStripeConfig reports whether payments can work end to end. Without
// the webhook secret no paid subscription could ever be activated.
func (c *Config) HasStripeConfig() bool {
	return c.StripeSecretKey != "" && c.StripeSubscriptionPrice != "" && c.StripeWebhookSecret != ""
}

// HasPartialStripeConfig reports Stripe settings that are present but
// not enough to enable payments
func (c *Config) HasPartialStripeConfig() bool {
	return !c.HasStripeConfig() && (c.StripeSecretKey != "" || c.StripeSubscriptionPrice != "" || c.StripeWebhookSecret != "")
}

// MaxFileSizeBytes returns the upload limit in bytes
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// Location returns the time zone used for daily quota boundaries
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.QuotaTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnvOrDefault returns the environment variable value or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
