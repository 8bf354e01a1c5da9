package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents application configuration loaded from environment variables.
// Empty Gemini model and URL fields select the client defaults.
type Config struct {
	AppEnv              string
	LogLevel            string
	Port                string
	GeminiAPIKey        string
	GeminiBaseURL       string
	GeminiTextModel     string
	GeminiTextProModel  string
	GeminiImageModel    string
	GeminiImageProModel string
	GeminiRPS           float64
	ComplexStrategy     bool
	ConflictPolicy      string
	ExportDir           string
	GeoIPDBPath         string
	DefaultLocale       string
	CORSAllowedOrigins  []string
	MaxUploadBytes      int64
	SessionTTL          time.Duration
	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPIdleTimeout     time.Duration
	GenerationTimeout   time.Duration
	RateLimitPerMin     int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		LogLevel:            os.Getenv("LOG_LEVEL"),
		Port:                getEnv("PORT", "8080"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:       os.Getenv("GEMINI_BASE_URL"),
		GeminiTextModel:     os.Getenv("GEMINI_TEXT_MODEL"),
		GeminiTextProModel:  os.Getenv("GEMINI_TEXT_PRO_MODEL"),
		GeminiImageModel:    os.Getenv("GEMINI_IMAGE_MODEL"),
		GeminiImageProModel: os.Getenv("GEMINI_IMAGE_PRO_MODEL"),
		GeminiRPS:           getEnvFloat("GEMINI_REQUESTS_PER_SECOND", 2),
		ComplexStrategy:     getEnvBool("COMPLEX_STRATEGY", true),
		ConflictPolicy:      strings.ToLower(getEnv("GENERATION_CONFLICT_POLICY", "cancel")),
		ExportDir:           getEnv("EXPORT_DIR", "./data"),
		GeoIPDBPath:         os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:       getEnv("DEFAULT_LOCALE", "en"),
		CORSAllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		MaxUploadBytes:      int64(getEnvInt("MAX_UPLOAD_MB", 10)) << 20,
		SessionTTL:          time.Minute * time.Duration(getEnvInt("SESSION_TTL_MINUTES", 120)),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		GenerationTimeout:   time.Second * time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 240)),
		RateLimitPerMin:     getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required),
		validation.Field(&c.ConflictPolicy, validation.In("cancel", "reject")),
		validation.Field(&c.ExportDir, validation.Required),
		validation.Field(&c.GeminiRPS, validation.Min(0.0)),
		validation.Field(&c.MaxUploadBytes, validation.Min(int64(1))),
		validation.Field(&c.RateLimitPerMin, validation.Min(1)),
	)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Offline reports whether no provider credentials are configured, in
// which case the synthetic provider serves all requests.
func (c *Config) Offline() bool {
	return strings.TrimSpace(c.GeminiAPIKey) == ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
