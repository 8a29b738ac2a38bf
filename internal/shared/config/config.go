package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"sparefinder-backend/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port               string
	CORSAllowOrigin    []string
	ObjectStoreType    string
	LocalStoreDir      string
	AWSRegion          string
	S3Bucket           string
	S3Prefix           string
	SSEKMSKeyID        string
	InferenceURL       string
	InferenceAPIKey    string
	InferenceTimeout   time.Duration
	DatabaseURL        string
	Env                string
	JWTSecret          string
	JWTIssuer          string
	UsageTimezone      string
	SignupBonusCredits int
	LogLevel           string
	LogFormat          string
	// Warnings collects values Load ignored or fell back on. Emit them with LogWarnings
	// once the logger is up.
	Warnings []string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	var l loader
	// Best-effort load of local env files for dev convenience.
	l.warn(loadEnvFiles(".env", "cmd/.env")...)

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		l.warn("DATABASE_URL is required in production")
	}

	return Config{
		Port:               getEnv("PORT", "8080"),
		CORSAllowOrigin:    splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType:    normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:      getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:          getEnv("AWS_REGION", ""),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Prefix:           getEnv("S3_PREFIX", "parts/"),
		SSEKMSKeyID:        getEnv("SSE_KMS_KEY_ID", ""),
		InferenceURL:       getEnv("INFERENCE_URL", ""),
		InferenceAPIKey:    getEnv("INFERENCE_API_KEY", ""),
		InferenceTimeout:   l.duration("INFERENCE_TIMEOUT", 60*time.Second),
		DatabaseURL:        dbURL,
		Env:                env,
		JWTSecret:          strings.TrimSpace(getEnv("AUTH_JWT_SECRET", "")),
		JWTIssuer:          strings.TrimSpace(getEnv("AUTH_JWT_ISSUER", "")),
		UsageTimezone:      getEnv("USAGE_TIMEZONE", "Local"),
		SignupBonusCredits: l.integer("SIGNUP_BONUS_CREDITS", 5),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		Warnings:           l.warnings,
	}
}

// LogWarnings reports everything Load had to ignore.
func (c Config) LogWarnings() {
	for _, w := range c.Warnings {
		telemetry.Warn("config.warning", map[string]any{"detail": w})
	}
}

type loader struct {
	warnings []string
}

func (l *loader) warn(msgs ...string) {
	l.warnings = append(l.warnings, msgs...)
}

// IsDevLike reports whether env allows dev-only routes and in-memory fallbacks.
func (c Config) IsDevLike() bool {
	switch c.Env {
	case "dev", "local":
		return true
	default:
		return false
	}
}

// loadEnvFiles loads KEY=VALUE pairs from the given files if they exist.
// Variables already present in the environment win. Unreadable files are skipped and reported.
func loadEnvFiles(paths ...string) []string {
	var warnings []string
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			warnings = append(warnings, fmt.Sprintf("ignoring %s: %v", path, err))
		}
	}
	return warnings
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func (l *loader) integer(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		l.warn(fmt.Sprintf("%s invalid int: %v", key, err))
		return def
	}
	return val
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		l.warn(fmt.Sprintf("%s invalid duration: %v", key, err))
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
