package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	LLM      LLMConfig
	Storage  StorageConfig
	Crypto   CryptoConfig
	OAuth    OAuthConfig
	Worker   WorkerConfig
	Pipeline PipelineConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret       string
	CompanyIDHeader string
}

type LLMConfig struct {
	OpenAIKey        string
	AnthropicKey     string
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	MaxRetries       int
	EmbeddingModel   string
}

type StorageConfig struct {
	SupabaseURL string
	SupabaseKey string
	Bucket      string
}

type CryptoConfig struct {
	// TokenEncryptionKey is the process-wide 32-byte key (base64) used to
	// seal OAuth tokens at rest. Rotated out of band.
	TokenEncryptionKey string
}

func (c CryptoConfig) Key() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.TokenEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("decode TOKEN_ENCRYPTION_KEY: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("TOKEN_ENCRYPTION_KEY must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	RedirectURL        string
	// SafetyMargin is subtracted from the access token expiry when deciding
	// whether a refresh is needed.
	SafetyMargin time.Duration
}

type WorkerConfig struct {
	Concurrency       int
	MaxAttempts       int
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	SyncLeaseTTL      time.Duration
	VisibilityTimeout time.Duration
	RecoverInterval   time.Duration
}

type PipelineConfig struct {
	OCRBackend          string // "tesseract" or "vision"
	VisionModel         string
	ParseModel          string
	ExtractTimeout      time.Duration
	CategorizeThreshold float64
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	concurrency, err := getEnvInt("WORKER_CONCURRENCY", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	maxAttempts, err := getEnvInt("JOB_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_MAX_ATTEMPTS: %w", err)
	}

	backoffBase, err := getEnvDuration("JOB_BACKOFF_BASE", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_BACKOFF_BASE: %w", err)
	}

	backoffCap, err := getEnvDuration("JOB_BACKOFF_CAP", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_BACKOFF_CAP: %w", err)
	}

	syncLeaseTTL, err := getEnvDuration("SYNC_LEASE_TTL", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_LEASE_TTL: %w", err)
	}

	visibilityTimeout, err := getEnvDuration("JOB_VISIBILITY_TIMEOUT", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_VISIBILITY_TIMEOUT: %w", err)
	}

	recoverInterval, err := getEnvDuration("JOB_RECOVER_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_RECOVER_INTERVAL: %w", err)
	}

	safetyMargin, err := getEnvDuration("TOKEN_REFRESH_SAFETY_MARGIN", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_REFRESH_SAFETY_MARGIN: %w", err)
	}

	extractTimeout, err := getEnvDuration("EXTRACT_TIMEOUT", 90*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid EXTRACT_TIMEOUT: %w", err)
	}

	categorizeThreshold, err := getEnvFloat("CATEGORIZE_THRESHOLD", 0.85)
	if err != nil {
		return nil, fmt.Errorf("invalid CATEGORIZE_THRESHOLD: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("JWT_SECRET", ""),
			CompanyIDHeader: getEnv("COMPANY_ID_HEADER", "X-Company-Id"),
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			DefaultModel:     getEnv("LLM_DEFAULT_MODEL", "gpt-4o-mini"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			MaxRetries:       maxRetries,
			EmbeddingModel:   getEnv("LLM_EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Storage: StorageConfig{
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:      getEnv("STORAGE_BUCKET", "documents"),
		},
		Crypto: CryptoConfig{
			TokenEncryptionKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),
		},
		OAuth: OAuthConfig{
			GoogleClientID:     getEnv("GOOGLE_OAUTH_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_OAUTH_CLIENT_SECRET", ""),
			RedirectURL:        getEnv("GOOGLE_OAUTH_REDIRECT_URI", ""),
			SafetyMargin:       safetyMargin,
		},
		Worker: WorkerConfig{
			Concurrency:       concurrency,
			MaxAttempts:       maxAttempts,
			BackoffBase:       backoffBase,
			BackoffCap:        backoffCap,
			SyncLeaseTTL:      syncLeaseTTL,
			VisibilityTimeout: visibilityTimeout,
			RecoverInterval:   recoverInterval,
		},
		Pipeline: PipelineConfig{
			OCRBackend:          getEnv("OCR_BACKEND", "tesseract"),
			VisionModel:         getEnv("OCR_VISION_MODEL", "gpt-4o"),
			ParseModel:          getEnv("PARSE_MODEL", "gpt-4o-mini"),
			ExtractTimeout:      extractTimeout,
			CategorizeThreshold: categorizeThreshold,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.Crypto.TokenEncryptionKey == "" {
		missing = append(missing, "TOKEN_ENCRYPTION_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if _, err := c.Crypto.Key(); err != nil {
		return err
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
