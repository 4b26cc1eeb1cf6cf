package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	JobStorePostgres = "postgres"
	JobStoreMemory   = "memory"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	JobStore         string
	DBAutoMigrate    bool
	EmbeddedWorker   bool
	JWTSecret        string
	JWTIssuer        string
	JWTAudience      string
	InternalToken    string
	CallbackSecret   string
	PublicBaseURL    string
	StoragePath      string
	StorageBaseURL   string
	S3Endpoint       string
	S3AccessKey      string
	S3SecretKey      string
	S3Bucket         string
	S3UseSSL         bool
	S3PublicURL      string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAITTSModel   string
	FalAPIKey        string
	FalQueueURL      string
	FalLipSyncModel  string
	RedisURL         string
	StaleJobTimeout  time.Duration
	KeepAlive        time.Duration
	WorkerPoll       time.Duration
	ProviderTimeout  time.Duration
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	CORSOrigins      []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             port,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JobStore:         strings.ToLower(getEnv("JOB_STORE", JobStorePostgres)),
		DBAutoMigrate:    getEnvBool("DB_AUTO_MIGRATE", false),
		EmbeddedWorker:   getEnvBool("EMBEDDED_WORKER", false),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTIssuer:        os.Getenv("JWT_ISSUER"),
		JWTAudience:      os.Getenv("JWT_AUDIENCE"),
		InternalToken:    os.Getenv("INTERNAL_TOKEN"),
		CallbackSecret:   os.Getenv("CALLBACK_SECRET"),
		PublicBaseURL:    strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:   strings.TrimRight(getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"), "/"),
		S3Endpoint:       os.Getenv("S3_ENDPOINT"),
		S3AccessKey:      os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:      os.Getenv("S3_SECRET_KEY"),
		S3Bucket:         getEnv("S3_BUCKET", "newscast"),
		S3UseSSL:         getEnvBool("S3_USE_SSL", true),
		S3PublicURL:      strings.TrimRight(os.Getenv("S3_PUBLIC_URL"), "/"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAITTSModel:   getEnv("OPENAI_TTS_MODEL", "tts-1"),
		FalAPIKey:        os.Getenv("FAL_API_KEY"),
		FalQueueURL:      getEnv("FAL_QUEUE_URL", "https://queue.fal.run"),
		FalLipSyncModel:  getEnv("FAL_LIPSYNC_MODEL", "fal-ai/sync-lipsync"),
		RedisURL:         os.Getenv("REDIS_URL"),
		StaleJobTimeout:  time.Minute * time.Duration(getEnvInt("STALE_JOB_TIMEOUT_MINUTES", 15)),
		KeepAlive:        time.Second * time.Duration(getEnvInt("KEEPALIVE_SECONDS", 30)),
		WorkerPoll:       time.Second * time.Duration(getEnvInt("WORKER_POLL_INTERVAL_SECONDS", 2)),
		ProviderTimeout:  time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 60)),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		CORSOrigins:      splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	switch cfg.JobStore {
	case JobStorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case JobStoreMemory:
		// Nothing outside this process can reach an in-memory store.
		cfg.EmbeddedWorker = true
	default:
		return nil, fmt.Errorf("JOB_STORE must be %q or %q", JobStorePostgres, JobStoreMemory)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.CallbackSecret == "" {
		cfg.CallbackSecret = cfg.JWTSecret
	}

	if _, err := url.Parse(cfg.PublicBaseURL); err != nil {
		return nil, fmt.Errorf("PUBLIC_BASE_URL is invalid: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
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

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
