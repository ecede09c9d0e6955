package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	MongoURI    string
	DBName      string
	Port        string
	GinMode     string
	CORSOrigins []string

	// Gemini / embeddings
	GeminiAPIKey    string
	GeminiModel     string
	EmbeddingsModel string
	GeminiTier      string

	// arXiv catalog
	ArxivAPIURL     string
	ArxivMaxResults int

	// Redis (rate limiting + task queue)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	RateLimitReqs   int
	RateLimitWindow int

	// RAG defaults
	DefaultTopK         int
	RerankCandidateMult int
	MaxHistoryMessages  int
	ContextMessages     int

	// SMTP digest
	SMTPHost         string
	SMTPPort         string
	SMTPUser         string
	SMTPPass         string
	SMTPFrom         string
	DigestRecipients []string

	// Scheduler defaults
	FetchHour         int
	FetchMinute       int
	DigestHour        int
	DigestMinute      int
	IndexSweepMinutes int

	// Tracing
	TracingEnabled bool
	OTLPEndpoint   string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017/artintellect"),
		DBName:      getEnv("DB_NAME", "artintellect"),
		Port:        getEnv("PORT", "8000"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8000"), ","),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		EmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GeminiTier:      getEnv("GEMINI_TIER", "free"),

		ArxivAPIURL:     getEnv("ARXIV_API_URL", "https://export.arxiv.org/api/query"),
		ArxivMaxResults: getEnvInt("ARXIV_MAX_RESULTS", 50),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		DefaultTopK:         getEnvInt("QA_DEFAULT_TOP_K", 5),
		RerankCandidateMult: getEnvInt("QA_RERANK_CANDIDATE_MULT", 3),
		MaxHistoryMessages:  getEnvInt("CONVERSATION_MAX_MESSAGES", 20),
		ContextMessages:     getEnvInt("CONVERSATION_CONTEXT_MESSAGES", 6),

		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnv("SMTP_PORT", "587"),
		SMTPUser:         getEnv("SMTP_USER", ""),
		SMTPPass:         getEnv("SMTP_PASS", ""),
		SMTPFrom:         getEnv("SMTP_FROM", ""),
		DigestRecipients: strings.Split(getEnv("DIGEST_RECIPIENTS", ""), ","),

		FetchHour:         getEnvInt("FETCH_HOUR", 8),
		FetchMinute:       getEnvInt("FETCH_MINUTE", 0),
		DigestHour:        getEnvInt("DIGEST_HOUR", 9),
		DigestMinute:      getEnvInt("DIGEST_MINUTE", 0),
		IndexSweepMinutes: getEnvInt("INDEX_SWEEP_MINUTES", 240),

		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	// REDIS_URL may be a full URL (managed Redis) or a bare host:port.
	// Normalize here so the rate limiter and the task queue agree on it.
	if strings.HasPrefix(cfg.RedisURL, "redis://") || strings.HasPrefix(cfg.RedisURL, "rediss://") {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %v", err)
		}
		cfg.RedisURL = opt.Addr
		if opt.Password != "" {
			cfg.RedisPassword = opt.Password
		}
		cfg.RedisDB = opt.DB
	}

	// GEMINI_API_KEY is deliberately optional: without it the language model
	// gateway starts disabled and every dependent operation degrades.
	if cfg.DefaultTopK < 1 {
		return nil, fmt.Errorf("QA_DEFAULT_TOP_K must be >= 1")
	}
	if cfg.MaxHistoryMessages < 2 {
		return nil, fmt.Errorf("CONVERSATION_MAX_MESSAGES must be >= 2")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
