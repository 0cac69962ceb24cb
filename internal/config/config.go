package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"jaco-backend/internal/models"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseURL      string
	MigrationsDir    string
	DBMaxConns       int
	DBMinConns       int
	DBConnectTimeout time.Duration

	// Redis
	RedisURL         string
	RedisPoolSize    int
	RedisPingTimeout time.Duration

	// JWT
	JWTSecret string

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiEmbeddingModel string
	GeminiRequestsPerMin int
	GeminiConcurrentReqs int

	// Side chats
	SideChatIdleTTL time.Duration

	// Memories
	MemoryMaxInjected int

	// Topic split
	TopicConfigPath string
	WorkerCount     int
	JobTimeout      time.Duration

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		DatabaseURL:          mustGetEnv("DATABASE_URL"),
		MigrationsDir:        getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		DBMaxConns:           getEnvAsIntOrDefault("DB_MAX_CONNS", 25),
		DBMinConns:           getEnvAsIntOrDefault("DB_MIN_CONNS", 5),
		DBConnectTimeout:     getEnvAsDurationOrDefault("DB_CONNECT_TIMEOUT", 10*time.Second),
		RedisURL:             mustGetEnv("REDIS_URL"),
		RedisPoolSize:        getEnvAsIntOrDefault("REDIS_POOL_SIZE", 0),
		RedisPingTimeout:     getEnvAsDurationOrDefault("REDIS_PING_TIMEOUT", 5*time.Second),
		JWTSecret:            mustGetEnv("JWT_SECRET"),
		GeminiAPIKey:         mustGetEnv("GEMINI_API_KEY"),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-3-flash-preview"),
		GeminiEmbeddingModel: getEnvOrDefault("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
		GeminiRequestsPerMin: getEnvAsIntOrDefault("GEMINI_REQUESTS_PER_MINUTE", 60),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		SideChatIdleTTL:      getEnvAsDurationOrDefault("SIDE_CHAT_IDLE_TTL", 7*24*time.Hour),
		MemoryMaxInjected:    getEnvAsIntOrDefault("MEMORY_MAX_INJECTED", 20),
		TopicConfigPath:      getEnvOrDefault("TOPIC_CONFIG_PATH", ""),
		WorkerCount:          getEnvAsIntOrDefault("WORKER_COUNT", 3),
		JobTimeout:           getEnvAsDurationOrDefault("JOB_TIMEOUT", 2*time.Minute),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

// ClientConfig is what the jaco CLI needs to talk to a running server.
type ClientConfig struct {
	APIURL string
	Token  string
}

func LoadClient() ClientConfig {
	godotenv.Load()

	return ClientConfig{
		APIURL: getEnvOrDefault("JACO_API_URL", "http://localhost:8080/api/v1"),
		Token:  getEnvOrDefault("JACO_TOKEN", ""),
	}
}

// LoadTopicConfig returns the default topic tuning, overlaid with the YAML
// file at path when one is given. Keys missing from the file keep their defaults.
func LoadTopicConfig(path string) (models.TopicConfig, error) {
	cfg := models.DefaultTopicConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read topic config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse topic config %s: %w", path, err)
	}
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return cfg, fmt.Errorf("topic config: similarity_threshold must be within [0,1], got %v", cfg.SimilarityThreshold)
	}
	if cfg.EmbeddingWindow <= 0 {
		return cfg, fmt.Errorf("topic config: embedding_window must be positive")
	}
	return cfg, nil
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
