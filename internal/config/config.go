package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name     string `envconfig:"APP_NAME" default:"Smart Receipts"`
		Port     int    `envconfig:"PORT" default:"8080"`
		LogLevel string `envconfig:"APP_LOG_LEVEL" default:"info"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"smartreceipts"`
		SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
	}

	Auth struct {
		JWTSecret string `envconfig:"AUTH_JWT_SECRET"`
		Audience  string `envconfig:"AUTH_JWT_AUDIENCE" default:"authenticated"`
		Issuer    string `envconfig:"AUTH_JWT_ISSUER"`
	}

	OpenAI struct {
		APIKey         string        `envconfig:"OPENAI_API_KEY"`
		BaseURL        string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
		EmbeddingModel string        `envconfig:"OPENAI_EMBEDDING_MODEL" default:"text-embedding-ada-002"`
		Timeout        time.Duration `envconfig:"OPENAI_TIMEOUT" default:"20s"`
	}

	Storage struct {
		Bucket          string        `envconfig:"STORAGE_BUCKET" default:"receipts"`
		Region          string        `envconfig:"STORAGE_REGION" default:"us-east-1"`
		Endpoint        string        `envconfig:"STORAGE_ENDPOINT"`
		AccessKeyID     string        `envconfig:"STORAGE_ACCESS_KEY_ID"`
		SecretAccessKey string        `envconfig:"STORAGE_SECRET_ACCESS_KEY"`
		UsePathStyle    bool          `envconfig:"STORAGE_USE_PATH_STYLE" default:"true"`
		SignedURLTTL    time.Duration `envconfig:"STORAGE_SIGNED_URL_TTL" default:"168h"`
	}

	Redis struct {
		Addr     string `envconfig:"REDIS_ADDR"`
		Password string `envconfig:"REDIS_PASSWORD"`
		DB       int    `envconfig:"REDIS_DB" default:"0"`
	}

	Embedding struct {
		QueueSize     int           `envconfig:"EMBEDDING_QUEUE_SIZE" default:"256"`
		JobTimeout    time.Duration `envconfig:"EMBEDDING_JOB_TIMEOUT" default:"30s"`
		BackfillBatch int           `envconfig:"EMBEDDING_BACKFILL_BATCH" default:"10"`
	}

	CORS struct {
		AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	}

	// Client is read by the terminal client only.
	Client struct {
		APIURL      string `envconfig:"CLIENT_API_URL" default:"http://localhost:8080"`
		AccessToken string `envconfig:"CLIENT_ACCESS_TOKEN"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

// LogLevel maps APP_LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.App.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	return slog.LevelInfo
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
