package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name      string `envconfig:"APP_NAME" default:"Outlay"`
		Port      int    `envconfig:"PORT" default:"8080"`
		LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
		LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"outlay"`
		SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
		Migrate  bool   `envconfig:"DB_MIGRATE" default:"true"`
	}

	Server struct {
		Timeout        time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		AllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
		MaxUploadBytes int64         `envconfig:"MAX_UPLOAD_BYTES" default:"5242880"`
	}

	Auth struct {
		Secret   string        `envconfig:"JWT_SECRET" required:"true"`
		Issuer   string        `envconfig:"JWT_ISSUER" default:"outlay"`
		TokenTTL time.Duration `envconfig:"JWT_TTL" default:"24h"`
	}

	Currency struct {
		BaseURL  string        `envconfig:"EXCHANGE_RATE_URL" default:"https://api.exchangerate-api.com/v4"`
		Timeout  time.Duration `envconfig:"EXCHANGE_RATE_TIMEOUT" default:"10s"`
		CacheTTL time.Duration `envconfig:"EXCHANGE_RATE_CACHE_TTL" default:"1h"`
	}

	Export struct {
		ReceiptHosts    []string `envconfig:"RECEIPT_ALLOWED_HOSTS"`
		ReceiptMaxBytes int64    `envconfig:"RECEIPT_MAX_BYTES" default:"10485760"`
	}

	NATS struct {
		URL           string `envconfig:"NATS_URL"`
		SubjectPrefix string `envconfig:"NATS_SUBJECT_PREFIX" default:"notifications.expenses"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
