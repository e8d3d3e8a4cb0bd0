package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"supply-service/database"
	awspkg "supply-service/pkg/aws"

	"github.com/joho/godotenv"
)

const (
	TransportInline = "inline"
	TransportSNS    = "sns"

	dbSecretName = "supply/DB_CREDENTIALS"
)

// Config holds all configuration for the supply service.
type Config struct {
	Port string
	Env  string
	DB   database.Settings

	EditWindow        time.Duration
	FanoutConcurrency int
	RateLimitPerMin   int
	CORSOrigins       []string

	EventTransport   string
	EventsTopicARN   string
	EventsQueueURL   string
	CloudWatchOn     bool
	MetricsNamespace string
	LogGroup         string
	UseSecrets       bool
}

// secretGetter is the part of the Secrets Manager client config needs.
type secretGetter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// LoadConfig reads configuration from environment variables (and .env when
// present) with optional Secrets Manager override for DB credentials.
func LoadConfig(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port: getEnv("PORT", "8085"),
		Env:  getEnv("APP_ENV", "development"),
		DB: database.Settings{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Name:     os.Getenv("POSTGRES_DB"),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Kolkata"),
		},
		EditWindow:        time.Duration(getEnvInt("EDIT_WINDOW_HOURS", 24)) * time.Hour,
		FanoutConcurrency: getEnvInt("NOTIFICATION_FANOUT_CONCURRENCY", 8),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 300),
		CORSOrigins:       splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		EventTransport:    strings.ToLower(getEnv("EVENT_TRANSPORT", TransportInline)),
		EventsTopicARN:    os.Getenv("ORDER_EVENTS_TOPIC_ARN"),
		EventsQueueURL:    os.Getenv("ORDER_EVENTS_QUEUE_URL"),
		CloudWatchOn:      os.Getenv("CLOUDWATCH_ENABLED") == "true",
		MetricsNamespace:  getEnv("CLOUDWATCH_NAMESPACE", "SupplyService"),
		LogGroup:          os.Getenv("CLOUDWATCH_LOGS_GROUP"),
		UseSecrets:        os.Getenv("AWS_USE_SECRETS") == "true",
	}

	// Override DB credentials from Secrets Manager when running on AWS
	if cfg.UseSecrets {
		if awsCfg, err := awspkg.LoadAWSConfig(ctx); err == nil {
			applyDBSecret(ctx, cfg, awspkg.NewSecretsClient(awsCfg))
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDBSecret(ctx context.Context, cfg *Config, sm secretGetter) {
	dbjson, err := sm.GetSecret(ctx, dbSecretName)
	if err != nil || dbjson == "" {
		return
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(dbjson), &m); err != nil {
		return
	}
	for key, dst := range map[string]*string{
		"POSTGRES_USER":     &cfg.DB.User,
		"POSTGRES_PASSWORD": &cfg.DB.Password,
		"POSTGRES_DB":       &cfg.DB.Name,
		"POSTGRES_HOST":     &cfg.DB.Host,
		"POSTGRES_PORT":     &cfg.DB.Port,
	} {
		if v, ok := m[key]; ok && v != "" {
			*dst = v
		}
	}
}

func (c *Config) validate() error {
	if c.DB.User == "" || c.DB.Password == "" || c.DB.Name == "" {
		return fmt.Errorf("database config incomplete")
	}
	switch c.EventTransport {
	case TransportInline:
	case TransportSNS:
		if c.EventsTopicARN == "" {
			return fmt.Errorf("EVENT_TRANSPORT=sns requires ORDER_EVENTS_TOPIC_ARN")
		}
	default:
		return fmt.Errorf("unknown EVENT_TRANSPORT %q", c.EventTransport)
	}
	if c.EditWindow <= 0 {
		return fmt.Errorf("EDIT_WINDOW_HOURS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
