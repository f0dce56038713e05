package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"courier-service/database"
	aws_pkg "courier-service/pkg/aws"
	"courier-service/registry"
	"courier-service/services"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the courier service.
type Config struct {
	Env  string
	Port string

	Postgres database.PostgresConfig
	RedisURL string

	PartnerCacheTTL       time.Duration
	CourierTimeout        time.Duration
	ComparisonConcurrency int
	DimensionalFactor     float64
	DegradedMode          bool
	CourierRPS            float64
	CourierBurst          int

	ShippingSNSTopicARN   string
	PartnerEventsQueueURL string

	UseSecrets        bool
	MetricsEnabled    bool
	MetricsNamespace  string
	CloudWatchEnabled bool
	CloudWatchGroup   string
}

// LoadConfig reads configuration from the environment (and .env when present)
// with an optional Secrets Manager override of the DB credentials.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:  getEnv("APP_ENV", "development"),
		Port: getEnv("PORT", "8093"),
		Postgres: database.PostgresConfig{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   os.Getenv("POSTGRES_DB"),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Kolkata"),
		},
		RedisURL: os.Getenv("REDIS_URL"),

		PartnerCacheTTL:       getDuration("PARTNER_CACHE_TTL", registry.DefaultPartnerTTL),
		CourierTimeout:        getDuration("COURIER_TIMEOUT", services.DefaultCourierTimeout),
		ComparisonConcurrency: getInt("COMPARISON_CONCURRENCY", services.DefaultComparisonConcurrency),
		DimensionalFactor:     getFloat("DIMENSIONAL_FACTOR", 5000),
		DegradedMode:          getEnv("DEGRADED_MODE_ENABLED", "true") == "true",
		CourierRPS:            getFloat("COURIER_RPS", 10),
		CourierBurst:          getInt("COURIER_BURST", 5),

		ShippingSNSTopicARN:   os.Getenv("SHIPPING_SNS_TOPIC_ARN"),
		PartnerEventsQueueURL: os.Getenv("PARTNER_EVENTS_QUEUE_URL"),

		UseSecrets:        os.Getenv("AWS_USE_SECRETS") == "true",
		MetricsEnabled:    os.Getenv("METRICS_ENABLED") == "true",
		MetricsNamespace:  getEnv("METRICS_NAMESPACE", "CourierService"),
		CloudWatchEnabled: os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchGroup:   getEnv("CLOUDWATCH_LOG_GROUP", "/ecommerce/courier-service"),
	}

	if cfg.UseSecrets {
		awsCfg, err := aws_pkg.LoadAWSConfig(context.Background())
		if err == nil {
			applyDBSecret(context.Background(), aws_pkg.NewSecretsClient(awsCfg), &cfg.Postgres)
		}
	}

	if cfg.Postgres.User == "" || cfg.Postgres.Password == "" || cfg.Postgres.DBName == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	if cfg.DimensionalFactor <= 0 {
		return nil, fmt.Errorf("DIMENSIONAL_FACTOR must be positive, got %v", cfg.DimensionalFactor)
	}
	return cfg, nil
}

type secretGetter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// applyDBSecret overrides DB settings from the courier/DB_CREDENTIALS secret.
func applyDBSecret(ctx context.Context, sm secretGetter, pg *database.PostgresConfig) {
	dbjson, err := sm.GetSecret(ctx, "courier/DB_CREDENTIALS")
	if err != nil || dbjson == "" {
		return
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(dbjson), &m); err != nil {
		return
	}
	if v, ok := m["POSTGRES_USER"]; ok && v != "" {
		pg.User = v
	}
	if v, ok := m["POSTGRES_PASSWORD"]; ok && v != "" {
		pg.Password = v
	}
	if v, ok := m["POSTGRES_DB"]; ok && v != "" {
		pg.DBName = v
	}
	if v, ok := m["POSTGRES_HOST"]; ok && v != "" {
		pg.Host = v
	}
	if v, ok := m["POSTGRES_PORT"]; ok && v != "" {
		pg.Port = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return fallback
}
