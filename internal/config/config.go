package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv  string
	AppPort string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisAddr string
	AMQPURL   string
	JWTSecret string

	RefundBaseURL       string
	RefundAPIKey        string
	RefundCallbackToken string

	LoyaltyBaseURL string
	LoyaltyAPIKey  string

	// Cancellation policy knobs. The rate table and windows are product
	// policy, not a fixed contract, so everything is overridable per env.
	PendingSLA            time.Duration
	SweepInterval         time.Duration
	PreparingGraceWindow  time.Duration
	PreparingRefundRate   float64
	PartialRestoreLoyalty bool
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:  os.Getenv("APP_ENV"),
		AppPort: envOr("APP_PORT", "8080"),

		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     envOr("DB_PORT", "5432"),

		RedisAddr: envOr("REDIS_ADDR", "localhost:6379"),
		AMQPURL:   os.Getenv("AMQP_URL"),
		JWTSecret: os.Getenv("JWT_SECRET"),

		RefundBaseURL:       os.Getenv("REFUND_BASE_URL"),
		RefundAPIKey:        os.Getenv("REFUND_APIKEY"),
		RefundCallbackToken: os.Getenv("REFUND_CALLBACK_TOKEN"),

		LoyaltyBaseURL: os.Getenv("LOYALTY_BASE_URL"),
		LoyaltyAPIKey:  os.Getenv("LOYALTY_APIKEY"),

		PendingSLA:            envDuration("ORDER_PENDING_SLA", 10*time.Minute),
		SweepInterval:         envDuration("ORDER_SWEEP_INTERVAL", time.Minute),
		PreparingGraceWindow:  envDuration("CANCEL_PREPARING_GRACE", 5*time.Minute),
		PreparingRefundRate:   envFloat("CANCEL_PREPARING_RATE", 0.5),
		PartialRestoreLoyalty: envBool("POLICY_PARTIAL_RESTORE", false),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration for %s: %v", key, err)
	}
	return d
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Fatalf("invalid float for %s: %v", key, err)
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("invalid bool for %s: %v", key, err)
	}
	return b
}
