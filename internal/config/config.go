package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Reminder ledger backends.
const (
	LedgerStore = "store"
	LedgerRedis = "redis"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	DatabaseURL    string
	UseMemoryStore bool
	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool
	JWTSecret      string
	Timezone       string

	// Scheduler
	SchedulerEnabled bool
	ReminderInterval time.Duration
	ReminderWindow   time.Duration
	RolloverHour     int
	ReminderLedger   string

	// Email
	EmailProvider  string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPass       string
	MailFrom       string
	MailFromName   string
	SendGridAPIKey string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	EventsQueueURL      string

	RouteSeed          uint64
	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		UseMemoryStore: getEnvAsBool("USE_MEMORY_STORE", false),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		Timezone:       getEnv("TIMEZONE", "Africa/Dakar"),

		SchedulerEnabled: getEnvAsBool("SCHEDULER_ENABLED", true),
		ReminderInterval: getEnvAsDuration("REMINDER_INTERVAL", time.Minute),
		ReminderWindow:   getEnvAsDuration("REMINDER_WINDOW", 3*time.Hour),
		RolloverHour:     getEnvAsInt("ROLLOVER_HOUR", 0),
		ReminderLedger:   strings.ToLower(strings.TrimSpace(getEnv("REMINDER_LEDGER", LedgerStore))),

		EmailProvider:  strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SMTPHost:       getEnv("SMTP_HOST", ""),
		SMTPPort:       getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:       getEnv("SMTP_USER", ""),
		SMTPPass:       getEnv("SMTP_PASS", ""),
		MailFrom:       getEnv("MAIL_FROM", "noreply@consultation.sn"),
		MailFromName:   getEnv("MAIL_FROM_NAME", ""),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),

		AWSRegion:           getEnv("AWS_REGION", "eu-west-3"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		EventsQueueURL:      getEnv("EVENTS_QUEUE_URL", ""),

		RouteSeed:          uint64(getEnvAsInt("ROUTE_SEED", 42)),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
	}
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
}

// Location resolves TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate reports every setting that would stop the server from starting.
func (c *Config) Validate() error {
	var errs []error
	if !c.UseMemoryStore && c.DatabaseURL == "" {
		errs = append(errs, errors.New("config: DATABASE_URL is required unless USE_MEMORY_STORE=true"))
	}
	if c.IsProduction() && c.JWTSecret == "" {
		errs = append(errs, errors.New("config: JWT_SECRET is required in production"))
	}
	if c.RolloverHour < 0 || c.RolloverHour > 23 {
		errs = append(errs, fmt.Errorf("config: ROLLOVER_HOUR %d out of range", c.RolloverHour))
	}
	if c.ReminderInterval <= 0 || c.ReminderWindow <= 0 {
		errs = append(errs, errors.New("config: REMINDER_INTERVAL and REMINDER_WINDOW must be positive"))
	}
	switch c.ReminderLedger {
	case LedgerStore:
	case LedgerRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("config: REMINDER_LEDGER=redis needs REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown REMINDER_LEDGER %q", c.ReminderLedger))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("config: RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
