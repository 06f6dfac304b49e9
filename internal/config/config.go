package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	LogFormat     string
	DatabaseURL   string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	SessionTTL       time.Duration
	RememberEmailTTL time.Duration

	AuthJWTSecret  string
	AuthTokenTTL   time.Duration
	LoginRateLimit float64
	LoginBurst     int

	IdentityBaseURL          string
	IdentityTimeout          time.Duration
	IdentityRetryMaxAttempts int

	CatalogFixturePath string

	// Submission boundary
	SubmitMode             string
	SubmitDelay            time.Duration
	SubmitFailureRate      float64
	SubmitBaseURL          string
	SubmitTimeout          time.Duration
	SubmitTotalTimeout     time.Duration
	SubmitRetryMaxAttempts int
	SubmitRetryBaseDelay   time.Duration
	SubmitQueueURL         string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	SQSEndpoint         string
	SESEndpoint         string

	// Email
	EmailProvider       string
	SendGridAPIKey      string
	EmailFrom           string
	EmailFromName       string
	EmailReplyTo        string
	SESConfigurationSet string

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		SessionTTL:       getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		RememberEmailTTL: getEnvAsDuration("REMEMBER_EMAIL_TTL", 90*24*time.Hour),

		AuthJWTSecret:  getEnv("AUTH_JWT_SECRET", ""),
		AuthTokenTTL:   getEnvAsDuration("AUTH_TOKEN_TTL", 12*time.Hour),
		LoginRateLimit: getEnvAsFloat("LOGIN_RATE_LIMIT", 1),
		LoginBurst:     getEnvAsInt("LOGIN_RATE_BURST", 5),

		IdentityBaseURL:          getEnv("IDENTITY_BASE_URL", ""),
		IdentityTimeout:          getEnvAsDuration("IDENTITY_TIMEOUT", 10*time.Second),
		IdentityRetryMaxAttempts: getEnvAsInt("IDENTITY_RETRY_MAX_ATTEMPTS", 3),

		CatalogFixturePath: getEnv("CATALOG_FIXTURE_PATH", ""),

		SubmitMode:             strings.ToLower(strings.TrimSpace(getEnv("SUBMIT_MODE", "simulated"))),
		SubmitDelay:            getEnvAsDuration("SUBMIT_DELAY", 1500*time.Millisecond),
		SubmitFailureRate:      getEnvAsFloat("SUBMIT_FAILURE_RATE", 0),
		SubmitBaseURL:          getEnv("SUBMIT_BASE_URL", ""),
		SubmitTimeout:          getEnvAsDuration("SUBMIT_TIMEOUT", 10*time.Second),
		SubmitTotalTimeout:     getEnvAsDuration("SUBMIT_TOTAL_TIMEOUT", 0),
		SubmitRetryMaxAttempts: getEnvAsInt("SUBMIT_RETRY_MAX_ATTEMPTS", 3),
		SubmitRetryBaseDelay:   getEnvAsDuration("SUBMIT_RETRY_BASE_DELAY", 250*time.Millisecond),
		SubmitQueueURL:         getEnv("SUBMIT_QUEUE_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		SQSEndpoint:         getEnv("SQS_ENDPOINT", ""),
		SESEndpoint:         getEnv("SES_ENDPOINT", ""),

		EmailProvider:       strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:           getEnv("EMAIL_FROM", ""),
		EmailFromName:       getEnv("EMAIL_FROM_NAME", "CareConnect"),
		EmailReplyTo:        getEnv("EMAIL_REPLY_TO", ""),
		SESConfigurationSet: getEnv("SES_CONFIGURATION_SET", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
