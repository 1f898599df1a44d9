package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Twilio WhatsApp
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWebhookSecret  string
	TwilioWhatsAppNumber string
	WhatsAppSimulate     bool

	// NLU providers
	GeminiAPIKey          string
	GeminiModelID         string
	BedrockModelID        string
	NLUTimeout            time.Duration
	NLUBreakerMaxFailures int
	NLUBreakerCooldown    time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Scheduling policy
	SlotHorizonDays     int
	SlotMaxResults      int
	AppointmentDuration time.Duration
	OfferTTL            time.Duration
	NPSStateTTL         time.Duration

	// Background jobs
	WorkerInterval           time.Duration
	ReminderLead             time.Duration
	ReminderWindow           time.Duration
	PaymentReminderAfterDays int

	// Staff email
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string

	AdminJWTSecret     string
	ArchiveBucket      string
	CORSAllowedOrigins []string
	ConfirmRateLimit   float64
	ConfirmRateBurst   int
	WebhookDedup       bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		TwilioAccountSID:     getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:      getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWebhookSecret:  getEnv("TWILIO_WEBHOOK_SECRET", ""),
		TwilioWhatsAppNumber: getEnv("TWILIO_WHATSAPP_NUMBER", ""),
		WhatsAppSimulate:     getEnvAsBool("WHATSAPP_SIMULATE", false),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:         getEnv("GEMINI_MODEL_ID", "gemini-1.5-flash"),
		BedrockModelID:        getEnv("BEDROCK_MODEL_ID", ""),
		NLUTimeout:            getEnvAsDuration("NLU_TIMEOUT", 12*time.Second),
		NLUBreakerMaxFailures: getEnvAsInt("NLU_BREAKER_MAX_FAILURES", 5),
		NLUBreakerCooldown:    getEnvAsDuration("NLU_BREAKER_COOLDOWN", 30*time.Second),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		SlotHorizonDays:     getEnvAsInt("SLOT_HORIZON_DAYS", 30),
		SlotMaxResults:      getEnvAsInt("SLOT_MAX_RESULTS", 3),
		AppointmentDuration: getEnvAsDuration("APPOINTMENT_DURATION", time.Hour),
		OfferTTL:            getEnvAsDuration("OFFER_TTL", 10*time.Minute),
		NPSStateTTL:         getEnvAsDuration("NPS_STATE_TTL", 48*time.Hour),

		WorkerInterval:           getEnvAsDuration("WORKER_INTERVAL", 15*time.Minute),
		ReminderLead:             getEnvAsDuration("REMINDER_LEAD", 24*time.Hour),
		ReminderWindow:           getEnvAsDuration("REMINDER_WINDOW", time.Hour),
		PaymentReminderAfterDays: getEnvAsInt("PAYMENT_REMINDER_AFTER_DAYS", 3),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "auto"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Assistente Virtual Atma"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "Assistente Virtual Atma"),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		ArchiveBucket:      getEnv("ARCHIVE_BUCKET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		ConfirmRateLimit:   getEnvAsFloat("CONFIRM_RATE_LIMIT", 1),
		ConfirmRateBurst:   getEnvAsInt("CONFIRM_RATE_BURST", 5),
		WebhookDedup:       getEnvAsBool("WEBHOOK_DEDUP", true),
	}
}

// LoadDotEnv populates the environment from .env files when they exist.
// Variables that are already set win over file values.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// IsProduction reports whether the service runs with ENV=production.
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
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
