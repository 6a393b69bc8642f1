// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetWebhookRateLimit() float64
	GetWebhookRateBurst() int
}

// SchedulerConfig provides settings for the asynq worker and periodic scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetCampaignTickCron() string
	GetTagsRecalcCron() string
	GetPriorityRecalcCron() string
}

// WhatsAppConfig provides settings for the outbound send gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppInstance() string
	GetWhatsAppSendTimeout() time.Duration
	GetWhatsAppPresenceDelay() time.Duration
	GetPhoneDefaultRegion() string
}

// CampaignConfig provides settings for the campaign dispatcher.
type CampaignConfig interface {
	GetCampaignBatchSize() int
	GetCampaignDefaultTimezone() string
	GetCampaignLockEnabled() bool
	GetCampaignLockTTL() time.Duration
}

// EngineConfig provides settings for the tag and priority engines.
type EngineConfig interface {
	GetTagChunkSize() int
	GetEngineThresholdsFile() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                     string
	HTTPAddr                string
	DatabaseURL             string
	MigrationsEnabled       bool
	CORSAllowAll            bool
	CORSOrigins             []string
	CORSAllowCreds          bool
	WebhookRateLimit        float64
	WebhookRateBurst        int
	RedisURL                string
	RedisTLSInsecure        bool
	AsynqQueueName          string
	AsynqConcurrency        int
	CampaignTickCron        string
	TagsRecalcCron          string
	PriorityRecalcCron      string
	WhatsAppURL             string
	WhatsAppKey             string
	WhatsAppInstance        string
	WhatsAppSendTimeout     time.Duration
	WhatsAppPresenceDelay   time.Duration
	PhoneDefaultRegion      string
	CampaignBatchSize       int
	CampaignDefaultTimezone string
	CampaignLockEnabled     bool
	CampaignLockTTL         time.Duration
	TagChunkSize            int
	EngineThresholdsFile    string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string          { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool        { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string     { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool      { return c.CORSAllowCreds }
func (c *Config) GetWebhookRateLimit() float64 { return c.WebhookRateLimit }
func (c *Config) GetWebhookRateBurst() int     { return c.WebhookRateBurst }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string           { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool     { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string     { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int      { return c.AsynqConcurrency }
func (c *Config) GetCampaignTickCron() string   { return c.CampaignTickCron }
func (c *Config) GetTagsRecalcCron() string     { return c.TagsRecalcCron }
func (c *Config) GetPriorityRecalcCron() string { return c.PriorityRecalcCron }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string                  { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string                  { return c.WhatsAppKey }
func (c *Config) GetWhatsAppInstance() string             { return c.WhatsAppInstance }
func (c *Config) GetWhatsAppSendTimeout() time.Duration   { return c.WhatsAppSendTimeout }
func (c *Config) GetWhatsAppPresenceDelay() time.Duration { return c.WhatsAppPresenceDelay }
func (c *Config) GetPhoneDefaultRegion() string           { return c.PhoneDefaultRegion }

// CampaignConfig implementation
func (c *Config) GetCampaignBatchSize() int          { return c.CampaignBatchSize }
func (c *Config) GetCampaignDefaultTimezone() string { return c.CampaignDefaultTimezone }
func (c *Config) GetCampaignLockEnabled() bool       { return c.CampaignLockEnabled && c.RedisURL != "" }
func (c *Config) GetCampaignLockTTL() time.Duration  { return c.CampaignLockTTL }

// EngineConfig implementation
func (c *Config) GetTagChunkSize() int            { return c.TagChunkSize }
func (c *Config) GetEngineThresholdsFile() string { return c.EngineThresholdsFile }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		MigrationsEnabled:       strings.EqualFold(getEnv("MIGRATIONS_ENABLED", "true"), "true"),
		CORSAllowAll:            corsAllowAll,
		CORSOrigins:             corsOrigins,
		CORSAllowCreds:          strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		WebhookRateLimit:        mustFloat(getEnv("WEBHOOK_RATE_LIMIT", "50")),
		WebhookRateBurst:        mustInt(getEnv("WEBHOOK_RATE_BURST", "100")),
		RedisURL:                getEnv("REDIS_URL", ""),
		RedisTLSInsecure:        strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:          getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:        mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		CampaignTickCron:        getEnv("CAMPAIGN_TICK_CRON", "@every 1m"),
		TagsRecalcCron:          getEnv("TAGS_RECALC_CRON", "0 */6 * * *"),
		PriorityRecalcCron:      getEnv("PRIORITY_RECALC_CRON", "*/30 * * * *"),
		WhatsAppURL:             getEnv("WHATSAPP_API_URL", ""),
		WhatsAppKey:             getEnv("WHATSAPP_API_KEY", ""),
		WhatsAppInstance:        getEnv("WHATSAPP_INSTANCE", ""),
		WhatsAppSendTimeout:     mustDuration(getEnv("WHATSAPP_SEND_TIMEOUT", "15s")),
		WhatsAppPresenceDelay:   mustDuration(getEnv("WHATSAPP_PRESENCE_DELAY", "1200ms")),
		PhoneDefaultRegion:      getEnv("PHONE_DEFAULT_REGION", "BR"),
		CampaignBatchSize:       mustInt(getEnv("CAMPAIGN_BATCH_SIZE", "5")),
		CampaignDefaultTimezone: getEnv("CAMPAIGN_DEFAULT_TIMEZONE", "America/Sao_Paulo"),
		CampaignLockEnabled:     strings.EqualFold(getEnv("CAMPAIGN_LOCK_ENABLED", "false"), "true"),
		CampaignLockTTL:         mustDuration(getEnv("CAMPAIGN_LOCK_TTL", "2m")),
		TagChunkSize:            mustInt(getEnv("TAG_CHUNK_SIZE", "50")),
		EngineThresholdsFile:    getEnv("ENGINE_THRESHOLDS_FILE", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.WhatsAppSendTimeout <= 0 {
		return nil, fmt.Errorf("WHATSAPP_SEND_TIMEOUT must be a positive duration")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
