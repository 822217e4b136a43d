package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort        string
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	AdminToken        string
	LogLevel          string
	RatesAPIBaseURL   string
	RatesAPIKey       string
	RateCacheTTLMins  string
	AWSRegion         string
	EmailFromAddress  string
	WebhookTimeoutSec string
}

// ScoringConfig holds the lead scoring weights and tier thresholds.
// These are named configuration values rather than literals so tests
// and operators can tune them without code changes.
type ScoringConfig struct {
	PhonePoints       int     `json:"phone_points"`
	FullNamePoints    int     `json:"full_name_points"`
	CreditScorePoints int     `json:"credit_score_points"`
	LoanRangePoints   int     `json:"loan_range_points"`
	DownPaymentPoints int     `json:"down_payment_points"`
	ZipCodePoints     int     `json:"zip_code_points"`
	LoanRangeMin      float64 `json:"loan_range_min"`
	LoanRangeMax      float64 `json:"loan_range_max"`
	DownPaymentRatio  float64 `json:"down_payment_ratio"`
	HighThreshold     int     `json:"high_threshold"`
	MediumThreshold   int     `json:"medium_threshold"`
}

// DefaultScoringConfig returns the production scoring weights.
func DefaultScoringConfig() *ScoringConfig {
	return &ScoringConfig{
		PhonePoints:       20,
		FullNamePoints:    15,
		CreditScorePoints: 25,
		LoanRangePoints:   20,
		DownPaymentPoints: 10,
		ZipCodePoints:     10,
		LoanRangeMin:      200000,
		LoanRangeMax:      500000,
		DownPaymentRatio:  0.10,
		HighThreshold:     60,
		MediumThreshold:   30,
	}
}

// RoutingConfig holds routing and payout configuration.
type RoutingConfig struct {
	PartnerSplit     float64       `json:"partner_split"`
	CandidateLimit   int           `json:"candidate_limit"`
	WebhookTimeout   time.Duration `json:"webhook_timeout"`
	MaxAttempts      int           `json:"max_attempts"`
	RetryBaseBackoff time.Duration `json:"retry_base_backoff"`
}

// DefaultRoutingConfig returns default routing configuration: 50% partner
// split, top-10 candidate page, 5 second webhook timeout, 5 delivery attempts.
func DefaultRoutingConfig() *RoutingConfig {
	return &RoutingConfig{
		PartnerSplit:     0.5,
		CandidateLimit:   10,
		WebhookTimeout:   5 * time.Second,
		MaxAttempts:      5,
		RetryBaseBackoff: 30 * time.Second,
	}
}

// GetRateCacheTTL returns the rate cache TTL from environment or default.
func (c *Config) GetRateCacheTTL() time.Duration {
	if c.RateCacheTTLMins == "" {
		return 60 * time.Minute
	}

	mins, err := strconv.Atoi(c.RateCacheTTLMins)
	if err != nil {
		logrus.Warnf("Invalid RATE_CACHE_TTL_MINUTES value: %s, using default 60 minutes", c.RateCacheTTLMins)
		return 60 * time.Minute
	}

	return time.Duration(mins) * time.Minute
}

// GetWebhookTimeout returns the outbound webhook timeout from environment or default.
func (c *Config) GetWebhookTimeout() time.Duration {
	if c.WebhookTimeoutSec == "" {
		return 5 * time.Second
	}

	secs, err := strconv.Atoi(c.WebhookTimeoutSec)
	if err != nil {
		logrus.Warnf("Invalid WEBHOOK_TIMEOUT_SECONDS value: %s, using default 5 seconds", c.WebhookTimeoutSec)
		return 5 * time.Second
	}

	return time.Duration(secs) * time.Second
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	return &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		AdminToken:        getEnv("ADMIN_TOKEN", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		RatesAPIBaseURL:   getEnv("RATES_API_BASE_URL", "https://api.stlouisfed.org/fred"),
		RatesAPIKey:       getEnv("RATES_API_KEY", ""),
		RateCacheTTLMins:  getEnv("RATE_CACHE_TTL_MINUTES", "60"),
		AWSRegion:         getEnv("AWS_REGION", ""),
		EmailFromAddress:  getEnv("EMAIL_FROM_ADDRESS", "rates@rateflow.example.com"),
		WebhookTimeoutSec: getEnv("WEBHOOK_TIMEOUT_SECONDS", "5"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
