// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Redis       RedisConfig
	AWS         AWSConfig
	Commission  CommissionConfig
	Payment     PaymentConfig
	Scheduler   SchedulerConfig
	Email       EmailConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey string
	Issuer    string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	LocalPath       string
}

// CommissionConfig holds the process-wide default rate used when a vendor
// has no active rate row, plus the VAT policy.
type CommissionConfig struct {
	DefaultBaseRate        float64
	DefaultPlatformFeeRate float64
	DefaultMinimumAmount   float64
	DefaultMaximumAmount   float64
	VATRate                float64
	RoundingMode           string // half_even | half_up
}

type PaymentConfig struct {
	Currency         string
	MinimumPayout    float64
	DefaultFrequency string
	ExecutionTimeout time.Duration
	GuardTTL         time.Duration

	StripeSecretKey string

	WalletBaseURL string
	WalletChannel string
	WalletSecret  string
}

type SchedulerConfig struct {
	AutomatedPayoutsEnabled  bool
	AutomatedPayoutsInterval time.Duration
	ReconciliationEnabled    bool
	ReconciliationInterval   time.Duration
	ReconciliationPeriod     string
	RunTimeout               time.Duration
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FinanceEmail string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "vendor_settlement"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "warn"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			Issuer:    getEnv("JWT_ISSUER", "marketplace-admin"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "vendor-settlement"),
			LocalPath:       getEnv("LOCAL_STORAGE_PATH", "./var/settlement"),
		},
		Commission: CommissionConfig{
			DefaultBaseRate:        getEnvAsFloat("COMMISSION_DEFAULT_BASE_RATE", 10.0),
			DefaultPlatformFeeRate: getEnvAsFloat("COMMISSION_DEFAULT_PLATFORM_FEE_RATE", 2.5),
			DefaultMinimumAmount:   getEnvAsFloat("COMMISSION_DEFAULT_MINIMUM", 10.0),
			DefaultMaximumAmount:   getEnvAsFloat("COMMISSION_DEFAULT_MAXIMUM", 10000.0),
			VATRate:                getEnvAsFloat("COMMISSION_VAT_RATE", 15.0),
			RoundingMode:           getEnv("COMMISSION_ROUNDING_MODE", "half_even"),
		},
		Payment: PaymentConfig{
			Currency:         getEnv("PAYOUT_CURRENCY", "usd"),
			MinimumPayout:    getEnvAsFloat("PAYOUT_MINIMUM_AMOUNT", 500.0),
			DefaultFrequency: getEnv("PAYOUT_DEFAULT_FREQUENCY", "weekly"),
			ExecutionTimeout: getEnvAsDuration("PAYOUT_EXECUTION_TIMEOUT", 30*time.Second),
			GuardTTL:         getEnvAsDuration("PAYOUT_GUARD_TTL", 5*time.Minute),
			StripeSecretKey:  getEnv("STRIPE_SECRET_KEY", ""),
			WalletBaseURL:    getEnv("WALLET_BASE_URL", ""),
			WalletChannel:    getEnv("WALLET_CHANNEL", ""),
			WalletSecret:     getEnv("WALLET_SECRET", ""),
		},
		Scheduler: SchedulerConfig{
			AutomatedPayoutsEnabled:  getEnvAsBool("SCHEDULER_PAYOUTS_ENABLED", false),
			AutomatedPayoutsInterval: getEnvAsDuration("SCHEDULER_PAYOUTS_INTERVAL", 24*time.Hour),
			ReconciliationEnabled:    getEnvAsBool("SCHEDULER_RECONCILIATION_ENABLED", false),
			ReconciliationInterval:   getEnvAsDuration("SCHEDULER_RECONCILIATION_INTERVAL", 24*time.Hour),
			ReconciliationPeriod:     getEnv("SCHEDULER_RECONCILIATION_PERIOD", "last_month"),
			RunTimeout:               getEnvAsDuration("SCHEDULER_RUN_TIMEOUT", 30*time.Minute),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromEmail:    getEnv("FROM_EMAIL", "settlements@marketplace.local"),
			FinanceEmail: getEnv("FINANCE_OPS_EMAIL", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Commission.DefaultMinimumAmount > c.Commission.DefaultMaximumAmount {
		return fmt.Errorf("default commission minimum %.2f exceeds maximum %.2f",
			c.Commission.DefaultMinimumAmount, c.Commission.DefaultMaximumAmount)
	}

	if c.Commission.VATRate < 0 || c.Commission.VATRate > 100 {
		return fmt.Errorf("VAT rate must be between 0 and 100")
	}

	switch c.Commission.RoundingMode {
	case "half_even", "half_up":
	default:
		return fmt.Errorf("unsupported rounding mode %q", c.Commission.RoundingMode)
	}

	if c.Payment.ExecutionTimeout <= 0 {
		return fmt.Errorf("payout execution timeout must be positive")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
