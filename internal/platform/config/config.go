package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	MailTransportQueue = "queue"
	MailTransportSMTP  = "smtp"
	MailTransportLog   = "log"

	minBcryptCost = 10
	maxBcryptCost = 31
)

const defaultJWTSecret = "defaultsecret"

type Config struct {
	APIPort  string
	AppEnv   string
	LogLevel string

	JWTKey          []byte
	JWTExp          time.Duration
	JWTCookieExpiry time.Duration
	BcryptCost      int

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MailTransport string
	MailQueueName string
	MailFrom      string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string

	PlatformAccountID  string
	CORSAllowedOrigins []string

	// ResetCodePurgeSchedule is a standard cron expression. Empty disables the purge.
	ResetCodePurgeSchedule string
}

// IsProduction reports whether secure cookies and JSON logs are in effect.
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		APIPort:  getEnv("API_PORT", "8080"),
		AppEnv:   getEnv("APP_ENV", EnvDevelopment),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		JWTKey:          []byte(getEnv("JWT_SECRET", "")),
		JWTExp:          time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,
		JWTCookieExpiry: time.Duration(getEnvAsInt("JWT_COOKIE_EXPIRES_IN", 90)) * 24 * time.Hour,
		BcryptCost:      getEnvAsInt("BCRYPT_COST", 12),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "user"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "social_auth_db"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		MailTransport: strings.ToLower(getEnv("MAIL_TRANSPORT", MailTransportQueue)),
		MailQueueName: getEnv("MAIL_QUEUE_NAME", "mail_outbox_queue"),
		MailFrom:      getEnv("MAIL_FROM", "no-reply@localhost"),
		SMTPHost:      getEnv("SMTP_HOST", "localhost"),
		SMTPPort:      getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),

		PlatformAccountID:  getEnv("PLATFORM_ACCOUNT_ID", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		ResetCodePurgeSchedule: strings.TrimSpace(getEnv("RESET_CODE_PURGE_SCHEDULE", "*/10 * * * *")),
	}

	cfg.DBConnStr = "host=" + cfg.DBHost +
		" port=" + cfg.DBPort +
		" user=" + cfg.DBUser +
		" password=" + cfg.DBPassword +
		" dbname=" + cfg.DBName +
		" sslmode=" + cfg.DBSslMode

	if len(cfg.JWTKey) == 0 {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
		log.Warn().Msg("JWT_SECRET not set, using the development default")
		cfg.JWTKey = []byte(defaultJWTSecret)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTExp <= 0 {
		return errors.New("JWT_EXPIRATION_HOURS must be positive")
	}
	if c.JWTCookieExpiry <= 0 {
		return errors.New("JWT_COOKIE_EXPIRES_IN must be positive")
	}
	if c.BcryptCost < minBcryptCost || c.BcryptCost > maxBcryptCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", minBcryptCost, maxBcryptCost, c.BcryptCost)
	}
	switch c.MailTransport {
	case MailTransportQueue, MailTransportSMTP, MailTransportLog:
	default:
		return fmt.Errorf("unknown MAIL_TRANSPORT %q", c.MailTransport)
	}
	if c.ResetCodePurgeSchedule != "" {
		if _, err := cron.ParseStandard(c.ResetCodePurgeSchedule); err != nil {
			return fmt.Errorf("invalid RESET_CODE_PURGE_SCHEDULE %q: %w", c.ResetCodePurgeSchedule, err)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
