package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	JWT          JWTConfig          `yaml:"jwt"`
	Log          LogConfig          `yaml:"log"`
	Ledger       LedgerConfig       `yaml:"ledger"`
	Alerts       AlertsConfig       `yaml:"alerts"`
	Compensation CompensationConfig `yaml:"compensation"`
	Audit        AuditConfig        `yaml:"audit"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
}

// ServerConfig contains HTTP and gRPC listener settings
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "postgres", "pgx" or "memory"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	SeedFile string `yaml:"seed_file"` // For memory driver
}

// RedisConfig contains the undo history store settings
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret            string `yaml:"secret"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// LedgerConfig contains undo and import limits
type LedgerConfig struct {
	UndoDepth         int `yaml:"undo_depth"`
	HistoryTTLMinutes int `yaml:"history_ttl_minutes"`
	MaxImportRows     int `yaml:"max_import_rows"`
}

// AlertsConfig contains SendGrid settings for operator alerts
type AlertsConfig struct {
	SendGridAPIKey string   `yaml:"sendgrid_api_key"`
	FromEmail      string   `yaml:"from_email"`
	FromName       string   `yaml:"from_name"`
	Recipients     []string `yaml:"recipients"`
}

// CompensationConfig controls retries of failed rollbacks
type CompensationConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BatchSize   int `yaml:"batch_size"`
}

// AuditConfig controls the nightly balance audit
type AuditConfig struct {
	Repair bool `yaml:"repair"` // overwrite drifted balances with the recomputed value
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	RetryCompensations string `yaml:"retry_compensations"`
	AuditBalances      string `yaml:"audit_balances"`
}

// Load reads configuration from a YAML file. Variables from a .env file in
// the working directory are loaded first and take part in env overrides.
func Load(configPath string) (*Config, error) {
	// A missing .env file is not an error
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_DRIVER"); val != "" {
		c.Database.Driver = val
	}
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Redis
	if val := os.Getenv("REDIS_HOST"); val != "" {
		c.Redis.Host = val
		c.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Redis.Port)
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Alerts
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Alerts.SendGridAPIKey = val
	}
	if val := os.Getenv("ALERT_RECIPIENTS"); val != "" {
		c.Alerts.Recipients = strings.Split(val, ",")
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills in defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = c.Server.Port + 1
	}

	// Database validation
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	switch c.Database.Driver {
	case "postgres", "pgx":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = 60
	}

	// Redis defaults
	if c.Redis.Enabled && c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}

	// Ledger defaults
	if c.Ledger.UndoDepth <= 0 {
		c.Ledger.UndoDepth = 10
	}
	if c.Ledger.HistoryTTLMinutes <= 0 {
		c.Ledger.HistoryTTLMinutes = 12 * 60
	}
	if c.Ledger.MaxImportRows <= 0 {
		c.Ledger.MaxImportRows = 5000
	}

	// Alert defaults
	if c.Alerts.FromName == "" {
		c.Alerts.FromName = "Reseller Ledger"
	}
	if c.Alerts.SendGridAPIKey != "" && c.Alerts.FromEmail == "" {
		return fmt.Errorf("alerts from_email is required when SendGrid is configured")
	}

	// Compensation defaults
	if c.Compensation.MaxAttempts <= 0 {
		c.Compensation.MaxAttempts = 5
	}
	if c.Compensation.BatchSize <= 0 {
		c.Compensation.BatchSize = 50
	}

	// Scheduler defaults
	if c.Scheduler.RetryCompensations == "" {
		c.Scheduler.RetryCompensations = "0 */5 * * * *" // Every 5 minutes
	}
	if c.Scheduler.AuditBalances == "" {
		c.Scheduler.AuditBalances = "0 0 2 * * *" // 2 AM UTC
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetGRPCAddress returns the gRPC health server address
func (c *Config) GetGRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

// GetRedisAddress returns the Redis address
func (c *Config) GetRedisAddress() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// HistoryTTL returns how long an idle undo history is kept
func (c *Config) HistoryTTL() time.Duration {
	return time.Duration(c.Ledger.HistoryTTLMinutes) * time.Minute
}
