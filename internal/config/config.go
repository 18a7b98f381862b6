package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `json:"server"`
	Database    DatabaseConfig    `json:"database"`
	Ledger      LedgerConfig      `json:"ledger"`
	Marketplace MarketplaceConfig `json:"marketplace"`
	Security    SecurityConfig    `json:"security"`
	Logging     LoggingConfig     `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
	MigrationsPath string        `json:"migrations_path"`
}

// LedgerConfig holds issuance and claim submission parameters.
type LedgerConfig struct {
	// SubmissionFee is the minimum fee, in payment units, attached to a
	// production claim submission.
	SubmissionFee int64 `json:"submission_fee"`
	// MonthlyLimitCeiling is the sanity ceiling for a producer's monthly
	// production limit, in credit units.
	MonthlyLimitCeiling int64 `json:"monthly_limit_ceiling"`
	// CalendarMonths switches the monthly production bucket from the
	// historical 30-day window to real calendar months.
	CalendarMonths bool `json:"calendar_months"`
}

// MarketplaceConfig holds settlement fee parameters.
type MarketplaceConfig struct {
	// FeeBasisPoints is the platform cut taken from each settlement.
	FeeBasisPoints int64 `json:"fee_basis_points"`
	// FeeRecipient is the account credited with platform fees.
	FeeRecipient string `json:"fee_recipient"`
	// OperatorAddress is the account sellers grant their allowance to for
	// delegated settlement.
	OperatorAddress string `json:"operator_address"`
}

// SecurityConfig holds caller identity settings.
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret"`
	// AdminAddresses are accounts holding admin capability.
	AdminAddresses []string `json:"admin_addresses"`
	// IssuerAddresses are accounts allowed to trigger claim-gated issuance.
	IssuerAddresses []string `json:"issuer_addresses"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Default config
	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    os.Getenv("USER"),
			DBName:  "hydrogen_credits",
			SSLMode: "disable",
		},
		Ledger: LedgerConfig{
			SubmissionFee:       100,
			MonthlyLimitCeiling: 10_000_000,
		},
		Marketplace: MarketplaceConfig{
			FeeBasisPoints:  250,
			FeeRecipient:    "platform-treasury",
			OperatorAddress: "marketplace-operator",
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if admins := os.Getenv("ADMIN_ADDRESSES"); admins != "" {
		config.Security.AdminAddresses = strings.Split(admins, ",")
	}
	if issuers := os.Getenv("ISSUER_ADDRESSES"); issuers != "" {
		config.Security.IssuerAddresses = strings.Split(issuers, ",")
	}
	if fee := os.Getenv("SUBMISSION_FEE"); fee != "" {
		if f, err := strconv.ParseInt(fee, 10, 64); err == nil {
			config.Ledger.SubmissionFee = f
		}
	}
	if bps := os.Getenv("MARKETPLACE_FEE_BPS"); bps != "" {
		if b, err := strconv.ParseInt(bps, 10, 64); err == nil {
			config.Marketplace.FeeBasisPoints = b
		}
	}
	if operator := os.Getenv("MARKETPLACE_OPERATOR"); operator != "" {
		config.Marketplace.OperatorAddress = operator
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
