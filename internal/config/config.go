package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	ServerAddress  string
	Environment    string
	Database       DatabaseConfig
	Migration      MigrationConfig
	Redis          RedisConfig
	Reconciliation ReconciliationConfig
	Worker         WorkerConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Params   string
}

type MigrationConfig struct {
	Dir string
}

type RedisConfig struct {
	// Address is optional; when empty the worker uses the in-process run
	// locker instead of Redis.
	Address  string
	Password string
	DB       int
}

// ReconciliationConfig carries the recognized matching options.
type ReconciliationConfig struct {
	ToleranceAmount             decimal.Decimal
	TimeWindow                  time.Duration
	HighPriorityAmountThreshold decimal.Decimal
	AutoMatchScoreThreshold     float64
}

// WorkerConfig controls the scheduled reconciliation loop.
type WorkerConfig struct {
	Gateways    []string
	RunInterval time.Duration
	RunTimeout  time.Duration
	InitiatedBy string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_ADDRESS", ":8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("TOLERANCE_AMOUNT", "0")
	viper.SetDefault("TIME_WINDOW", "2h")
	viper.SetDefault("HIGH_PRIORITY_AMOUNT_THRESHOLD", "10000")
	viper.SetDefault("AUTO_MATCH_SCORE_THRESHOLD", 100)
	viper.SetDefault("RUN_INTERVAL", "1h")
	viper.SetDefault("RUN_TIMEOUT", "10m")
	viper.SetDefault("WORKER_INITIATED_BY", "scheduler")

	// A missing .env is fine in containerized deployments; a broken one is
	// not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	tolerance, err := decimal.NewFromString(viper.GetString("TOLERANCE_AMOUNT"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOLERANCE_AMOUNT: %w", err)
	}
	threshold, err := decimal.NewFromString(viper.GetString("HIGH_PRIORITY_AMOUNT_THRESHOLD"))
	if err != nil {
		return nil, fmt.Errorf("invalid HIGH_PRIORITY_AMOUNT_THRESHOLD: %w", err)
	}

	config := &Config{
		ServerAddress: viper.GetString("SERVER_ADDRESS"),
		Environment:   viper.GetString("ENVIRONMENT"),
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetInt("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Name:     viper.GetString("DB_NAME"),
			Params:   viper.GetString("DB_PARAMS"),
		},
		Migration: MigrationConfig{
			Dir: viper.GetString("MIGRATION_DIR"),
		},
		Redis: RedisConfig{
			Address:  viper.GetString("REDIS_ADDRESS"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Reconciliation: ReconciliationConfig{
			ToleranceAmount:             tolerance,
			TimeWindow:                  viper.GetDuration("TIME_WINDOW"),
			HighPriorityAmountThreshold: threshold,
			AutoMatchScoreThreshold:     viper.GetFloat64("AUTO_MATCH_SCORE_THRESHOLD"),
		},
		Worker: WorkerConfig{
			Gateways:    viper.GetStringSlice("GATEWAYS"),
			RunInterval: viper.GetDuration("RUN_INTERVAL"),
			RunTimeout:  viper.GetDuration("RUN_TIMEOUT"),
			InitiatedBy: viper.GetString("WORKER_INITIATED_BY"),
		},
	}

	return config, nil
}

// GetDSN returns the MySQL DSN string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Params,
	)
}

// GetMigrationDBURL returns the database URL for migrations.
func (c *Config) GetMigrationDBURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%d)/%s?%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Params,
	)
}
