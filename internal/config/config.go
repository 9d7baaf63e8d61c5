/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the ledger-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	LedgerEventExchange        string `mapstructure:"LEDGER_EVENT_EXCHANGE"`
	GuestEventExchange         string `mapstructure:"GUEST_EVENT_EXCHANGE"`
	GuestEventQueue            string `mapstructure:"GUEST_EVENT_QUEUE"`
	JWKSURL                    string `mapstructure:"JWKS_URL"`
	InternalAPIKey             string `mapstructure:"INTERNAL_API_KEY"`
	TransferRateLimitPerMinute int    `mapstructure:"TRANSFER_RATE_LIMIT_PER_MINUTE"`
	TxMaxAttempts              int    `mapstructure:"TX_MAX_ATTEMPTS"`
	TxRetryBackoffMs           int    `mapstructure:"TX_RETRY_BACKOFF_MS"`
	TxAcquireTimeoutMs         int    `mapstructure:"TX_ACQUIRE_TIMEOUT_MS"`
	TxExecTimeoutMs            int    `mapstructure:"TX_EXEC_TIMEOUT_MS"`
	LedgerExecTimeoutMs        int    `mapstructure:"LEDGER_EXEC_TIMEOUT_MS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LEDGER_EVENT_EXCHANGE", "ledger_events")
	viper.SetDefault("GUEST_EVENT_EXCHANGE", "guest_events")
	viper.SetDefault("GUEST_EVENT_QUEUE", "ledger_service.guest_activity")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "ledger:rate_limit")
	viper.SetDefault("TRANSFER_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("TX_MAX_ATTEMPTS", 3)
	viper.SetDefault("TX_RETRY_BACKOFF_MS", 100)
	viper.SetDefault("TX_ACQUIRE_TIMEOUT_MS", 5000)
	viper.SetDefault("TX_EXEC_TIMEOUT_MS", 10000)
	viper.SetDefault("LEDGER_EXEC_TIMEOUT_MS", 15000)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "LEDGER_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("LEDGER_EVENT_EXCHANGE")
	_ = viper.BindEnv("GUEST_EVENT_EXCHANGE")
	_ = viper.BindEnv("GUEST_EVENT_QUEUE")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "LEDGER_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("TRANSFER_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("TX_MAX_ATTEMPTS")
	_ = viper.BindEnv("TX_RETRY_BACKOFF_MS")
	_ = viper.BindEnv("TX_ACQUIRE_TIMEOUT_MS")
	_ = viper.BindEnv("TX_EXEC_TIMEOUT_MS")
	_ = viper.BindEnv("LEDGER_EXEC_TIMEOUT_MS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("LEDGER_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "ledger:rate_limit"
	}

	if config.TransferRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative transfer rate limit configured; disabling limiter\" per_minute=%d", config.TransferRateLimitPerMinute)
		config.TransferRateLimitPerMinute = 0
	}
	if config.TxMaxAttempts <= 0 {
		config.TxMaxAttempts = 3
	}
	if config.TxRetryBackoffMs <= 0 {
		config.TxRetryBackoffMs = 100
	}
	if config.TxAcquireTimeoutMs <= 0 {
		config.TxAcquireTimeoutMs = 5000
	}
	if config.TxExecTimeoutMs <= 0 {
		config.TxExecTimeoutMs = 10000
	}
	if config.LedgerExecTimeoutMs <= 0 {
		config.LedgerExecTimeoutMs = 15000
	}

	return
}
