package config

import (
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/launchpad-hq/txflow/pkg/chains"
	"github.com/launchpad-hq/txflow/pkg/logger"
)

// Config holds the configuration for the txflow engine
type Config struct {
	Network         chains.Network
	RPCURL          string
	PrivateKey      string
	IndexerEndpoint string
	MetricsPort     string
	MetricsAPIKey   string
	Chain           ChainConfig
	Orchestration   OrchestrationConfig
	CircuitBreaker  CircuitBreakerConfig
	LoggerConfig    LoggerConfig
}

// ChainConfig holds the transaction settings for the connected chain
type ChainConfig struct {
	ReceiptPollInterval time.Duration
	GasMultiplier       float64
	MaxGasPrice         *big.Int
}

// OrchestrationConfig holds the run policy of the orchestrator
type OrchestrationConfig struct {
	ConfirmationTimeout time.Duration
	IndexerPollInterval time.Duration
	IndexerMaxAttempts  int
	ApprovalStrategy    string
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment without touching .env
func FromEnv() (*Config, error) {
	network, err := GetEnvNetwork()
	if err != nil {
		return nil, err
	}

	rpcURL, err := GetEnvRPCURL(network)
	if err != nil {
		return nil, err
	}

	indexerEndpoint, err := GetEnvIndexerEndpoint()
	if err != nil {
		return nil, err
	}

	confirmationTimeout, err := GetEnvDuration("CONFIRMATION_TIMEOUT", DefaultConfirmationTimeout)
	if err != nil {
		return nil, err
	}

	receiptPollInterval, err := GetEnvDuration("RECEIPT_POLL_INTERVAL", DefaultReceiptPollInterval)
	if err != nil {
		return nil, err
	}

	indexerPollInterval, err := GetEnvDuration("INDEXER_POLL_INTERVAL", DefaultIndexerPollInterval)
	if err != nil {
		return nil, err
	}

	indexerMaxAttempts, err := GetEnvIndexerMaxAttempts()
	if err != nil {
		return nil, err
	}

	approvalStrategy, err := GetEnvApprovalStrategy()
	if err != nil {
		return nil, err
	}

	gasMultiplier, err := GetEnvGasMultiplier()
	if err != nil {
		return nil, err
	}

	maxGasPrice, err := GetEnvMaxGasPrice()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvDuration("CIRCUIT_BREAKER_WINDOW", DefaultCircuitBreakerWindow)
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvDuration("CIRCUIT_BREAKER_RESET", DefaultCircuitBreakerReset)
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Network:         network,
		RPCURL:          rpcURL,
		PrivateKey:      os.Getenv("PRIVATE_KEY"),
		IndexerEndpoint: indexerEndpoint,
		MetricsPort:     metricsPort,
		MetricsAPIKey:   os.Getenv("METRICS_API_KEY"),
		Chain: ChainConfig{
			ReceiptPollInterval: receiptPollInterval,
			GasMultiplier:       gasMultiplier,
			MaxGasPrice:         maxGasPrice,
		},
		Orchestration: OrchestrationConfig{
			ConfirmationTimeout: confirmationTimeout,
			IndexerPollInterval: indexerPollInterval,
			IndexerMaxAttempts:  indexerMaxAttempts,
			ApprovalStrategy:    approvalStrategy,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	// Validate required environment variables
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY environment variable is required")
	}
	if cfg.Orchestration.ConfirmationTimeout <= 0 {
		return fmt.Errorf("CONFIRMATION_TIMEOUT must be greater than 0")
	}
	if cfg.Orchestration.IndexerPollInterval <= 0 {
		return fmt.Errorf("INDEXER_POLL_INTERVAL must be greater than 0")
	}
	if cfg.Chain.ReceiptPollInterval <= 0 {
		return fmt.Errorf("RECEIPT_POLL_INTERVAL must be greater than 0")
	}
	return nil
}
