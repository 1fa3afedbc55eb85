package config

import (
	"fmt"
	"math/big"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/launchpad-hq/txflow/pkg/chains"
	"github.com/launchpad-hq/txflow/pkg/logger"
)

const (
	// DefaultNetwork is the network used when NETWORK is not set
	DefaultNetwork = "BASE"

	// DefaultIndexerEndpoint defines the default base URL of the launchpad indexer API
	DefaultIndexerEndpoint = "http://localhost:3000"

	// DefaultConfirmationTimeout bounds a single confirmation wait
	DefaultConfirmationTimeout = 5 * time.Minute

	// DefaultReceiptPollInterval is the delay between two receipt lookups
	DefaultReceiptPollInterval = 2 * time.Second

	// DefaultIndexerPollInterval is the delay between two indexer queries
	DefaultIndexerPollInterval = 3 * time.Second

	// DefaultIndexerMaxAttempts is the number of indexer queries before indexing is reported as delayed
	DefaultIndexerMaxAttempts = 20

	// DefaultApprovalStrategy approves exactly the required allowance
	DefaultApprovalStrategy = "exact"

	// DefaultGasMultiplier is applied to the suggested gas price
	DefaultGasMultiplier = 1.1

	// DefaultMaxGasPrice defines the maximum gas price for transactions
	DefaultMaxGasPrice = "100000000000" // 100 Gwei

	// DefaultMetricsPort defines the default port for the status server
	DefaultMetricsPort = "8080"

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker
	DefaultCircuitBreakerWindow = 30 * time.Second

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker
	DefaultCircuitBreakerReset = 15 * time.Second
)

var approvalStrategies = map[string]bool{
	"exact":     true,
	"unlimited": true,
	"optimized": true,
}

// GetEnvNetwork returns the configured network preset
func GetEnvNetwork() (chains.Network, error) {
	name := os.Getenv("NETWORK")
	if name == "" {
		name = DefaultNetwork
	}

	network, err := chains.GetNetworkByName(name)
	if err != nil {
		return chains.Network{}, fmt.Errorf("invalid NETWORK value: %w", err)
	}
	return network, nil
}

// GetEnvRPCURL returns RPC_URL, falling back to the network's public endpoint
func GetEnvRPCURL(network chains.Network) (string, error) {
	rpcURL := os.Getenv("RPC_URL")
	if rpcURL == "" {
		return network.DefaultRPCURL, nil
	}

	if _, err := url.ParseRequestURI(rpcURL); err != nil {
		return "", fmt.Errorf("invalid RPC_URL value: %s, must be a valid URL", rpcURL)
	}
	return rpcURL, nil
}

// GetEnvIndexerEndpoint returns the indexer API endpoint from environment variables
func GetEnvIndexerEndpoint() (string, error) {
	endpoint := os.Getenv("INDEXER_ENDPOINT")
	if endpoint == "" {
		return DefaultIndexerEndpoint, nil
	}

	// Validate URL format
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return "", fmt.Errorf("invalid INDEXER_ENDPOINT value: %s, must be a valid URL", endpoint)
	}
	return strings.TrimRight(endpoint, "/"), nil
}

// GetEnvDuration reads a duration string such as "3s" or "5m"
func GetEnvDuration(key string, def time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return def, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be a valid duration string", key, value)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return parsed, nil
}

// GetEnvIndexerMaxAttempts returns the indexer retry budget
func GetEnvIndexerMaxAttempts() (int, error) {
	attempts := os.Getenv("INDEXER_MAX_ATTEMPTS")
	if attempts == "" {
		return DefaultIndexerMaxAttempts, nil
	}

	count, err := strconv.Atoi(attempts)
	if err != nil {
		return 0, fmt.Errorf("invalid INDEXER_MAX_ATTEMPTS value: %s, must be an integer", attempts)
	}
	if count <= 0 {
		return 0, fmt.Errorf("INDEXER_MAX_ATTEMPTS must be greater than 0")
	}
	return count, nil
}

// GetEnvApprovalStrategy returns how approval amounts are chosen
func GetEnvApprovalStrategy() (string, error) {
	strategy := strings.ToLower(os.Getenv("APPROVAL_STRATEGY"))
	if strategy == "" {
		return DefaultApprovalStrategy, nil
	}

	if !approvalStrategies[strategy] {
		return "", fmt.Errorf("invalid APPROVAL_STRATEGY value: %s, must be 'exact', 'unlimited' or 'optimized'", strategy)
	}
	return strategy, nil
}

// GetEnvGasMultiplier returns the multiplier applied to suggested gas prices
func GetEnvGasMultiplier() (float64, error) {
	multiplier := os.Getenv("GAS_MULTIPLIER")
	if multiplier == "" {
		return DefaultGasMultiplier, nil
	}

	value, err := strconv.ParseFloat(multiplier, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid GAS_MULTIPLIER value: %s, must be a number", multiplier)
	}
	if value < 1 {
		return 0, fmt.Errorf("GAS_MULTIPLIER must be greater than or equal to 1")
	}
	return value, nil
}

// GetEnvMaxGasPrice returns the maximum gas price from environment variables
func GetEnvMaxGasPrice() (*big.Int, error) {
	maxGasPrice := os.Getenv("MAX_GAS_PRICE")
	if maxGasPrice == "" {
		maxGasPrice = DefaultMaxGasPrice
	}

	maxGasPriceBig := new(big.Int)
	if _, ok := maxGasPriceBig.SetString(maxGasPrice, 10); !ok {
		return nil, fmt.Errorf("invalid MAX_GAS_PRICE value: %s, must be a valid integer string", maxGasPrice)
	}

	if maxGasPriceBig.Sign() < 0 {
		return nil, fmt.Errorf("MAX_GAS_PRICE must be greater than or equal to 0")
	}
	return maxGasPriceBig, nil
}

// GetEnvMetricsPort returns the status server port from environment variables
func GetEnvMetricsPort() (string, error) {
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		return DefaultMetricsPort, nil
	}

	// Validate port format
	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	enabled := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if enabled == "" {
		return DefaultCircuitBreakerEnabled, nil
	}

	if enabled == "true" {
		return true, nil
	} else if enabled == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s, must be 'true' or 'false'", enabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if threshold == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return logger.InfoLevel, nil
	}
	return logger.ParseLevel(level)
}

// GetEnvLogColoring returns whether log output is colored
func GetEnvLogColoring() (bool, error) {
	coloring := os.Getenv("LOG_COLORING")
	if coloring == "" {
		return true, nil
	}

	enabled, err := strconv.ParseBool(coloring)
	if err != nil {
		return false, fmt.Errorf("invalid LOG_COLORING value: %s, must be 'true' or 'false'", coloring)
	}
	return enabled, nil
}
