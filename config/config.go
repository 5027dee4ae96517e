// Package config provides configuration management for the feed synchronizer
package config

import (
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// MainnetFeedRegistry is the Chainlink feed registry on Ethereum mainnet
const MainnetFeedRegistry = "0x47Fb2585D2C56Fe188D0E6ec628a38b74fCeeeDf"

// Config holds the application configuration
type Config struct {
	PrivateKey string `envconfig:"PRIVATE_KEY"` // Hex private key of the signing account
	RPCURL     string `envconfig:"RPC_URL"`     // Target chain RPC endpoint

	FeedRegistryAddress  string `envconfig:"FEED_REGISTRY_ADDRESS"`  // Empty deploys a new registry
	FeedRegistryBytecode string `envconfig:"FEED_REGISTRY_BYTECODE"` // Path to hex bytecode
	AggregatorBytecode   string `envconfig:"AGGREGATOR_BYTECODE"`    // Path to hex bytecode
	DenominationsAddress string `envconfig:"DENOMINATIONS_ADDRESS"`  // Optional name lookup contract

	ReferenceRPCURL          string `envconfig:"REFERENCE_RPC_URL"`
	ReferenceRegistryAddress string `envconfig:"REFERENCE_REGISTRY_ADDRESS" default:"0x47Fb2585D2C56Fe188D0E6ec628a38b74fCeeeDf"`

	CoinAPIKey string  `envconfig:"COINAPI_KEY"`
	CoinAPIURL string  `envconfig:"COINAPI_URL" default:"https://rest.coinapi.io/v1/exchangerate"`
	CoinAPIRPS float64 `envconfig:"COINAPI_RPS" default:"1"`

	PairsFile string `envconfig:"PAIRS_FILE" default:"pairs.yaml"`

	CallTimeout      time.Duration `envconfig:"CALL_TIMEOUT" default:"15s"`
	TxTimeout        time.Duration `envconfig:"TX_TIMEOUT" default:"3m"`
	GasLimit         uint64        `envconfig:"GAS_LIMIT" default:"0"` // 0 estimates
	GasPrice         string        `envconfig:"GAS_PRICE"`             // wei, empty suggests
	FetchConcurrency int           `envconfig:"FETCH_CONCURRENCY" default:"4"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	PushgatewayURL string `envconfig:"PUSHGATEWAY_URL"`
	MetricsAddr    string `envconfig:"METRICS_ADDR"`
}

// Option is a function that modifies Config
type Option func(*Config) error

// WithEnvFile loads variables from a .env file and processes the environment
// again. Variables already set in the environment win. Pass it before other options.
func WithEnvFile(path string) Option {
	return func(c *Config) error {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}

		if err := envconfig.Process("", c); err != nil {
			return fmt.Errorf("failed to process config: %w", err)
		}

		return nil
	}
}

// WithPairsFile overrides PAIRS_FILE
func WithPairsFile(path string) Option {
	return func(c *Config) error {
		if path != "" {
			c.PairsFile = path
		}

		return nil
	}
}

// WithRegistryAddress overrides FEED_REGISTRY_ADDRESS
func WithRegistryAddress(addr string) Option {
	return func(c *Config) error {
		c.FeedRegistryAddress = addr

		return nil
	}
}

// NewConfig creates a new validated Config instance
func NewConfig(opts ...Option) (*Config, error) {
	var cfg Config

	// Process environment variables first
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	// Apply user options last so they take precedence
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// validate performs validation on the config values
func (c *Config) validate() error {
	if c.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY is required")
	}

	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required")
	}

	// Validate private key format (hex, optional 0x prefix)
	key := strings.TrimPrefix(c.PrivateKey, "0x")
	if len(key) != 64 || !isHex(key) {
		return fmt.Errorf("invalid private key format")
	}

	urls := map[string]string{"RPC": c.RPCURL}
	if c.ReferenceRPCURL != "" {
		urls["reference RPC"] = c.ReferenceRPCURL
	}

	if c.CoinAPIURL != "" {
		urls["CoinAPI"] = c.CoinAPIURL
	}

	if c.PushgatewayURL != "" {
		urls["Pushgateway"] = c.PushgatewayURL
	}

	for name, urlStr := range urls {
		if _, err := url.ParseRequestURI(urlStr); err != nil {
			return fmt.Errorf("invalid %s URL: %s", name, urlStr)
		}
	}

	for name, addr := range map[string]string{
		"FEED_REGISTRY_ADDRESS":      c.FeedRegistryAddress,
		"DENOMINATIONS_ADDRESS":      c.DenominationsAddress,
		"REFERENCE_REGISTRY_ADDRESS": c.ReferenceRegistryAddress,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid %s: %s", name, addr)
		}
	}

	if c.FeedRegistryAddress == "" && c.FeedRegistryBytecode == "" {
		return fmt.Errorf("FEED_REGISTRY_BYTECODE is required when FEED_REGISTRY_ADDRESS is empty")
	}

	if _, err := c.GasPriceWei(); err != nil {
		return err
	}

	if c.CallTimeout <= 0 || c.TxTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}

	if c.FetchConcurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be at least 1")
	}

	return nil
}

// isHex checks if a string is valid hexadecimal
func isHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}

	return true
}

// GasPriceWei parses GAS_PRICE. A nil result lets the node suggest a price.
func (c *Config) GasPriceWei() (*big.Int, error) {
	if c.GasPrice == "" {
		return nil, nil
	}

	v, ok := new(big.Int).SetString(c.GasPrice, 10)
	if !ok || v.Sign() <= 0 {
		return nil, fmt.Errorf("invalid GAS_PRICE: %s", c.GasPrice)
	}

	return v, nil
}

// RegistryAddress returns the configured registry and whether one is set
func (c *Config) RegistryAddress() (common.Address, bool) {
	if c.FeedRegistryAddress == "" {
		return common.Address{}, false
	}

	return common.HexToAddress(c.FeedRegistryAddress), true
}

// ValidatePairs checks the settings each pair's source strategy depends on
func (c *Config) ValidatePairs(pairs []PairConfig) error {
	for _, p := range pairs {
		switch p.Source.Type {
		case SourceCoinAPI:
			if c.CoinAPIKey == "" {
				return fmt.Errorf("pair %q uses coinapi but COINAPI_KEY is empty", p.Name())
			}
		case SourceRelay:
			if c.ReferenceRPCURL == "" {
				return fmt.Errorf("pair %q uses relay but REFERENCE_RPC_URL is empty", p.Name())
			}
		}
	}

	return nil
}
