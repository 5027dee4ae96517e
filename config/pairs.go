package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Source strategies
const (
	SourceRelay   = "relay"
	SourceCoinAPI = "coinapi"
)

// MaxDecimals bounds a pair's fixed-point precision
const MaxDecimals = 36

// PairConfig configures one trading pair
type PairConfig struct {
	Description string       `yaml:"description"`
	Base        string       `yaml:"base"`  // hex address, numeric code or name
	Quote       string       `yaml:"quote"` // hex address, numeric code or name
	Decimals    uint8        `yaml:"decimals"`
	Aggregator  string       `yaml:"aggregator,omitempty"` // already deployed aggregator to adopt
	Source      SourceConfig `yaml:"source"`
}

// SourceConfig selects and tunes the price source of a pair.
//
// For relay, Base and Quote are denomination addresses on the reference chain.
// For coinapi, they are asset ids and default to the pair's base and quote.
type SourceConfig struct {
	Type  string `yaml:"type"`
	Base  string `yaml:"base,omitempty"`
	Quote string `yaml:"quote,omitempty"`
}

type pairsFile struct {
	Pairs []PairConfig `yaml:"pairs"`
}

// Name returns the description, or "BASE / QUOTE"
func (p PairConfig) Name() string {
	if p.Description != "" {
		return p.Description
	}

	return fmt.Sprintf("%s / %s", p.Base, p.Quote)
}

// AggregatorAddress returns the configured aggregator, if any
func (p PairConfig) AggregatorAddress() *common.Address {
	if p.Aggregator == "" {
		return nil
	}

	addr := common.HexToAddress(p.Aggregator)

	return &addr
}

// CoinAPIAssets returns the asset ids used to query CoinAPI
func (p PairConfig) CoinAPIAssets() (string, string) {
	base, quote := p.Source.Base, p.Source.Quote
	if base == "" {
		base = p.Base
	}

	if quote == "" {
		quote = p.Quote
	}

	return strings.ToUpper(base), strings.ToUpper(quote)
}

// LoadPairs reads and validates a pairs file
func LoadPairs(path string) ([]PairConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read pairs file: %w", err)
	}

	return ParsePairs(data)
}

// ParsePairs decodes and validates pairs from YAML
func ParsePairs(data []byte) ([]PairConfig, error) {
	var f pairsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse pairs: %w", err)
	}

	for i := range f.Pairs {
		p := &f.Pairs[i]
		p.Base = strings.TrimSpace(p.Base)
		p.Quote = strings.TrimSpace(p.Quote)
		p.Source.Type = strings.ToLower(strings.TrimSpace(p.Source.Type))

		if p.Description == "" {
			p.Description = p.Name()
		}
	}

	if err := validatePairs(f.Pairs); err != nil {
		return nil, fmt.Errorf("invalid pairs: %w", err)
	}

	return f.Pairs, nil
}

func validatePairs(pairs []PairConfig) error {
	if len(pairs) == 0 {
		return fmt.Errorf("no pairs configured")
	}

	seen := make(map[string]bool, len(pairs))

	for _, p := range pairs {
		if p.Base == "" || p.Quote == "" {
			return fmt.Errorf("pair %q: base and quote are required", p.Name())
		}

		key := strings.ToLower(p.Base + "/" + p.Quote)
		if seen[key] {
			return fmt.Errorf("pair %q is configured twice", p.Name())
		}

		seen[key] = true

		if p.Decimals > MaxDecimals {
			return fmt.Errorf("pair %q: decimals %d exceed %d", p.Name(), p.Decimals, MaxDecimals)
		}

		if p.Aggregator != "" && !common.IsHexAddress(p.Aggregator) {
			return fmt.Errorf("pair %q: invalid aggregator address %s", p.Name(), p.Aggregator)
		}

		switch p.Source.Type {
		case SourceRelay:
			for _, addr := range []string{p.Source.Base, p.Source.Quote} {
				if addr != "" && !common.IsHexAddress(addr) {
					return fmt.Errorf("pair %q: relay denomination %s is not an address", p.Name(), addr)
				}
			}
		case SourceCoinAPI:
			base, quote := p.CoinAPIAssets()
			if common.IsHexAddress(base) || common.IsHexAddress(quote) {
				return fmt.Errorf("pair %q: coinapi needs asset ids, set source.base and source.quote", p.Name())
			}
		default:
			return fmt.Errorf("pair %q: unknown source type %q", p.Name(), p.Source.Type)
		}
	}

	return nil
}
