package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/sljivkov/feedsync/apis"
	"github.com/sljivkov/feedsync/chains"
	"github.com/sljivkov/feedsync/config"
	"github.com/sljivkov/feedsync/contract"
	"github.com/sljivkov/feedsync/domain"
	"github.com/sljivkov/feedsync/logging"
	"github.com/sljivkov/feedsync/metrics"
	"github.com/sljivkov/feedsync/pricefeed"
)

// Chain holds the connections and signer of one process
type Chain struct {
	cfg       *config.Config
	log       zerolog.Logger
	metrics   *metrics.Metrics
	client    *ethclient.Client
	reference *ethclient.Client
	submitter *chains.Submitter
}

// DialChain connects to the target chain and prepares the signer. Any error
// here is fatal to the process.
func DialChain(ctx context.Context, cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) (*Chain, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	gasPrice, err := cfg.GasPriceWei()
	if err != nil {
		client.Close()

		return nil, err
	}

	submitter, err := chains.NewSubmitter(ctx, client, chains.SubmitterConfig{
		PrivateKey:  cfg.PrivateKey,
		GasLimit:    cfg.GasLimit,
		GasPrice:    gasPrice,
		CallTimeout: cfg.CallTimeout,
		TxTimeout:   cfg.TxTimeout,
		Metrics:     m,
		Logger:      logging.Component(logger, "submitter"),
	})
	if err != nil {
		client.Close()

		return nil, err
	}

	logger.Info().Str("from", submitter.From().Hex()).Msg("🔑 signer ready")

	return &Chain{
		cfg:       cfg,
		log:       logger,
		metrics:   m,
		client:    client,
		submitter: submitter,
	}, nil
}

// Close releases the RPC connections
func (c *Chain) Close() {
	c.client.Close()

	if c.reference != nil {
		c.reference.Close()
	}
}

// DeployRegistry deploys a new feed registry from FEED_REGISTRY_BYTECODE
func (c *Chain) DeployRegistry(ctx context.Context) (common.Address, error) {
	bytecode, err := readBytecode(c.cfg.FeedRegistryBytecode)
	if err != nil {
		return common.Address{}, fmt.Errorf("feed registry: %w", err)
	}

	c.log.Info().Msg("🚀 deploying feed registry")

	addr, err := c.submitter.Deploy(ctx, "deployFeedRegistry", func(opts *bind.TransactOpts) (common.Address, *types.Transaction, error) {
		return contract.DeployFeedRegistry(opts, c.client, bytecode)
	})
	if err != nil {
		return common.Address{}, err
	}

	c.log.Info().Str("address", addr.Hex()).Msg("feed registry deployed")

	return addr, nil
}

// Registry binds the configured registry, deploying one first when no address is set
func (c *Chain) Registry(ctx context.Context) (*chains.Registry, common.Address, error) {
	addr, ok := c.cfg.RegistryAddress()
	if !ok {
		deployed, err := c.DeployRegistry(ctx)
		if err != nil {
			return nil, common.Address{}, err
		}

		addr = deployed
	}

	bound, err := contract.NewFeedRegistry(addr, c.client)
	if err != nil {
		return nil, common.Address{}, err
	}

	registry := chains.NewRegistry(bound, c.submitter, c.cfg.CallTimeout, logging.Component(c.log, "registry"))

	version, err := registry.TypeAndVersion(ctx)
	if err != nil {
		c.log.Warn().Err(err).Str("registry", addr.Hex()).Msg("could not read registry version")
	} else {
		c.log.Info().Str("registry", addr.Hex()).Str("version", version).Msg("🔗 using feed registry")
	}

	return registry, addr, nil
}

// Provisioner binds aggregators. A missing AGGREGATOR_BYTECODE only fails pairs
// that need a deployment.
func (c *Chain) Provisioner() (*chains.Provisioner, error) {
	var bytecode []byte

	if c.cfg.AggregatorBytecode != "" {
		b, err := readBytecode(c.cfg.AggregatorBytecode)
		if err != nil {
			return nil, fmt.Errorf("aggregator: %w", err)
		}

		bytecode = b
	}

	binder := chains.NewAggregatorBinder(c.client, bytecode)

	return chains.NewProvisioner(binder, c.submitter, c.cfg.CallTimeout, logging.Component(c.log, "provisioner")), nil
}

// Feeds resolves the configured pairs into feeds with their price sources
func (c *Chain) Feeds(ctx context.Context, pairs []config.PairConfig) ([]pricefeed.Feed, error) {
	resolve, err := c.denominationResolver()
	if err != nil {
		return nil, err
	}

	var (
		relay   *chains.RelaySource
		coinapi *apis.CoinAPI
	)

	feeds := make([]pricefeed.Feed, 0, len(pairs))

	for _, p := range pairs {
		base, err := resolve(ctx, p.Base)
		if err != nil {
			return nil, fmt.Errorf("pair %q base: %w", p.Name(), err)
		}

		quote, err := resolve(ctx, p.Quote)
		if err != nil {
			return nil, fmt.Errorf("pair %q quote: %w", p.Name(), err)
		}

		feed := pricefeed.Feed{
			Pair:       domain.TradingPair{Base: base, Quote: quote, Description: p.Description},
			Decimals:   p.Decimals,
			Aggregator: p.AggregatorAddress(),
		}

		switch p.Source.Type {
		case config.SourceRelay:
			if relay == nil {
				relay, err = c.relaySource(ctx)
				if err != nil {
					return nil, err
				}
			}

			feed.Source = relay.WithDenominations(optionalAddress(p.Source.Base), optionalAddress(p.Source.Quote))
		case config.SourceCoinAPI:
			if coinapi == nil {
				coinapi = apis.NewCoinAPI(apis.CoinAPIConfig{
					URL:     c.cfg.CoinAPIURL,
					Key:     c.cfg.CoinAPIKey,
					RPS:     c.cfg.CoinAPIRPS,
					Timeout: c.cfg.CallTimeout,
					Logger:  logging.Component(c.log, "coinapi"),
				})
			}

			assetBase, assetQuote := p.CoinAPIAssets()
			feed.Source = coinapi.Source(assetBase, assetQuote, p.Decimals)
		default:
			return nil, fmt.Errorf("pair %q: unknown source type %q", p.Name(), p.Source.Type)
		}

		feeds = append(feeds, feed)
	}

	return feeds, nil
}

func (c *Chain) relaySource(ctx context.Context) (*chains.RelaySource, error) {
	client, err := ethclient.DialContext(ctx, c.cfg.ReferenceRPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to reference RPC: %w", err)
	}

	c.reference = client

	reader, err := contract.NewFeedRegistryCaller(common.HexToAddress(c.cfg.ReferenceRegistryAddress), client)
	if err != nil {
		return nil, err
	}

	return chains.NewRelaySource(reader, c.cfg.CallTimeout, logging.Component(c.log, "relay")), nil
}

type resolver func(ctx context.Context, s string) (domain.DenominationID, error)

// denominationResolver parses ids locally and falls back to the Denominations
// contract for names it does not know
func (c *Chain) denominationResolver() (resolver, error) {
	if c.cfg.DenominationsAddress == "" {
		return func(_ context.Context, s string) (domain.DenominationID, error) {
			return domain.ParseDenomination(s)
		}, nil
	}

	denominations, err := contract.NewDenominations(common.HexToAddress(c.cfg.DenominationsAddress), c.client)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, s string) (domain.DenominationID, error) {
		id, err := domain.ParseDenomination(s)
		if err == nil || !errors.Is(err, domain.ErrUnknownDenomination) {
			return id, err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()

		addr, lookupErr := denominations.Lookup(&bind.CallOpts{Context: callCtx}, s)
		if lookupErr != nil {
			return domain.DenominationID{}, fmt.Errorf("%w: %w", err, lookupErr)
		}

		return domain.DenominationID(addr), nil
	}, nil
}

// Synchronizer wires registry, provisioner and feeds together
func (c *Chain) Synchronizer(ctx context.Context, pairs []config.PairConfig) (*pricefeed.Synchronizer, error) {
	registry, _, err := c.Registry(ctx)
	if err != nil {
		return nil, err
	}

	provisioner, err := c.Provisioner()
	if err != nil {
		return nil, err
	}

	feeds, err := c.Feeds(ctx, pairs)
	if err != nil {
		return nil, err
	}

	return pricefeed.New(registry, provisioner, feeds,
		pricefeed.WithConcurrency(c.cfg.FetchConcurrency),
		pricefeed.WithMetrics(c.metrics),
		pricefeed.WithLogger(logging.Component(c.log, "synchronizer")),
	), nil
}

// readBytecode loads hex encoded creation bytecode from a file
func readBytecode(path string) ([]byte, error) {
	if path == "" {
		return nil, domain.ErrNoBytecode
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read bytecode: %w", err)
	}

	bytecode := common.FromHex(strings.TrimSpace(string(data)))
	if len(bytecode) == 0 {
		return nil, domain.ErrNoBytecode
	}

	return bytecode, nil
}

func optionalAddress(s string) *common.Address {
	if s == "" {
		return nil
	}

	addr := common.HexToAddress(s)

	return &addr
}
