package chains

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/sljivkov/feedsync/contract"
	"github.com/sljivkov/feedsync/domain"
)

// AggregatorBinder deploys and addresses aggregator contracts
type AggregatorBinder interface {
	Deploy(opts *bind.TransactOpts, decimals uint8, initialAnswer *big.Int, description string) (common.Address, *types.Transaction, error)
	UpdateAnswer(opts *bind.TransactOpts, aggregator common.Address, answer *big.Int) (*types.Transaction, error)
	Decimals(opts *bind.CallOpts, aggregator common.Address) (uint8, error)
	Description(opts *bind.CallOpts, aggregator common.Address) (string, error)
}

type contractAggregators struct {
	backend  bind.ContractBackend
	bytecode []byte
}

// NewAggregatorBinder binds aggregators through the contract package. bytecode may be
// empty when the run never needs to deploy.
func NewAggregatorBinder(backend bind.ContractBackend, bytecode []byte) AggregatorBinder {
	return &contractAggregators{backend: backend, bytecode: bytecode}
}

func (c *contractAggregators) Deploy(opts *bind.TransactOpts, decimals uint8, initialAnswer *big.Int, description string) (common.Address, *types.Transaction, error) {
	if len(c.bytecode) == 0 {
		return common.Address{}, nil, domain.ErrNoBytecode
	}

	return contract.DeployAggregator(opts, c.backend, c.bytecode, decimals, initialAnswer, description)
}

func (c *contractAggregators) UpdateAnswer(opts *bind.TransactOpts, aggregator common.Address, answer *big.Int) (*types.Transaction, error) {
	agg, err := contract.NewAggregator(aggregator, c.backend)
	if err != nil {
		return nil, err
	}

	return agg.UpdateAnswer(opts, answer)
}

func (c *contractAggregators) Decimals(opts *bind.CallOpts, aggregator common.Address) (uint8, error) {
	agg, err := contract.NewAggregator(aggregator, c.backend)
	if err != nil {
		return 0, err
	}

	return agg.Decimals(opts)
}

func (c *contractAggregators) Description(opts *bind.CallOpts, aggregator common.Address) (string, error) {
	agg, err := contract.NewAggregator(aggregator, c.backend)
	if err != nil {
		return "", err
	}

	return agg.Description(opts)
}

// Provisioner implements domain.AggregatorProvisioner
type Provisioner struct {
	binder    AggregatorBinder
	submitter domain.TransactionSubmitter
	timeout   time.Duration
	log       zerolog.Logger
}

var _ domain.AggregatorProvisioner = (*Provisioner)(nil)

// NewProvisioner creates a provisioner. timeout bounds every read.
func NewProvisioner(binder AggregatorBinder, submitter domain.TransactionSubmitter, timeout time.Duration, logger zerolog.Logger) *Provisioner {
	return &Provisioner{
		binder:    binder,
		submitter: submitter,
		timeout:   timeout,
		log:       logger,
	}
}

// Deploy creates an aggregator seeded with initialPrice
func (p *Provisioner) Deploy(ctx context.Context, description string, decimals uint8, initialPrice *big.Int) (domain.AggregatorHandle, error) {
	p.log.Info().
		Str("description", description).
		Uint8("decimals", decimals).
		Str("initial", initialPrice.String()).
		Msg("🚀 deploying aggregator")

	addr, err := p.submitter.Deploy(ctx, "deployAggregator", func(opts *bind.TransactOpts) (common.Address, *types.Transaction, error) {
		return p.binder.Deploy(opts, decimals, initialPrice, description)
	})
	if err != nil {
		return domain.AggregatorHandle{}, err
	}

	p.log.Info().Str("description", description).Str("address", addr.Hex()).Msg("aggregator deployed")

	return domain.AggregatorHandle{Address: addr, Decimals: decimals, Description: description}, nil
}

// UpdatePrice pushes newValue into the aggregator
func (p *Provisioner) UpdatePrice(ctx context.Context, handle domain.AggregatorHandle, newValue *big.Int) error {
	_, err := p.submitter.Transact(ctx, "updateAnswer", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return p.binder.UpdateAnswer(opts, handle.Address, newValue)
	})

	return err
}

// Inspect reads an existing aggregator's decimals and description
func (p *Provisioner) Inspect(ctx context.Context, address common.Address) (domain.AggregatorHandle, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	opts := &bind.CallOpts{Context: callCtx}

	decimals, err := p.binder.Decimals(opts, address)
	if err != nil {
		return domain.AggregatorHandle{}, fmt.Errorf("%w: aggregator %s decimals: %w", domain.ErrRead, address.Hex(), err)
	}

	description, err := p.binder.Description(opts, address)
	if err != nil {
		return domain.AggregatorHandle{}, fmt.Errorf("%w: aggregator %s description: %w", domain.ErrRead, address.Hex(), err)
	}

	return domain.AggregatorHandle{Address: address, Decimals: decimals, Description: description}, nil
}
