// Package domain defines core interfaces and types for the feed synchronizer
package domain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TradingPair identifies a price feed in the registry
type TradingPair struct {
	Base        DenominationID
	Quote       DenominationID
	Description string // e.g. "ETH / USD"
}

func (p TradingPair) String() string {
	if p.Description != "" {
		return p.Description
	}

	return fmt.Sprintf("%s / %s", p.Base, p.Quote)
}

// PriceQuote is a price scaled by 10^Decimals
type PriceQuote struct {
	Pair            TradingPair
	Value           *big.Int
	Decimals        uint8
	SourceTimestamp time.Time // zero when the source does not report one
}

// AggregatorHandle references an aggregator contract owned by the chain
type AggregatorHandle struct {
	Address     common.Address
	Decimals    uint8
	Description string
}

// RegistrationState is the registry-side state of a pair's feed
type RegistrationState int

const (
	Unregistered RegistrationState = iota
	Proposed
	Confirmed
)

func (s RegistrationState) String() string {
	switch s {
	case Proposed:
		return "proposed"
	case Confirmed:
		return "confirmed"
	default:
		return "unregistered"
	}
}

// FeedRegistration is read fresh from the registry on every pass and never cached.
type FeedRegistration struct {
	State   RegistrationState
	Address common.Address // zero when Unregistered
}

// PriceSource produces a quote for a pair
type PriceSource interface {
	// Name identifies the source strategy in logs and metrics
	Name() string
	Fetch(ctx context.Context, pair TradingPair) (PriceQuote, error)
}

// RegistryClient wraps the on-chain feed registry
type RegistryClient interface {
	// LatestPrice fails with ErrFeedNotFound when no feed is confirmed for the pair
	LatestPrice(ctx context.Context, pair TradingPair) (PriceQuote, error)

	// Registration reports whether the pair is unregistered, proposed or confirmed
	Registration(ctx context.Context, pair TradingPair) (FeedRegistration, error)

	// ProposedAggregator returns the proposed but unconfirmed aggregator, if any
	ProposedAggregator(ctx context.Context, pair TradingPair) (common.Address, bool, error)

	// ProposeFeed is a no-op when aggregator is already the proposed feed
	ProposeFeed(ctx context.Context, pair TradingPair, aggregator common.Address) error

	// ConfirmFeed is a no-op when aggregator is already the confirmed feed
	ConfirmFeed(ctx context.Context, pair TradingPair, aggregator common.Address) error

	TypeAndVersion(ctx context.Context) (string, error)
}

// AggregatorProvisioner deploys aggregators and pushes answers into them
type AggregatorProvisioner interface {
	Deploy(ctx context.Context, description string, decimals uint8, initialPrice *big.Int) (AggregatorHandle, error)

	// UpdatePrice must only be called when newValue differs from the registry value
	UpdatePrice(ctx context.Context, handle AggregatorHandle, newValue *big.Int) error

	// Inspect reads the decimals and description of an existing aggregator
	Inspect(ctx context.Context, address common.Address) (AggregatorHandle, error)
}

// TransactionSubmitter sends signed transactions and waits for their inclusion
type TransactionSubmitter interface {
	// Transact submits the transaction built by send and returns its successful receipt
	Transact(ctx context.Context, label string, send func(*bind.TransactOpts) (*types.Transaction, error)) (*types.Receipt, error)

	// Deploy submits a contract creation and returns the deployed address once mined
	Deploy(ctx context.Context, label string, deploy func(*bind.TransactOpts) (common.Address, *types.Transaction, error)) (common.Address, error)
}
