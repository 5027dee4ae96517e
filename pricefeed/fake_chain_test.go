package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"

	"github.com/sljivkov/feedsync/domain"
)

type pairKey struct {
	base, quote domain.DenominationID
}

func keyOf(p domain.TradingPair) pairKey {
	return pairKey{base: p.Base, quote: p.Quote}
}

type fakeAggregator struct {
	decimals    uint8
	description string
	answer      *big.Int
}

type fakeRegistration struct {
	proposed  common.Address
	confirmed common.Address
}

// fakeChain is an in-memory registry and aggregator factory that counts writes
type fakeChain struct {
	mu          sync.Mutex
	registry    map[pairKey]*fakeRegistration
	aggregators map[common.Address]*fakeAggregator
	nextAddr    int64

	deploys  int
	proposes int
	confirms int
	updates  int

	// failNext makes the next write with this label fail once
	failNext map[string]error
}

var (
	_ domain.RegistryClient        = (*fakeChain)(nil)
	_ domain.AggregatorProvisioner = (*fakeChain)(nil)
)

func newFakeChain() *fakeChain {
	return &fakeChain{
		registry:    make(map[pairKey]*fakeRegistration),
		aggregators: make(map[common.Address]*fakeAggregator),
		nextAddr:    0x1000,
		failNext:    make(map[string]error),
	}
}

func (f *fakeChain) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.deploys + f.proposes + f.confirms + f.updates
}

// seedConfirmed registers a confirmed feed answering value
func (f *fakeChain) seedConfirmed(pair domain.TradingPair, decimals uint8, value *big.Int) common.Address {
	f.mu.Lock()
	defer f.mu.Unlock()

	addr := f.newAddress()
	f.aggregators[addr] = &fakeAggregator{decimals: decimals, description: pair.String(), answer: new(big.Int).Set(value)}
	f.registry[keyOf(pair)] = &fakeRegistration{confirmed: addr}

	return addr
}

// seedAggregator deploys an aggregator outside the registry
func (f *fakeChain) seedAggregator(decimals uint8, value *big.Int) common.Address {
	f.mu.Lock()
	defer f.mu.Unlock()

	addr := f.newAddress()
	f.aggregators[addr] = &fakeAggregator{decimals: decimals, answer: new(big.Int).Set(value)}

	return addr
}

func (f *fakeChain) newAddress() common.Address {
	f.nextAddr++

	return common.BigToAddress(big.NewInt(f.nextAddr))
}

func (f *fakeChain) takeFailure(label string) error {
	err, ok := f.failNext[label]
	if ok {
		delete(f.failNext, label)

		return fmt.Errorf("%w: %s: %w", domain.ErrTx, label, err)
	}

	return nil
}

func (f *fakeChain) reg(pair domain.TradingPair) *fakeRegistration {
	r, ok := f.registry[keyOf(pair)]
	if !ok {
		r = &fakeRegistration{}
		f.registry[keyOf(pair)] = r
	}

	return r
}

func (f *fakeChain) LatestPrice(_ context.Context, pair domain.TradingPair) (domain.PriceQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r := f.reg(pair)
	if r.confirmed == (common.Address{}) {
		return domain.PriceQuote{}, fmt.Errorf("%w: latestRoundData", domain.ErrFeedNotFound)
	}

	agg := f.aggregators[r.confirmed]

	return domain.PriceQuote{Pair: pair, Value: new(big.Int).Set(agg.answer), Decimals: agg.decimals}, nil
}

func (f *fakeChain) Registration(_ context.Context, pair domain.TradingPair) (domain.FeedRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r := f.reg(pair)

	switch {
	case r.confirmed != (common.Address{}):
		return domain.FeedRegistration{State: domain.Confirmed, Address: r.confirmed}, nil
	case r.proposed != (common.Address{}):
		return domain.FeedRegistration{State: domain.Proposed, Address: r.proposed}, nil
	default:
		return domain.FeedRegistration{State: domain.Unregistered}, nil
	}
}

func (f *fakeChain) ProposedAggregator(_ context.Context, pair domain.TradingPair) (common.Address, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r := f.reg(pair)

	return r.proposed, r.proposed != (common.Address{}), nil
}

func (f *fakeChain) ProposeFeed(_ context.Context, pair domain.TradingPair, aggregator common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	r := f.reg(pair)
	if r.proposed == aggregator {
		return nil
	}

	if err := f.takeFailure("proposeFeed"); err != nil {
		return err
	}

	f.proposes++
	r.proposed = aggregator

	return nil
}

func (f *fakeChain) ConfirmFeed(_ context.Context, pair domain.TradingPair, aggregator common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	r := f.reg(pair)
	if r.confirmed == aggregator {
		return nil
	}

	if r.proposed != aggregator {
		return fmt.Errorf("%w: confirmFeed: %w", domain.ErrTx, domain.ErrTxReverted)
	}

	if err := f.takeFailure("confirmFeed"); err != nil {
		return err
	}

	f.confirms++
	r.confirmed = aggregator
	r.proposed = common.Address{}

	return nil
}

func (f *fakeChain) TypeAndVersion(context.Context) (string, error) {
	return "FeedRegistry 1.0.0", nil
}

func (f *fakeChain) Deploy(_ context.Context, description string, decimals uint8, initialPrice *big.Int) (domain.AggregatorHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.takeFailure("deployAggregator"); err != nil {
		return domain.AggregatorHandle{}, err
	}

	f.deploys++
	addr := f.newAddress()
	f.aggregators[addr] = &fakeAggregator{decimals: decimals, description: description, answer: new(big.Int).Set(initialPrice)}

	return domain.AggregatorHandle{Address: addr, Decimals: decimals, Description: description}, nil
}

func (f *fakeChain) UpdatePrice(_ context.Context, handle domain.AggregatorHandle, newValue *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.takeFailure("updateAnswer"); err != nil {
		return err
	}

	agg, ok := f.aggregators[handle.Address]
	if !ok {
		return fmt.Errorf("%w: no aggregator at %s", domain.ErrTx, handle.Address.Hex())
	}

	f.updates++
	agg.answer = new(big.Int).Set(newValue)

	return nil
}

func (f *fakeChain) Inspect(_ context.Context, address common.Address) (domain.AggregatorHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	agg, ok := f.aggregators[address]
	if !ok {
		return domain.AggregatorHandle{}, fmt.Errorf("%w: no aggregator at %s", domain.ErrRead, address.Hex())
	}

	return domain.AggregatorHandle{Address: address, Decimals: agg.decimals, Description: agg.description}, nil
}

// staticSource always returns the same value
type staticSource struct {
	value    *big.Int
	decimals uint8
}

func (s staticSource) Name() string {
	return "static"
}

func (s staticSource) Fetch(_ context.Context, pair domain.TradingPair) (domain.PriceQuote, error) {
	return domain.PriceQuote{Pair: pair, Value: new(big.Int).Set(s.value), Decimals: s.decimals}, nil
}

// MockPriceSource implements domain.PriceSource for testing
type MockPriceSource struct {
	mock.Mock
}

func (m *MockPriceSource) Name() string {
	return "mock"
}

func (m *MockPriceSource) Fetch(ctx context.Context, pair domain.TradingPair) (domain.PriceQuote, error) {
	args := m.Called(ctx, pair)

	return args.Get(0).(domain.PriceQuote), args.Error(1)
}

var errSourceDown = errors.New("connection refused")
