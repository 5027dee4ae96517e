package chains

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"

	"github.com/sljivkov/feedsync/contract"
)

// MockRegistryContract implements RegistryContract for testing
type MockRegistryContract struct {
	mock.Mock
}

func (m *MockRegistryContract) LatestRoundData(opts *bind.CallOpts, base, quote common.Address) (contract.RoundData, error) {
	args := m.Called(opts, base, quote)

	return args.Get(0).(contract.RoundData), args.Error(1)
}

func (m *MockRegistryContract) Decimals(opts *bind.CallOpts, base, quote common.Address) (uint8, error) {
	args := m.Called(opts, base, quote)

	return args.Get(0).(uint8), args.Error(1)
}

func (m *MockRegistryContract) GetFeed(opts *bind.CallOpts, base, quote common.Address) (common.Address, error) {
	args := m.Called(opts, base, quote)

	return args.Get(0).(common.Address), args.Error(1)
}

func (m *MockRegistryContract) GetProposedFeed(opts *bind.CallOpts, base, quote common.Address) (common.Address, error) {
	args := m.Called(opts, base, quote)

	return args.Get(0).(common.Address), args.Error(1)
}

func (m *MockRegistryContract) TypeAndVersion(opts *bind.CallOpts) (string, error) {
	args := m.Called(opts)

	return args.String(0), args.Error(1)
}

func (m *MockRegistryContract) ProposeFeed(opts *bind.TransactOpts, base, quote, aggregator common.Address) (*types.Transaction, error) {
	args := m.Called(opts, base, quote, aggregator)

	return args.Get(0).(*types.Transaction), args.Error(1)
}

func (m *MockRegistryContract) ConfirmFeed(opts *bind.TransactOpts, base, quote, aggregator common.Address) (*types.Transaction, error) {
	args := m.Called(opts, base, quote, aggregator)

	return args.Get(0).(*types.Transaction), args.Error(1)
}

// MockSubmitter implements domain.TransactionSubmitter and runs the send callbacks so
// the contract mocks see the calls
type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Transact(_ context.Context, label string, send func(*bind.TransactOpts) (*types.Transaction, error)) (*types.Receipt, error) {
	args := m.Called(label)
	if err := args.Error(1); err != nil {
		return nil, err
	}

	if _, err := send(&bind.TransactOpts{}); err != nil {
		return nil, err
	}

	return args.Get(0).(*types.Receipt), nil
}

func (m *MockSubmitter) Deploy(_ context.Context, label string, deploy func(*bind.TransactOpts) (common.Address, *types.Transaction, error)) (common.Address, error) {
	args := m.Called(label)
	if err := args.Error(1); err != nil {
		return common.Address{}, err
	}

	addr, _, err := deploy(&bind.TransactOpts{})
	if err != nil {
		return common.Address{}, err
	}

	return addr, nil
}

// MockAggregatorBinder implements AggregatorBinder for testing
type MockAggregatorBinder struct {
	mock.Mock
}

func (m *MockAggregatorBinder) Deploy(opts *bind.TransactOpts, decimals uint8, initialAnswer *big.Int, description string) (common.Address, *types.Transaction, error) {
	args := m.Called(opts, decimals, initialAnswer, description)

	return args.Get(0).(common.Address), args.Get(1).(*types.Transaction), args.Error(2)
}

func (m *MockAggregatorBinder) UpdateAnswer(opts *bind.TransactOpts, aggregator common.Address, answer *big.Int) (*types.Transaction, error) {
	args := m.Called(opts, aggregator, answer)

	return args.Get(0).(*types.Transaction), args.Error(1)
}

func (m *MockAggregatorBinder) Decimals(opts *bind.CallOpts, aggregator common.Address) (uint8, error) {
	args := m.Called(opts, aggregator)

	return args.Get(0).(uint8), args.Error(1)
}

func (m *MockAggregatorBinder) Description(opts *bind.CallOpts, aggregator common.Address) (string, error) {
	args := m.Called(opts, aggregator)

	return args.String(0), args.Error(1)
}

// revertError mimics the JSON-RPC error returned for a reverted eth_call
type revertError struct{}

func (revertError) Error() string          { return "execution reverted: Feed not found" }
func (revertError) ErrorCode() int         { return 3 }
func (revertError) ErrorData() interface{} { return "0x08c379a0" }

// nodeError is a JSON-RPC failure that is not a revert, e.g. a provider rate limit
type nodeError struct{}

func (nodeError) Error() string          { return "limit exceeded" }
func (nodeError) ErrorCode() int         { return -32005 }
func (nodeError) ErrorData() interface{} { return nil }

func mockTx(nonce uint64) *types.Transaction {
	return types.NewTransaction(
		nonce,
		common.Address{},
		big.NewInt(0),
		0,
		big.NewInt(0),
		[]byte("mock transaction data"),
	)
}
