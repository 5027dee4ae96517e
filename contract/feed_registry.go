package contract

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FeedRegistry is a Go binding around the feed registry contract.
type FeedRegistry struct {
	address  common.Address
	contract *bind.BoundContract
}

// NewFeedRegistry creates a read-write binding to a deployed feed registry.
func NewFeedRegistry(address common.Address, backend bind.ContractBackend) (*FeedRegistry, error) {
	contract, err := bindContract(FeedRegistryMetaData, address, backend, backend, backend)
	if err != nil {
		return nil, err
	}

	return &FeedRegistry{address: address, contract: contract}, nil
}

// NewFeedRegistryCaller creates a read-only binding, used for reference registries on
// chains we never write to.
func NewFeedRegistryCaller(address common.Address, caller bind.ContractCaller) (*FeedRegistry, error) {
	contract, err := bindContract(FeedRegistryMetaData, address, caller, nil, nil)
	if err != nil {
		return nil, err
	}

	return &FeedRegistry{address: address, contract: contract}, nil
}

// DeployFeedRegistry deploys a new feed registry from bytecode.
func DeployFeedRegistry(opts *bind.TransactOpts, backend bind.ContractBackend, bytecode []byte) (common.Address, *types.Transaction, error) {
	return deploy(FeedRegistryMetaData, opts, backend, bytecode)
}

// Address returns the registry address.
func (r *FeedRegistry) Address() common.Address {
	return r.address
}

// LatestRoundData is a free data retrieval call binding the contract method.
//
// Solidity: function latestRoundData(address base, address quote) view returns(uint80 roundId, int256 answer, uint256 startedAt, uint256 updatedAt, uint80 answeredInRound)
func (r *FeedRegistry) LatestRoundData(opts *bind.CallOpts, base, quote common.Address) (RoundData, error) {
	var out []interface{}
	if err := r.contract.Call(opts, &out, "latestRoundData", base, quote); err != nil {
		return RoundData{}, err
	}

	return unpackRoundData(out), nil
}

// Decimals is a free data retrieval call binding the contract method.
//
// Solidity: function decimals(address base, address quote) view returns(uint8)
func (r *FeedRegistry) Decimals(opts *bind.CallOpts, base, quote common.Address) (uint8, error) {
	var out []interface{}
	if err := r.contract.Call(opts, &out, "decimals", base, quote); err != nil {
		return 0, err
	}

	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// GetFeed is a free data retrieval call binding the contract method.
//
// Solidity: function getFeed(address base, address quote) view returns(address aggregator)
func (r *FeedRegistry) GetFeed(opts *bind.CallOpts, base, quote common.Address) (common.Address, error) {
	return r.callAddress(opts, "getFeed", base, quote)
}

// GetProposedFeed is a free data retrieval call binding the contract method.
//
// Solidity: function getProposedFeed(address base, address quote) view returns(address proposedAggregator)
func (r *FeedRegistry) GetProposedFeed(opts *bind.CallOpts, base, quote common.Address) (common.Address, error) {
	return r.callAddress(opts, "getProposedFeed", base, quote)
}

// TypeAndVersion is a free data retrieval call binding the contract method.
//
// Solidity: function typeAndVersion() pure returns(string)
func (r *FeedRegistry) TypeAndVersion(opts *bind.CallOpts) (string, error) {
	var out []interface{}
	if err := r.contract.Call(opts, &out, "typeAndVersion"); err != nil {
		return "", err
	}

	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

// ProposeFeed is a paid mutator transaction binding the contract method.
//
// Solidity: function proposeFeed(address base, address quote, address aggregator) returns()
func (r *FeedRegistry) ProposeFeed(opts *bind.TransactOpts, base, quote, aggregator common.Address) (*types.Transaction, error) {
	return r.contract.Transact(opts, "proposeFeed", base, quote, aggregator)
}

// ConfirmFeed is a paid mutator transaction binding the contract method.
//
// Solidity: function confirmFeed(address base, address quote, address aggregator) returns()
func (r *FeedRegistry) ConfirmFeed(opts *bind.TransactOpts, base, quote, aggregator common.Address) (*types.Transaction, error) {
	return r.contract.Transact(opts, "confirmFeed", base, quote, aggregator)
}

func (r *FeedRegistry) callAddress(opts *bind.CallOpts, method string, params ...interface{}) (common.Address, error) {
	var out []interface{}
	if err := r.contract.Call(opts, &out, method, params...); err != nil {
		return common.Address{}, err
	}

	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}
