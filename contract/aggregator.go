package contract

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Aggregator is a Go binding around a MockV3Aggregator contract.
type Aggregator struct {
	address  common.Address
	contract *bind.BoundContract
}

// NewAggregator creates a read-write binding to a deployed aggregator.
func NewAggregator(address common.Address, backend bind.ContractBackend) (*Aggregator, error) {
	contract, err := bindContract(AggregatorMetaData, address, backend, backend, backend)
	if err != nil {
		return nil, err
	}

	return &Aggregator{address: address, contract: contract}, nil
}

// DeployAggregator deploys an aggregator seeded with initialAnswer.
//
// Solidity: constructor(uint8 _decimals, int256 _initialAnswer, string _description)
func DeployAggregator(opts *bind.TransactOpts, backend bind.ContractBackend, bytecode []byte, decimals uint8, initialAnswer *big.Int, description string) (common.Address, *types.Transaction, error) {
	return deploy(AggregatorMetaData, opts, backend, bytecode, decimals, initialAnswer, description)
}

// Address returns the aggregator address.
func (a *Aggregator) Address() common.Address {
	return a.address
}

// Decimals is a free data retrieval call binding the contract method.
//
// Solidity: function decimals() view returns(uint8)
func (a *Aggregator) Decimals(opts *bind.CallOpts) (uint8, error) {
	var out []interface{}
	if err := a.contract.Call(opts, &out, "decimals"); err != nil {
		return 0, err
	}

	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// Description is a free data retrieval call binding the contract method.
//
// Solidity: function description() view returns(string)
func (a *Aggregator) Description(opts *bind.CallOpts) (string, error) {
	var out []interface{}
	if err := a.contract.Call(opts, &out, "description"); err != nil {
		return "", err
	}

	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

// LatestRoundData is a free data retrieval call binding the contract method.
//
// Solidity: function latestRoundData() view returns(uint80 roundId, int256 answer, uint256 startedAt, uint256 updatedAt, uint80 answeredInRound)
func (a *Aggregator) LatestRoundData(opts *bind.CallOpts) (RoundData, error) {
	var out []interface{}
	if err := a.contract.Call(opts, &out, "latestRoundData"); err != nil {
		return RoundData{}, err
	}

	return unpackRoundData(out), nil
}

// UpdateAnswer is a paid mutator transaction binding the contract method.
//
// Solidity: function updateAnswer(int256 _answer) returns()
func (a *Aggregator) UpdateAnswer(opts *bind.TransactOpts, answer *big.Int) (*types.Transaction, error) {
	return a.contract.Transact(opts, "updateAnswer", answer)
}
