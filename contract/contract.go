// Package contract provides Go bindings for the feed registry, aggregator and
// denominations contracts.
package contract

import (
	_ "embed"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	//go:embed abi/FeedRegistry.abi
	feedRegistryABI string
	//go:embed abi/MockV3Aggregator.abi
	aggregatorABI string
	//go:embed abi/Denominations.abi
	denominationsABI string
)

// ErrEmptyBytecode is returned when a deployment is attempted without bytecode.
var ErrEmptyBytecode = errors.New("empty contract bytecode")

// FeedRegistryMetaData contains all meta data concerning the FeedRegistry contract.
var FeedRegistryMetaData = &bind.MetaData{ABI: feedRegistryABI}

// AggregatorMetaData contains all meta data concerning the MockV3Aggregator contract.
var AggregatorMetaData = &bind.MetaData{ABI: aggregatorABI}

// DenominationsMetaData contains all meta data concerning the Denominations contract.
var DenominationsMetaData = &bind.MetaData{ABI: denominationsABI}

// RoundData is the output of latestRoundData.
type RoundData struct {
	RoundId         *big.Int
	Answer          *big.Int
	StartedAt       *big.Int
	UpdatedAt       *big.Int
	AnsweredInRound *big.Int
}

func unpackRoundData(out []interface{}) RoundData {
	return RoundData{
		RoundId:         *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		Answer:          *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		StartedAt:       *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
		UpdatedAt:       *abi.ConvertType(out[3], new(*big.Int)).(**big.Int),
		AnsweredInRound: *abi.ConvertType(out[4], new(*big.Int)).(**big.Int),
	}
}

// bindContract binds a generic wrapper to an already deployed contract.
func bindContract(meta *bind.MetaData, address common.Address, caller bind.ContractCaller, transactor bind.ContractTransactor, filterer bind.ContractFilterer) (*bind.BoundContract, error) {
	parsed, err := meta.GetAbi()
	if err != nil {
		return nil, err
	}

	return bind.NewBoundContract(address, *parsed, caller, transactor, filterer), nil
}

// deploy creates a contract from bytecode with the given constructor params.
func deploy(meta *bind.MetaData, opts *bind.TransactOpts, backend bind.ContractBackend, bytecode []byte, params ...interface{}) (common.Address, *types.Transaction, error) {
	if len(bytecode) == 0 {
		return common.Address{}, nil, ErrEmptyBytecode
	}

	parsed, err := meta.GetAbi()
	if err != nil {
		return common.Address{}, nil, err
	}

	address, tx, _, err := bind.DeployContract(opts, *parsed, bytecode, backend, params...)
	if err != nil {
		return common.Address{}, nil, err
	}

	return address, tx, nil
}
