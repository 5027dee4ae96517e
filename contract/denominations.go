package contract

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Denominations is a read-only Go binding around the Denominations contract, which
// exposes one constant getter per denomination name.
type Denominations struct {
	contract *bind.BoundContract
	parsed   *abi.ABI
}

// NewDenominations binds a deployed Denominations contract.
func NewDenominations(address common.Address, caller bind.ContractCaller) (*Denominations, error) {
	parsed, err := DenominationsMetaData.GetAbi()
	if err != nil {
		return nil, err
	}

	return &Denominations{
		contract: bind.NewBoundContract(address, *parsed, caller, nil, nil),
		parsed:   parsed,
	}, nil
}

// Lookup resolves a denomination by its getter name, e.g. "CKB".
func (d *Denominations) Lookup(opts *bind.CallOpts, name string) (common.Address, error) {
	method := strings.ToUpper(name)
	if _, ok := d.parsed.Methods[method]; !ok {
		return common.Address{}, fmt.Errorf("denominations contract has no %q getter", method)
	}

	var out []interface{}
	if err := d.contract.Call(opts, &out, method); err != nil {
		return common.Address{}, err
	}

	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}
