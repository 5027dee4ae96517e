package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// DenominationID identifies an asset or currency in the feed registry. Fiat currencies
// use their ISO 4217 numeric code as the address, native assets use a sentinel.
type DenominationID common.Address

// Address returns the id as it is passed to registry calls
func (d DenominationID) Address() common.Address {
	return common.Address(d)
}

func (d DenominationID) String() string {
	return common.Address(d).Hex()
}

// wellKnown denominations, mirroring the Denominations contract constants
var wellKnown = map[string]DenominationID{
	"ETH": DenominationID(common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")),
	"BTC": DenominationID(common.HexToAddress("0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB")),
	"CKB": DenominationID(common.HexToAddress("0x0000000000000000000000000000000000000001")),
	"USD": numericDenomination(840),
	"EUR": numericDenomination(978),
	"GBP": numericDenomination(826),
	"JPY": numericDenomination(392),
}

func numericDenomination(code int64) DenominationID {
	return DenominationID(common.BigToAddress(big.NewInt(code)))
}

// ParseDenomination accepts a hex address, a decimal ISO 4217 numeric code or a known
// name such as ETH or USD.
func ParseDenomination(s string) (DenominationID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DenominationID{}, fmt.Errorf("%w: empty", ErrUnknownDenomination)
	}

	if common.IsHexAddress(s) {
		return DenominationID(common.HexToAddress(s)), nil
	}

	if code, ok := new(big.Int).SetString(s, 10); ok {
		if code.Sign() <= 0 || code.BitLen() > 160 {
			return DenominationID{}, fmt.Errorf("%w: numeric code %s out of range", ErrUnknownDenomination, s)
		}

		return DenominationID(common.BigToAddress(code)), nil
	}

	if id, ok := wellKnown[strings.ToUpper(s)]; ok {
		return id, nil
	}

	return DenominationID{}, fmt.Errorf("%w: %s", ErrUnknownDenomination, s)
}
