package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// OutcomeKind classifies a pair's result for one synchronization pass
type OutcomeKind string

const (
	OutcomeSkipped     OutcomeKind = "skipped"
	OutcomeUpdated     OutcomeKind = "updated"
	OutcomeProvisioned OutcomeKind = "provisioned"
	OutcomeFailed      OutcomeKind = "failed"
)

// Skip reasons
const (
	ReasonSourceUnavailable = "source unavailable"
	ReasonUpToDate          = "already up to date"
)

// SyncOutcome is reported per pair and never persisted
type SyncOutcome struct {
	Pair    TradingPair
	Kind    OutcomeKind
	Reason  string         // Skipped
	Old     *big.Int       // Updated
	New     *big.Int       // Updated, and the seed answer of a Provisioned deployment
	Address common.Address // Provisioned
	Err     error          // Failed, and the source error of a Skipped fetch
}

func Skipped(pair TradingPair, reason string, cause error) SyncOutcome {
	return SyncOutcome{Pair: pair, Kind: OutcomeSkipped, Reason: reason, Err: cause}
}

func Updated(pair TradingPair, oldValue, newValue *big.Int) SyncOutcome {
	return SyncOutcome{Pair: pair, Kind: OutcomeUpdated, Old: oldValue, New: newValue}
}

// Provisioned records a registered aggregator. seed is nil when the aggregator
// was not deployed in this pass.
func Provisioned(pair TradingPair, address common.Address, seed *big.Int) SyncOutcome {
	return SyncOutcome{Pair: pair, Kind: OutcomeProvisioned, Address: address, New: seed}
}

func Failed(pair TradingPair, err error) SyncOutcome {
	return SyncOutcome{Pair: pair, Kind: OutcomeFailed, Err: err}
}
