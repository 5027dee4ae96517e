package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch indicates that a price source was unreachable or returned unusable data.
	ErrFetch = errors.New("price fetch failed")
	// ErrRead indicates that a chain read failed.
	ErrRead = errors.New("chain read failed")
	// ErrFeedNotFound indicates that the registry has no confirmed feed for the pair.
	// It is a read error, distinct from a confirmed feed reporting zero.
	ErrFeedNotFound = fmt.Errorf("%w: feed not found", ErrRead)
	// ErrTx indicates that a state-changing call failed to submit or to execute.
	ErrTx = errors.New("transaction failed")
	// ErrTxReverted indicates that a mined transaction has a failed receipt status.
	ErrTxReverted = errors.New("transaction reverted")
	// ErrDecimalsMismatch indicates a quote or aggregator precision that differs from the pair's.
	ErrDecimalsMismatch = errors.New("decimals mismatch")
	// ErrNoBytecode indicates that a deployment was requested without contract bytecode.
	ErrNoBytecode = errors.New("contract bytecode not configured")
	// ErrUnknownDenomination indicates a denomination that cannot be resolved.
	ErrUnknownDenomination = errors.New("unknown denomination")
)
