package chains

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/sljivkov/feedsync/contract"
	"github.com/sljivkov/feedsync/domain"
)

// ReferenceReader reads a reference feed registry, typically Chainlink's on
// Ethereum mainnet
type ReferenceReader interface {
	LatestRoundData(opts *bind.CallOpts, base, quote common.Address) (contract.RoundData, error)
	Decimals(opts *bind.CallOpts, base, quote common.Address) (uint8, error)
}

// RelaySource republishes the reference registry's answer verbatim, keeping its
// decimals.
type RelaySource struct {
	reader  ReferenceReader
	base    *common.Address
	quote   *common.Address
	timeout time.Duration
	log     zerolog.Logger
}

var _ domain.PriceSource = (*RelaySource)(nil)

// NewRelaySource creates a relay reading pairs under their own denominations
func NewRelaySource(reader ReferenceReader, timeout time.Duration, logger zerolog.Logger) *RelaySource {
	return &RelaySource{
		reader:  reader,
		timeout: timeout,
		log:     logger,
	}
}

// WithDenominations returns a copy reading base/quote on the reference chain instead
// of the pair's own ids, for assets whose address differs between chains. A nil
// argument keeps the pair's id.
func (r *RelaySource) WithDenominations(base, quote *common.Address) *RelaySource {
	cp := *r
	cp.base = base
	cp.quote = quote

	return &cp
}

func (r *RelaySource) Name() string {
	return "relay"
}

// Fetch reads latestRoundData and decimals from the reference registry
func (r *RelaySource) Fetch(ctx context.Context, pair domain.TradingPair) (domain.PriceQuote, error) {
	base, quote := pair.Base.Address(), pair.Quote.Address()
	if r.base != nil {
		base = *r.base
	}

	if r.quote != nil {
		quote = *r.quote
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := &bind.CallOpts{Context: callCtx}

	round, err := r.reader.LatestRoundData(opts, base, quote)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("%w: reference latestRoundData: %w", domain.ErrFetch, err)
	}

	if round.Answer == nil {
		return domain.PriceQuote{}, fmt.Errorf("%w: reference returned no answer", domain.ErrFetch)
	}

	decimals, err := r.reader.Decimals(opts, base, quote)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("%w: reference decimals: %w", domain.ErrFetch, err)
	}

	q := domain.PriceQuote{
		Pair:     pair,
		Value:    round.Answer,
		Decimals: decimals,
	}
	if round.UpdatedAt != nil && round.UpdatedAt.Sign() > 0 {
		q.SourceTimestamp = time.Unix(round.UpdatedAt.Int64(), 0).UTC()
	}

	r.log.Debug().Str("pair", pair.String()).Str("answer", round.Answer.String()).Msg("🔗 reference answer")

	return q, nil
}
