package chains

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	"github.com/sljivkov/feedsync/contract"
	"github.com/sljivkov/feedsync/domain"
)

// RegistryContract is the subset of the feed registry binding used by Registry
type RegistryContract interface {
	LatestRoundData(opts *bind.CallOpts, base, quote common.Address) (contract.RoundData, error)
	Decimals(opts *bind.CallOpts, base, quote common.Address) (uint8, error)
	GetFeed(opts *bind.CallOpts, base, quote common.Address) (common.Address, error)
	GetProposedFeed(opts *bind.CallOpts, base, quote common.Address) (common.Address, error)
	TypeAndVersion(opts *bind.CallOpts) (string, error)
	ProposeFeed(opts *bind.TransactOpts, base, quote, aggregator common.Address) (*types.Transaction, error)
	ConfirmFeed(opts *bind.TransactOpts, base, quote, aggregator common.Address) (*types.Transaction, error)
}

// Registry implements domain.RegistryClient on top of the feed registry contract
type Registry struct {
	contract  RegistryContract
	submitter domain.TransactionSubmitter
	timeout   time.Duration
	log       zerolog.Logger
}

var _ domain.RegistryClient = (*Registry)(nil)

// NewRegistry creates a registry client. timeout bounds every read.
func NewRegistry(c RegistryContract, submitter domain.TransactionSubmitter, timeout time.Duration, logger zerolog.Logger) *Registry {
	return &Registry{
		contract:  c,
		submitter: submitter,
		timeout:   timeout,
		log:       logger,
	}
}

func (r *Registry) callOpts(ctx context.Context) (*bind.CallOpts, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)

	return &bind.CallOpts{Context: ctx}, cancel
}

// LatestPrice reads the registry's current answer. A revert means no feed is
// confirmed and surfaces as domain.ErrFeedNotFound.
func (r *Registry) LatestPrice(ctx context.Context, pair domain.TradingPair) (domain.PriceQuote, error) {
	opts, cancel := r.callOpts(ctx)
	defer cancel()

	base, quote := pair.Base.Address(), pair.Quote.Address()

	round, err := r.contract.LatestRoundData(opts, base, quote)
	if err != nil {
		return domain.PriceQuote{}, readError("latestRoundData", err)
	}

	if round.Answer == nil {
		return domain.PriceQuote{}, fmt.Errorf("%w: latestRoundData returned no answer", domain.ErrRead)
	}

	decimals, err := r.contract.Decimals(opts, base, quote)
	if err != nil {
		return domain.PriceQuote{}, readError("decimals", err)
	}

	q := domain.PriceQuote{
		Pair:     pair,
		Value:    round.Answer,
		Decimals: decimals,
	}
	if round.UpdatedAt != nil && round.UpdatedAt.Sign() > 0 {
		q.SourceTimestamp = time.Unix(round.UpdatedAt.Int64(), 0).UTC()
	}

	return q, nil
}

// Registration reads the confirmed and proposed feeds for the pair
func (r *Registry) Registration(ctx context.Context, pair domain.TradingPair) (domain.FeedRegistration, error) {
	confirmed, ok, err := r.confirmedFeed(ctx, pair)
	if err != nil {
		return domain.FeedRegistration{}, err
	}

	if ok {
		return domain.FeedRegistration{State: domain.Confirmed, Address: confirmed}, nil
	}

	proposed, ok, err := r.ProposedAggregator(ctx, pair)
	if err != nil {
		return domain.FeedRegistration{}, err
	}

	if ok {
		return domain.FeedRegistration{State: domain.Proposed, Address: proposed}, nil
	}

	return domain.FeedRegistration{State: domain.Unregistered}, nil
}

// ProposedAggregator returns the proposed but unconfirmed aggregator for the pair
func (r *Registry) ProposedAggregator(ctx context.Context, pair domain.TradingPair) (common.Address, bool, error) {
	opts, cancel := r.callOpts(ctx)
	defer cancel()

	addr, err := r.contract.GetProposedFeed(opts, pair.Base.Address(), pair.Quote.Address())
	if err != nil {
		if isRevert(err) {
			return common.Address{}, false, nil
		}

		return common.Address{}, false, readError("getProposedFeed", err)
	}

	return addr, addr != (common.Address{}), nil
}

// ProposeFeed proposes aggregator for the pair unless it is already the proposed feed
func (r *Registry) ProposeFeed(ctx context.Context, pair domain.TradingPair, aggregator common.Address) error {
	proposed, ok, err := r.ProposedAggregator(ctx, pair)
	if err != nil {
		return err
	}

	if ok && proposed == aggregator {
		r.log.Info().Str("pair", pair.String()).Str("aggregator", aggregator.Hex()).Msg("feed was already proposed")

		return nil
	}

	r.log.Info().Str("pair", pair.String()).Str("aggregator", aggregator.Hex()).Msg("proposing feed")

	_, err = r.submitter.Transact(ctx, "proposeFeed", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return r.contract.ProposeFeed(opts, pair.Base.Address(), pair.Quote.Address(), aggregator)
	})

	return err
}

// ConfirmFeed confirms a proposed aggregator unless it is already the confirmed feed
func (r *Registry) ConfirmFeed(ctx context.Context, pair domain.TradingPair, aggregator common.Address) error {
	confirmed, ok, err := r.confirmedFeed(ctx, pair)
	if err != nil {
		return err
	}

	if ok && confirmed == aggregator {
		r.log.Info().Str("pair", pair.String()).Str("aggregator", aggregator.Hex()).Msg("feed was already confirmed")

		return nil
	}

	r.log.Info().Str("pair", pair.String()).Str("aggregator", aggregator.Hex()).Msg("confirming feed")

	_, err = r.submitter.Transact(ctx, "confirmFeed", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return r.contract.ConfirmFeed(opts, pair.Base.Address(), pair.Quote.Address(), aggregator)
	})

	return err
}

// TypeAndVersion reads the registry's version string, for diagnostics only
func (r *Registry) TypeAndVersion(ctx context.Context) (string, error) {
	opts, cancel := r.callOpts(ctx)
	defer cancel()

	v, err := r.contract.TypeAndVersion(opts)
	if err != nil {
		return "", readError("typeAndVersion", err)
	}

	return v, nil
}

func (r *Registry) confirmedFeed(ctx context.Context, pair domain.TradingPair) (common.Address, bool, error) {
	opts, cancel := r.callOpts(ctx)
	defer cancel()

	addr, err := r.contract.GetFeed(opts, pair.Base.Address(), pair.Quote.Address())
	if err != nil {
		if isRevert(err) {
			return common.Address{}, false, nil
		}

		return common.Address{}, false, readError("getFeed", err)
	}

	return addr, addr != (common.Address{}), nil
}

// readError classifies a failed call: reverts prove the feed is missing, anything
// else is a transport or decoding failure.
func readError(method string, err error) error {
	if isRevert(err) {
		return fmt.Errorf("%w: %s: %w", domain.ErrFeedNotFound, method, err)
	}

	return fmt.Errorf("%w: %s: %w", domain.ErrRead, method, err)
}

// revertErrorCode is the JSON-RPC code geth and most clients use for reverted calls
const revertErrorCode = 3

// isRevert reports whether a call failed because the contract reverted. Other
// node errors (rate limits, missing state) carry error data too and must not match.
func isRevert(err error) bool {
	if errors.Is(err, vm.ErrExecutionReverted) {
		return true
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == revertErrorCode {
		return true
	}

	return strings.Contains(err.Error(), "execution reverted")
}
