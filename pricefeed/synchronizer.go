// Package pricefeed reconciles the on-chain feed registry with the configured price sources
package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sljivkov/feedsync/domain"
	"github.com/sljivkov/feedsync/metrics"
)

// DefaultConcurrency bounds concurrent source fetches
const DefaultConcurrency = 4

// Feed is one configured pair and the strategy that prices it
type Feed struct {
	Pair     domain.TradingPair
	Decimals uint8
	Source   domain.PriceSource

	// Aggregator is an already deployed aggregator proposed instead of deploying a
	// new one while the pair is unregistered
	Aggregator *common.Address
}

// Option configures a Synchronizer
type Option func(*Synchronizer)

// WithConcurrency sets how many sources are fetched at once. Chain writes are
// always sequential.
func WithConcurrency(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Synchronizer) {
		s.metrics = m
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Synchronizer) {
		s.log = l
	}
}

// Synchronizer drives every configured feed through fetch, compare and
// provision, update or skip
type Synchronizer struct {
	registry    domain.RegistryClient
	provisioner domain.AggregatorProvisioner
	feeds       []Feed
	concurrency int
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// New creates a synchronizer over an immutable copy of feeds
func New(registry domain.RegistryClient, provisioner domain.AggregatorProvisioner, feeds []Feed, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		registry:    registry,
		provisioner: provisioner,
		feeds:       append([]Feed(nil), feeds...),
		concurrency: DefaultConcurrency,
		log:         zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Feeds returns the configured feeds
func (s *Synchronizer) Feeds() []Feed {
	return append([]Feed(nil), s.feeds...)
}

type fetchResult struct {
	quote domain.PriceQuote
	err   error
}

// Run performs one pass over all feeds. Pair failures are reported in the
// returned Report and never abort the pass.
func (s *Synchronizer) Run(ctx context.Context) Report {
	report := Report{
		RunID:   uuid.New(),
		Started: time.Now().UTC(),
	}

	log := s.log.With().Str("run_id", report.RunID.String()).Logger()
	log.Info().Int("pairs", len(s.feeds)).Msg("🚀 starting synchronization run")

	fetched := s.prefetch(ctx)

	report.Outcomes = make([]domain.SyncOutcome, 0, len(s.feeds))

	for i, feed := range s.feeds {
		var outcome domain.SyncOutcome
		if err := ctx.Err(); err != nil {
			outcome = domain.Failed(feed.Pair, fmt.Errorf("run cancelled: %w", err))
		} else {
			outcome = s.apply(ctx, feed, fetched[i].quote, fetched[i].err)
		}

		logOutcome(log, feed, outcome)
		report.Outcomes = append(report.Outcomes, outcome)
	}

	report.Duration = time.Since(report.Started)
	s.metrics.Record(report.Outcomes, report.Duration)

	counts := report.Counts()
	log.Info().
		Int("updated", counts[domain.OutcomeUpdated]).
		Int("provisioned", counts[domain.OutcomeProvisioned]).
		Int("skipped", counts[domain.OutcomeSkipped]).
		Int("failed", counts[domain.OutcomeFailed]).
		Dur("took", report.Duration).
		Msg("✅ synchronization run finished")

	return report
}

// SyncPair runs the full workflow for a single feed
func (s *Synchronizer) SyncPair(ctx context.Context, feed Feed) domain.SyncOutcome {
	quote, err := feed.Source.Fetch(ctx, feed.Pair)

	return s.apply(ctx, feed, quote, err)
}

// prefetch queries all sources with bounded concurrency. results[i] belongs to s.feeds[i].
func (s *Synchronizer) prefetch(ctx context.Context) []fetchResult {
	results := make([]fetchResult, len(s.feeds))

	g := &errgroup.Group{}
	g.SetLimit(s.concurrency)

	for i, feed := range s.feeds {
		i, feed := i, feed
		g.Go(func() error {
			q, err := feed.Source.Fetch(ctx, feed.Pair)
			results[i] = fetchResult{quote: q, err: err}

			return nil
		})
	}

	_ = g.Wait()

	return results
}

func (s *Synchronizer) apply(ctx context.Context, feed Feed, quote domain.PriceQuote, fetchErr error) domain.SyncOutcome {
	pair := feed.Pair

	if fetchErr != nil {
		if !errors.Is(fetchErr, domain.ErrFetch) {
			fetchErr = fmt.Errorf("%w: %s: %w", domain.ErrFetch, feed.Source.Name(), fetchErr)
		}

		return domain.Skipped(pair, domain.ReasonSourceUnavailable, fetchErr)
	}

	if quote.Value == nil {
		return domain.Skipped(pair, domain.ReasonSourceUnavailable, fmt.Errorf("%w: %s returned no value", domain.ErrFetch, feed.Source.Name()))
	}

	if quote.Decimals != feed.Decimals {
		return domain.Failed(pair, fmt.Errorf("%w: %s quotes %d decimals, feed uses %d",
			domain.ErrDecimalsMismatch, feed.Source.Name(), quote.Decimals, feed.Decimals))
	}

	reg, err := s.registry.Registration(ctx, pair)
	if err != nil {
		return domain.Failed(pair, err)
	}

	switch reg.State {
	case domain.Confirmed:
		return s.update(ctx, feed, reg.Address, quote)
	case domain.Proposed:
		return s.confirm(ctx, feed, reg.Address, nil)
	default:
		return s.provision(ctx, feed, quote)
	}
}

func (s *Synchronizer) update(ctx context.Context, feed Feed, aggregator common.Address, quote domain.PriceQuote) domain.SyncOutcome {
	current, err := s.registry.LatestPrice(ctx, feed.Pair)
	if err != nil {
		return domain.Failed(feed.Pair, err)
	}

	if current.Decimals != feed.Decimals {
		return domain.Failed(feed.Pair, fmt.Errorf("%w: registry reports %d decimals, feed uses %d",
			domain.ErrDecimalsMismatch, current.Decimals, feed.Decimals))
	}

	if current.Value.Cmp(quote.Value) == 0 {
		return domain.Skipped(feed.Pair, domain.ReasonUpToDate, nil)
	}

	handle := domain.AggregatorHandle{
		Address:     aggregator,
		Decimals:    feed.Decimals,
		Description: feed.Pair.Description,
	}

	if err := s.provisioner.UpdatePrice(ctx, handle, quote.Value); err != nil {
		return domain.Failed(feed.Pair, err)
	}

	return domain.Updated(feed.Pair, current.Value, quote.Value)
}

// provision deploys (or adopts the configured) aggregator, then proposes and
// confirms it
func (s *Synchronizer) provision(ctx context.Context, feed Feed, quote domain.PriceQuote) domain.SyncOutcome {
	var (
		handle domain.AggregatorHandle
		seed   *big.Int
	)

	if feed.Aggregator != nil {
		h, err := s.provisioner.Inspect(ctx, *feed.Aggregator)
		if err != nil {
			return domain.Failed(feed.Pair, err)
		}

		if h.Decimals != feed.Decimals {
			return domain.Failed(feed.Pair, fmt.Errorf("%w: aggregator %s has %d decimals, feed uses %d",
				domain.ErrDecimalsMismatch, h.Address.Hex(), h.Decimals, feed.Decimals))
		}

		handle = h
	} else {
		h, err := s.provisioner.Deploy(ctx, feed.Pair.String(), feed.Decimals, quote.Value)
		if err != nil {
			return domain.Failed(feed.Pair, err)
		}

		handle = h
		seed = quote.Value
	}

	if err := s.registry.ProposeFeed(ctx, feed.Pair, handle.Address); err != nil {
		return domain.Failed(feed.Pair, fmt.Errorf("aggregator %s deployed but not proposed: %w", handle.Address.Hex(), err))
	}

	return s.confirm(ctx, feed, handle.Address, seed)
}

func (s *Synchronizer) confirm(ctx context.Context, feed Feed, aggregator common.Address, seed *big.Int) domain.SyncOutcome {
	if err := s.registry.ConfirmFeed(ctx, feed.Pair, aggregator); err != nil {
		return domain.Failed(feed.Pair, fmt.Errorf("aggregator %s proposed but not confirmed: %w", aggregator.Hex(), err))
	}

	return domain.Provisioned(feed.Pair, aggregator, seed)
}

func logOutcome(log zerolog.Logger, feed Feed, o domain.SyncOutcome) {
	var ev *zerolog.Event

	switch o.Kind {
	case domain.OutcomeFailed:
		ev = log.Error().Err(o.Err)
	case domain.OutcomeSkipped:
		if o.Err != nil {
			ev = log.Warn().Err(o.Err)
		} else {
			ev = log.Info()
		}
	default:
		ev = log.Info()
	}

	ev = ev.Str("pair", o.Pair.String()).
		Str("source", feed.Source.Name()).
		Str("outcome", string(o.Kind))

	switch o.Kind {
	case domain.OutcomeSkipped:
		ev = ev.Str("reason", o.Reason)
	case domain.OutcomeUpdated:
		ev = ev.Str("old", o.Old.String()).Str("new", o.New.String())
	case domain.OutcomeProvisioned:
		ev = ev.Str("address", o.Address.Hex())
		if o.New != nil {
			ev = ev.Str("seed", o.New.String())
		}
	}

	ev.Msg(outcomeMessage(o.Kind))
}

func outcomeMessage(kind domain.OutcomeKind) string {
	switch kind {
	case domain.OutcomeUpdated:
		return "💹 price updated"
	case domain.OutcomeProvisioned:
		return "🆕 feed provisioned"
	case domain.OutcomeFailed:
		return "❌ pair failed"
	default:
		return "⏭️ pair skipped"
	}
}
