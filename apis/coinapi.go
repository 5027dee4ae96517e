// Package apis provides external price feed integrations
package apis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/sljivkov/feedsync/domain"
)

// DefaultCoinAPIURL is the CoinAPI exchange rate endpoint
const DefaultCoinAPIURL = "https://rest.coinapi.io/v1/exchangerate"

var (
	// MaxNumOfFailingRequests trips the breaker together with FailingRatio
	MaxNumOfFailingRequests = 5
	// FailingRatio is the share of failed requests that opens the breaker
	FailingRatio = 0.6
)

// CoinAPIConfig configures the CoinAPI client
type CoinAPIConfig struct {
	URL     string
	Key     string
	RPS     float64 // requests per second, 0 disables limiting
	Timeout time.Duration
	Logger  zerolog.Logger
}

// CoinAPI fetches exchange rates from the CoinAPI REST API
type CoinAPI struct {
	url     string
	key     string
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// ExchangeRate is a decoded exchangerate response
type ExchangeRate struct {
	Base  string
	Quote string
	Rate  decimal.Decimal
	Time  time.Time
}

// NewCoinAPI creates a new CoinAPI client instance
func NewCoinAPI(cfg CoinAPIConfig) *CoinAPI {
	url := cfg.URL
	if url == "" {
		url = DefaultCoinAPIURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}

	c := &CoinAPI{
		url:     strings.TrimRight(url, "/"),
		key:     cfg.Key,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
		log:     cfg.Logger,
	}
	c.cb = c.newCircuitBreaker()

	return c
}

func (c *CoinAPI) newCircuitBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "coinapi",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return int(counts.Requests) >= MaxNumOfFailingRequests && ratio >= FailingRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				c.log.Warn().Str("breaker", name).Msg("coinapi seems down, stop allowing requests")
			}
			if from == gobreaker.StateOpen && to == gobreaker.StateHalfOpen {
				c.log.Info().Str("breaker", name).Msg("checking coinapi status")
			}
			if from == gobreaker.StateHalfOpen && to == gobreaker.StateClosed {
				c.log.Info().Str("breaker", name).Msg("coinapi seems ok, restart allowing requests")
			}
		},
	})
}

// Rate fetches the current base/quote exchange rate. Every failure wraps domain.ErrFetch.
func (c *CoinAPI) Rate(ctx context.Context, base, quote string) (ExchangeRate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return ExchangeRate{}, fmt.Errorf("%w: rate limiter: %w", domain.ErrFetch, err)
	}

	res, err := c.cb.Execute(func() (interface{}, error) {
		return c.getRate(ctx, base, quote)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return ExchangeRate{}, fmt.Errorf("%w: coinapi %s/%s: %w", domain.ErrFetch, base, quote, err)
		}

		return ExchangeRate{}, err
	}

	return res.(ExchangeRate), nil
}

func (c *CoinAPI) getRate(ctx context.Context, base, quote string) (ExchangeRate, error) {
	fullURL := fmt.Sprintf("%s/%s/%s", c.url, strings.ToUpper(base), strings.ToUpper(quote))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return ExchangeRate{}, fmt.Errorf("%w: failed to create request: %w", domain.ErrFetch, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-CoinAPI-Key", c.key)

	resp, err := c.client.Do(req)
	if err != nil {
		return ExchangeRate{}, fmt.Errorf("%w: failed to fetch rate: %w", domain.ErrFetch, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ExchangeRate{}, fmt.Errorf("%w: API returned non-200 status: %d", domain.ErrFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ExchangeRate{}, fmt.Errorf("%w: failed to read response: %w", domain.ErrFetch, err)
	}

	return parseExchangeRate(body, base, quote)
}

func parseExchangeRate(body []byte, base, quote string) (ExchangeRate, error) {
	if !gjson.ValidBytes(body) {
		return ExchangeRate{}, fmt.Errorf("%w: response is not valid JSON", domain.ErrFetch)
	}

	res := gjson.GetBytes(body, "rate")
	if res.Type != gjson.Number {
		return ExchangeRate{}, fmt.Errorf("%w: response has no numeric rate", domain.ErrFetch)
	}

	// parse the raw token so no precision is lost through float64
	value, err := decimal.NewFromString(res.Raw)
	if err != nil {
		return ExchangeRate{}, fmt.Errorf("%w: invalid rate %q: %w", domain.ErrFetch, res.Raw, err)
	}

	if !value.IsPositive() {
		return ExchangeRate{}, fmt.Errorf("%w: non-positive rate %s", domain.ErrFetch, value)
	}

	out := ExchangeRate{Base: base, Quote: quote, Rate: value}

	if ts := gjson.GetBytes(body, "time"); ts.Exists() {
		if t, err := time.Parse(time.RFC3339Nano, ts.String()); err == nil {
			out.Time = t.UTC()
		}
	}

	return out, nil
}

// ToFixedPoint converts rate to an integer scaled by 10^decimals, rounding up
func ToFixedPoint(rate float64, decimals uint8) *big.Int {
	return toFixedPoint(decimal.NewFromFloat(rate), decimals)
}

func toFixedPoint(rate decimal.Decimal, decimals uint8) *big.Int {
	return rate.Shift(int32(decimals)).Ceil().BigInt()
}

// CoinAPISource prices one pair through CoinAPI
type CoinAPISource struct {
	client   *CoinAPI
	base     string
	quote    string
	decimals uint8
}

var _ domain.PriceSource = (*CoinAPISource)(nil)

// Source returns a PriceSource quoting base/quote asset ids at the given decimals
func (c *CoinAPI) Source(base, quote string, decimals uint8) *CoinAPISource {
	return &CoinAPISource{
		client:   c,
		base:     base,
		quote:    quote,
		decimals: decimals,
	}
}

func (s *CoinAPISource) Name() string {
	return "coinapi"
}

// Fetch returns the ceiling fixed-point value of the current rate
func (s *CoinAPISource) Fetch(ctx context.Context, pair domain.TradingPair) (domain.PriceQuote, error) {
	r, err := s.client.Rate(ctx, s.base, s.quote)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	value := toFixedPoint(r.Rate, s.decimals)

	s.client.log.Debug().
		Str("pair", pair.String()).
		Str("rate", r.Rate.String()).
		Str("value", value.String()).
		Msg("✅ fetched rate from CoinAPI")

	return domain.PriceQuote{
		Pair:            pair,
		Value:           value,
		Decimals:        s.decimals,
		SourceTimestamp: r.Time,
	}, nil
}
