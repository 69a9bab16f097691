package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	ErrNoQuote   = errors.New("no quote data")
	ErrNoHistory = errors.New("no price history")
)

// Quote is the snapshot cached under quote_{ticker}. Volumes are kept
// pre-formatted with thousands separators.
type Quote struct {
	CompanyName     string   `json:"company_name"`
	LatestPrice     float64  `json:"latest_price"`
	PreviousClose   float64  `json:"previous_close"`
	High52w         float64  `json:"52w_high"`
	Low52w          float64  `json:"52w_low"`
	MarketVolume    string   `json:"market_volume"`
	MarketVolumeAvg string   `json:"market_volume_avg"`
	PETrailing      *float64 `json:"pe_trailing,omitempty"`
	PEForward       *float64 `json:"pe_forward,omitempty"`
	DivYield        *float64 `json:"div_yield,omitempty"`
}

type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// QuoteProvider is the upstream market data source.
type QuoteProvider interface {
	Quote(ctx context.Context, ticker string) (*Quote, error)
	History(ctx context.Context, ticker string, lookback time.Duration) ([]Candle, error)
}

// QuoteService looks quotes up cache-aside through the repository.
type QuoteService struct {
	repo     *Repository
	provider QuoteProvider
}

func NewQuoteService(repo *Repository, provider QuoteProvider) *QuoteService {
	return &QuoteService{repo: repo, provider: provider}
}

// Get returns ErrNoQuote when the provider has nothing for ticker. Cache
// failures are logged and fall through to the provider.
func (s *QuoteService) Get(ctx context.Context, ticker string) (*Quote, error) {
	q, err := s.repo.QuoteCache(ctx, ticker)
	if err != nil {
		slog.Warn("quote cache read failed", "ticker", ticker, "err", err)
	}
	if q != nil {
		return q, nil
	}

	q, err = s.provider.Quote(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", ticker, err)
	}
	if err := s.repo.SetQuoteCache(ctx, ticker, q); err != nil {
		slog.Warn("quote cache write failed", "ticker", ticker, "err", err)
	}
	return q, nil
}

func (s *QuoteService) History(ctx context.Context, ticker string, lookback time.Duration) ([]Candle, error) {
	candles, err := s.provider.History(ctx, ticker, lookback)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", ticker, err)
	}
	if len(candles) == 0 {
		return nil, ErrNoHistory
	}
	return candles, nil
}
