// Package fxrate resolves the EUR to USD conversion rate with a Redis-backed
// daily cache. The cache is an explicit object with an injected clock so
// nothing in the package holds process-wide mutable state.
package fxrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKey = "fxrate:eur_usd"

// Service fetches and caches the EUR→USD rate.
type Service struct {
	redis      *redis.Client
	httpClient *http.Client
	url        string
	fallback   float64
	ttl        time.Duration
	clock      func() time.Time
	logger     *slog.Logger
}

// Options configures a Service.
type Options struct {
	Redis    *redis.Client
	URL      string
	Fallback float64
	TTL      time.Duration
	Logger   *slog.Logger
	Clock    func() time.Time
}

// NewService wires the rate service. TTL defaults to 24h.
func NewService(opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		redis:      opts.Redis,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		url:        opts.URL,
		fallback:   opts.Fallback,
		ttl:        ttl,
		clock:      clock,
		logger:     opts.Logger,
	}
}

type cachedRate struct {
	Rate      float64   `json:"rate"`
	FetchedAt time.Time `json:"fetched_at"`
}

// EURToUSD returns the current conversion rate. A cached value younger than
// the TTL wins; otherwise the upstream is queried and the result cached. When
// the upstream is unreachable the configured fallback applies, uncached, so
// the next call retries.
func (s *Service) EURToUSD(ctx context.Context) float64 {
	now := s.clock()

	if cached, ok := s.cached(ctx, now); ok {
		return cached
	}

	rate, err := s.fetch(ctx)
	if err != nil {
		s.log().Warn("exchange rate fetch failed, using fallback",
			slog.Float64("fallback", s.fallback), slog.Any("error", err))
		return s.fallback
	}

	s.store(ctx, cachedRate{Rate: rate, FetchedAt: now})
	return rate
}

func (s *Service) cached(ctx context.Context, now time.Time) (float64, bool) {
	if s.redis == nil {
		return 0, false
	}
	payload, err := s.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log().Warn("exchange rate cache read failed", slog.Any("error", err))
		}
		return 0, false
	}
	var entry cachedRate
	if err := json.Unmarshal(payload, &entry); err != nil {
		return 0, false
	}
	if entry.Rate <= 0 || now.Sub(entry.FetchedAt) >= s.ttl {
		return 0, false
	}
	return entry.Rate, true
}

func (s *Service) store(ctx context.Context, entry cachedRate) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, cacheKey, payload, s.ttl).Err(); err != nil {
		s.log().Warn("exchange rate cache write failed", slog.Any("error", err))
	}
}

func (s *Service) fetch(ctx context.Context) (float64, error) {
	if s.url == "" {
		return 0, errors.New("fxrate: no endpoint configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("fxrate: upstream returned %d", resp.StatusCode)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, err
	}
	rate, ok := payload.Rates["USD"]
	if !ok || rate <= 0 {
		return 0, errors.New("fxrate: response missing USD rate")
	}
	return rate, nil
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
