// Package report serves profit reports, layering the snapshot cache over the
// live computation engine.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/truemargin/truemargin/internal/observability"
	"github.com/truemargin/truemargin/internal/profit"
	"github.com/truemargin/truemargin/internal/shared"
	"github.com/truemargin/truemargin/internal/snapshot"
	"github.com/truemargin/truemargin/internal/stores"
)

// Computer produces a live profit report.
type Computer interface {
	Compute(ctx context.Context, store *stores.Store, rng shared.DateRange) (*profit.Report, error)
}

// Service resolves profit reports, preferring fresh snapshots for closed
// ranges and computing live otherwise.
type Service struct {
	stores    stores.Repository
	engine    Computer
	snapshots snapshot.Store
	metrics   *observability.Metrics
	logger    *slog.Logger
	freshFor  time.Duration
	clock     func() time.Time
}

// NewService wires the report service.
func NewService(storeRepo stores.Repository, engine Computer, snapshots snapshot.Store, metrics *observability.Metrics, logger *slog.Logger, freshFor time.Duration) *Service {
	return &Service{
		stores:    storeRepo,
		engine:    engine,
		snapshots: snapshots,
		metrics:   metrics,
		logger:    logger,
		freshFor:  freshFor,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock overrides the service clock.
func (s *Service) WithClock(clock func() time.Time) *Service {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// Get returns the profit report for the store and range, enforcing that the
// store belongs to accountID. Cacheable ranges are served from a fresh
// snapshot when one exists; everything else computes live. Snapshot write
// failures never fail the request.
func (s *Service) Get(ctx context.Context, accountID, storeID int64, rng shared.DateRange) (*profit.Report, error) {
	store, err := s.authorize(ctx, accountID, storeID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	if !snapshot.Cacheable(rng, now) {
		s.metrics.ObserveCacheOutcome("bypass")
		return s.engine.Compute(ctx, store, rng)
	}

	snap, err := s.snapshots.Get(ctx, storeID, rng.Key())
	switch {
	case err == nil && snap.Fresh(now, s.freshFor):
		var report profit.Report
		if err := json.Unmarshal(snap.Payload, &report); err == nil {
			s.metrics.ObserveCacheOutcome("hit")
			return &report, nil
		}
		// A payload that no longer decodes is recomputed below.
		s.log().Warn("discarding undecodable snapshot",
			slog.Int64("store_id", storeID), slog.String("range", rng.Key()))
		s.metrics.ObserveCacheOutcome("miss")
	case err == nil:
		s.metrics.ObserveCacheOutcome("stale")
	case errors.Is(err, shared.ErrNotFound):
		s.metrics.ObserveCacheOutcome("miss")
	default:
		s.log().Warn("snapshot lookup failed, computing live",
			slog.Int64("store_id", storeID), slog.Any("error", err))
		s.metrics.ObserveCacheOutcome("miss")
	}

	report, err := s.engine.Compute(ctx, store, rng)
	if err != nil {
		return nil, err
	}
	s.persist(ctx, store.ID, rng, report, now)
	return report, nil
}

// Refresh recomputes the report and overwrites any existing snapshot. Used by
// the warmup job and the manual refresh endpoint.
func (s *Service) Refresh(ctx context.Context, accountID, storeID int64, rng shared.DateRange) (*profit.Report, error) {
	store, err := s.stores.Get(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if accountID != 0 && store.AccountID != accountID {
		return nil, shared.ErrAccessDenied
	}
	return s.RefreshStore(ctx, store, rng)
}

// RefreshStore is Refresh with the store already loaded, for job callers that
// iterate the store list themselves.
func (s *Service) RefreshStore(ctx context.Context, store *stores.Store, rng shared.DateRange) (*profit.Report, error) {
	report, err := s.engine.Compute(ctx, store, rng)
	if err != nil {
		return nil, err
	}
	s.persist(ctx, store.ID, rng, report, s.clock())
	return report, nil
}

// Invalidate drops every snapshot for the store, typically after a cost-model
// change.
func (s *Service) Invalidate(ctx context.Context, accountID, storeID int64) error {
	if _, err := s.authorize(ctx, accountID, storeID); err != nil {
		return err
	}
	return s.snapshots.Invalidate(ctx, storeID)
}

// Authorize verifies that the store exists and belongs to accountID. Handlers
// call it before enqueueing background work on the store's behalf.
func (s *Service) Authorize(ctx context.Context, accountID, storeID int64) error {
	_, err := s.authorize(ctx, accountID, storeID)
	return err
}

func (s *Service) authorize(ctx context.Context, accountID, storeID int64) (*stores.Store, error) {
	store, err := s.stores.Get(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if store.AccountID != accountID {
		return nil, shared.ErrAccessDenied
	}
	return store, nil
}

func (s *Service) persist(ctx context.Context, storeID int64, rng shared.DateRange, report *profit.Report, now time.Time) {
	if !snapshot.Cacheable(rng, now) {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		s.log().Error("marshal snapshot", slog.Int64("store_id", storeID), slog.Any("error", err))
		return
	}
	snap := &snapshot.Snapshot{
		StoreID:   storeID,
		RangeKey:  rng.Key(),
		From:      rng.From,
		To:        rng.To,
		Payload:   payload,
		CreatedAt: now,
	}
	if err := s.snapshots.Upsert(ctx, snap); err != nil {
		s.log().Error("persist snapshot",
			slog.Int64("store_id", storeID),
			slog.String("range", rng.Key()),
			slog.Any("error", err))
	}
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
