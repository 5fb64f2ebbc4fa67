package report

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/truemargin/truemargin/internal/profit"
	"github.com/truemargin/truemargin/internal/shared"
	"github.com/truemargin/truemargin/internal/snapshot"
	"github.com/truemargin/truemargin/internal/stores"
)

var testNow = time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC)

type fakeStores struct {
	byID map[int64]*stores.Store
}

func (f *fakeStores) Get(_ context.Context, id int64) (*stores.Store, error) {
	store, ok := f.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return store, nil
}

func (f *fakeStores) ListActive(context.Context) ([]stores.Store, error) {
	out := make([]stores.Store, 0, len(f.byID))
	for _, s := range f.byID {
		out = append(out, *s)
	}
	return out, nil
}

type fakeEngine struct {
	computes int
	err      error
}

func (f *fakeEngine) Compute(_ context.Context, store *stores.Store, rng shared.DateRange) (*profit.Report, error) {
	f.computes++
	if f.err != nil {
		return nil, f.err
	}
	report := &profit.Report{StoreID: store.ID, Revenue: 100, NetProfit: 42}
	report.SetRange(rng)
	return report, nil
}

type fakeSnapshots struct {
	data    map[string]*snapshot.Snapshot
	upserts int
}

func snapKey(storeID int64, rangeKey string) string {
	return fmt.Sprintf("%d:%s", storeID, rangeKey)
}

func (f *fakeSnapshots) Get(_ context.Context, storeID int64, rangeKey string) (*snapshot.Snapshot, error) {
	snap, ok := f.data[snapKey(storeID, rangeKey)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return snap, nil
}

func (f *fakeSnapshots) Upsert(_ context.Context, snap *snapshot.Snapshot) error {
	f.upserts++
	f.data[snapKey(snap.StoreID, snap.RangeKey)] = snap
	return nil
}

func (f *fakeSnapshots) Invalidate(_ context.Context, storeID int64) error {
	for key, snap := range f.data {
		if snap.StoreID == storeID {
			delete(f.data, key)
		}
	}
	return nil
}

func (f *fakeSnapshots) Evict(context.Context, time.Time) (int64, error) { return 0, nil }

func newFixture() (*Service, *fakeEngine, *fakeSnapshots) {
	engine := &fakeEngine{}
	snaps := &fakeSnapshots{data: map[string]*snapshot.Snapshot{}}
	repo := &fakeStores{byID: map[int64]*stores.Store{
		1: {ID: 1, AccountID: 10, Name: "Main", Active: true},
	}}
	svc := NewService(repo, engine, snaps, nil, nil, time.Hour).
		WithClock(func() time.Time { return testNow })
	return svc, engine, snaps
}

func closedRange(t *testing.T) shared.DateRange {
	t.Helper()
	rng, err := shared.ParseDateRange("2025-03-01", "2025-03-31")
	require.NoError(t, err)
	return rng
}

func TestGetDeniesForeignStore(t *testing.T) {
	svc, engine, _ := newFixture()

	_, err := svc.Get(context.Background(), 99, 1, closedRange(t))
	require.ErrorIs(t, err, shared.ErrAccessDenied)
	require.Zero(t, engine.computes)
}

func TestGetUnknownStore(t *testing.T) {
	svc, _, _ := newFixture()

	_, err := svc.Get(context.Background(), 10, 404, closedRange(t))
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetBypassesCacheForOpenRange(t *testing.T) {
	svc, engine, snaps := newFixture()
	rng, err := shared.ParseDateRange("2025-04-10", "2025-04-15")
	require.NoError(t, err)

	report, err := svc.Get(context.Background(), 10, 1, rng)
	require.NoError(t, err)
	require.Equal(t, 1, engine.computes)
	require.Zero(t, snaps.upserts, "open ranges must never be persisted")
	require.Equal(t, 42.0, report.NetProfit)

	// A second request recomputes; nothing was cached.
	_, err = svc.Get(context.Background(), 10, 1, rng)
	require.NoError(t, err)
	require.Equal(t, 2, engine.computes)
}

func TestGetCachesClosedRange(t *testing.T) {
	svc, engine, snaps := newFixture()
	rng := closedRange(t)

	first, err := svc.Get(context.Background(), 10, 1, rng)
	require.NoError(t, err)
	require.Equal(t, 1, engine.computes)
	require.Equal(t, 1, snaps.upserts)

	second, err := svc.Get(context.Background(), 10, 1, rng)
	require.NoError(t, err)
	require.Equal(t, 1, engine.computes, "fresh snapshot must be served without recompute")
	require.Equal(t, first.NetProfit, second.NetProfit)
	require.Equal(t, first.From, second.From)
}

func TestGetRecomputesStaleSnapshot(t *testing.T) {
	svc, engine, snaps := newFixture()
	rng := closedRange(t)

	_, err := svc.Get(context.Background(), 10, 1, rng)
	require.NoError(t, err)

	snaps.data[snapKey(1, rng.Key())].CreatedAt = testNow.Add(-2 * time.Hour)

	_, err = svc.Get(context.Background(), 10, 1, rng)
	require.NoError(t, err)
	require.Equal(t, 2, engine.computes)
	require.Equal(t, 2, snaps.upserts)
	require.Equal(t, testNow, snaps.data[snapKey(1, rng.Key())].CreatedAt)
}

func TestRefreshOverwritesFreshSnapshot(t *testing.T) {
	svc, engine, snaps := newFixture()
	rng := closedRange(t)

	_, err := svc.Get(context.Background(), 10, 1, rng)
	require.NoError(t, err)
	require.Equal(t, 1, engine.computes)

	_, err = svc.Refresh(context.Background(), 10, 1, rng)
	require.NoError(t, err)
	require.Equal(t, 2, engine.computes)
	require.Equal(t, 2, snaps.upserts)
}

func TestRefreshChecksOwnership(t *testing.T) {
	svc, _, _ := newFixture()

	_, err := svc.Refresh(context.Background(), 99, 1, closedRange(t))
	require.ErrorIs(t, err, shared.ErrAccessDenied)
}

func TestAuthorize(t *testing.T) {
	svc, _, _ := newFixture()

	require.NoError(t, svc.Authorize(context.Background(), 10, 1))
	require.ErrorIs(t, svc.Authorize(context.Background(), 99, 1), shared.ErrAccessDenied)
	require.ErrorIs(t, svc.Authorize(context.Background(), 10, 404), shared.ErrNotFound)
}

func TestInvalidateDropsSnapshots(t *testing.T) {
	svc, engine, snaps := newFixture()
	rng := closedRange(t)

	_, err := svc.Get(context.Background(), 10, 1, rng)
	require.NoError(t, err)
	require.Len(t, snaps.data, 1)

	require.NoError(t, svc.Invalidate(context.Background(), 10, 1))
	require.Empty(t, snaps.data)

	_, err = svc.Get(context.Background(), 10, 1, rng)
	require.NoError(t, err)
	require.Equal(t, 2, engine.computes)
}

func TestGetComputeFailurePropagates(t *testing.T) {
	svc, engine, snaps := newFixture()
	engine.err = shared.ErrUpstream

	_, err := svc.Get(context.Background(), 10, 1, closedRange(t))
	require.ErrorIs(t, err, shared.ErrUpstream)
	require.Zero(t, snaps.upserts)
}
