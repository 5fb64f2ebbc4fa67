package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/truemargin/truemargin/internal/profit"
	"github.com/truemargin/truemargin/internal/shared"
	"github.com/truemargin/truemargin/internal/stores"
)

type fakeStoreLister struct {
	stores []stores.Store
	err    error
}

func (f *fakeStoreLister) ListActive(context.Context) ([]stores.Store, error) {
	return f.stores, f.err
}

func (f *fakeStoreLister) Get(_ context.Context, id int64) (*stores.Store, error) {
	for i := range f.stores {
		if f.stores[i].ID == id {
			return &f.stores[i], nil
		}
	}
	return nil, shared.ErrNotFound
}

type fakeRefresher struct {
	refreshed map[int64][]string
	failFor   int64
}

func (f *fakeRefresher) RefreshStore(_ context.Context, store *stores.Store, rng shared.DateRange) (*profit.Report, error) {
	if store.ID == f.failFor {
		return nil, errors.New("storefront unreachable")
	}
	if f.refreshed == nil {
		f.refreshed = map[int64][]string{}
	}
	f.refreshed[store.ID] = append(f.refreshed[store.ID], rng.Key())
	return &profit.Report{StoreID: store.ID}, nil
}

var warmupNow = time.Date(2025, 4, 15, 6, 0, 0, 0, time.UTC)

func newWarmupJob(lister *fakeStoreLister, refresher *fakeRefresher) *ProfitWarmupJob {
	return NewProfitWarmupJob(lister, refresher, nil, nil).
		WithClock(func() time.Time { return warmupNow })
}

func TestWarmupRefreshesStandardWindows(t *testing.T) {
	lister := &fakeStoreLister{stores: []stores.Store{{ID: 1, Active: true}}}
	refresher := &fakeRefresher{}
	job := newWarmupJob(lister, refresher)

	task, err := NewProfitWarmupTask(ProfitWarmupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Equal(t, []string{
		"2025-04-14_2025-04-14",
		"2025-04-08_2025-04-14",
		"2025-03-16_2025-04-14",
	}, refresher.refreshed[1], "windows must end yesterday, never today")
}

func TestWarmupIsolatesStoreFailures(t *testing.T) {
	lister := &fakeStoreLister{stores: []stores.Store{{ID: 1}, {ID: 2}, {ID: 3}}}
	refresher := &fakeRefresher{failFor: 2}
	job := newWarmupJob(lister, refresher)

	task, err := NewProfitWarmupTask(ProfitWarmupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task), "one broken store must not fail the job")

	require.Len(t, refresher.refreshed[1], 3)
	require.Len(t, refresher.refreshed[3], 3)
	require.NotContains(t, refresher.refreshed, int64(2))
}

func TestWarmupHonorsStoreFilter(t *testing.T) {
	lister := &fakeStoreLister{stores: []stores.Store{{ID: 1}, {ID: 2}, {ID: 3}}}
	refresher := &fakeRefresher{}
	job := newWarmupJob(lister, refresher)

	task, err := NewProfitWarmupTask(ProfitWarmupPayload{StoreIDs: []int64{3}})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, refresher.refreshed, 1)
	require.Len(t, refresher.refreshed[3], 3)
}

func TestWarmupFailsWhenStoreListUnavailable(t *testing.T) {
	lister := &fakeStoreLister{err: errors.New("db down")}
	job := newWarmupJob(lister, &fakeRefresher{})

	task, err := NewProfitWarmupTask(ProfitWarmupPayload{})
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}

func TestRefreshJobRecomputesOneReport(t *testing.T) {
	lister := &fakeStoreLister{stores: []stores.Store{{ID: 5}}}
	refresher := &fakeRefresher{}
	job := NewProfitRefreshJob(lister, refresher, nil, nil)

	task, err := NewProfitRefreshTask(ProfitRefreshPayload{StoreID: 5, From: "2025-03-01", To: "2025-03-31"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []string{"2025-03-01_2025-03-31"}, refresher.refreshed[5])
}

func TestRefreshJobSkipsRetryOnBadRange(t *testing.T) {
	job := NewProfitRefreshJob(&fakeStoreLister{}, &fakeRefresher{}, nil, nil)

	task, err := NewProfitRefreshTask(ProfitRefreshPayload{StoreID: 5, From: "yesterday", To: "today"})
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}
