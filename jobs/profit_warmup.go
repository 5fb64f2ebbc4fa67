package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/truemargin/truemargin/internal/jobs"
	"github.com/truemargin/truemargin/internal/profit"
	"github.com/truemargin/truemargin/internal/shared"
	"github.com/truemargin/truemargin/internal/stores"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Refresher recomputes and persists a report for a loaded store.
type Refresher interface {
	RefreshStore(ctx context.Context, store *stores.Store, rng shared.DateRange) (*profit.Report, error)
}

// StoreLister enumerates the stores eligible for warmup.
type StoreLister interface {
	ListActive(ctx context.Context) ([]stores.Store, error)
}

// ProfitWarmupJob pre-computes snapshots for the windows merchants open most:
// yesterday, the last 7 days, and the last 30 days. Today is never warmed
// because open ranges are not cacheable.
type ProfitWarmupJob struct {
	Stores  StoreLister
	Reports Refresher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewProfitWarmupJob wires dependencies for the warmup handler.
func NewProfitWarmupJob(storeRepo StoreLister, reports Refresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *ProfitWarmupJob {
	return &ProfitWarmupJob{
		Stores:  storeRepo,
		Reports: reports,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock overrides the job clock.
func (j *ProfitWarmupJob) WithClock(clock func() time.Time) *ProfitWarmupJob {
	if clock != nil {
		j.clock = clock
	}
	return j
}

// Handle processes warmup tasks. A failing store is logged and skipped; one
// broken storefront must not starve the rest of the fleet.
func (j *ProfitWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("profit warmup: handler not configured")
	}
	var payload ProfitWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskProfitWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting profit warmup")

	active, err := j.Stores.ListActive(ctx)
	if err != nil {
		resultErr = err
		logger.Error("list active stores", slog.Any("error", err))
		return resultErr
	}
	targets := filterStores(active, payload.StoreIDs)
	if len(targets) == 0 {
		logger.Info("no stores to warm")
		return resultErr
	}

	now := j.now()
	windows := []shared.DateRange{
		shared.Yesterday(now),
		shared.LastNDays(now, 7),
		shared.LastNDays(now, 30),
	}

	warmed, skipped := 0, 0
	for i := range targets {
		store := &targets[i]
		if err := j.warmStore(ctx, store, windows); err != nil {
			skipped++
			logger.Error("warm store",
				slog.Int64("store_id", store.ID),
				slog.String("domain", store.Domain),
				slog.Any("error", err))
			continue
		}
		warmed++
	}
	j.metrics().AddSkippedStores(TaskProfitWarmup, skipped)

	logger.Info("completed profit warmup",
		slog.Int("warmed", warmed),
		slog.Int("skipped", skipped),
		slog.Duration("duration", time.Since(now)))
	return resultErr
}

func (j *ProfitWarmupJob) warmStore(ctx context.Context, store *stores.Store, windows []shared.DateRange) error {
	// Bound each store so one slow storefront cannot run the job long.
	storeCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	for _, rng := range windows {
		if _, err := j.Reports.RefreshStore(storeCtx, store, rng); err != nil {
			return err
		}
	}
	return nil
}

func filterStores(active []stores.Store, ids []int64) []stores.Store {
	if len(ids) == 0 {
		return active
	}
	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	out := make([]stores.Store, 0, len(ids))
	for _, store := range active {
		if wanted[store.ID] {
			out = append(out, store)
		}
	}
	return out
}

func (j *ProfitWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskProfitWarmup))
	}
	return slog.Default().With(slog.String("job", TaskProfitWarmup))
}

func (j *ProfitWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ProfitWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
