package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/truemargin/truemargin/internal/jobs"
	"github.com/truemargin/truemargin/internal/stores"
)

// StoreGetter loads a single store by id.
type StoreGetter interface {
	Get(ctx context.Context, id int64) (*stores.Store, error)
}

// ProfitRefreshJob recomputes one report on demand, typically enqueued from
// the refresh endpoint.
type ProfitRefreshJob struct {
	Stores  StoreGetter
	Reports Refresher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewProfitRefreshJob wires dependencies for the refresh handler.
func NewProfitRefreshJob(storeRepo StoreGetter, reports Refresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *ProfitRefreshJob {
	return &ProfitRefreshJob{Stores: storeRepo, Reports: reports, Logger: logger, Metrics: metrics}
}

// Handle processes single-report refresh tasks. A malformed payload is never
// retried; everything else retries under the queue's policy.
func (j *ProfitRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("profit refresh: handler not configured")
	}
	var payload ProfitRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	rng, err := payload.Range()
	if err != nil {
		j.logger().Warn("dropping refresh task with bad range",
			slog.String("from", payload.From), slog.String("to", payload.To))
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskProfitRefresh)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	store, err := j.Stores.Get(ctx, payload.StoreID)
	if err != nil {
		resultErr = err
		j.logger().Error("load store", slog.Int64("store_id", payload.StoreID), slog.Any("error", err))
		return resultErr
	}
	if _, err := j.Reports.RefreshStore(ctx, store, rng); err != nil {
		resultErr = err
		j.logger().Error("refresh report",
			slog.Int64("store_id", store.ID),
			slog.String("range", rng.Key()),
			slog.Any("error", err))
		return resultErr
	}
	j.logger().Info("refreshed report",
		slog.Int64("store_id", store.ID), slog.String("range", rng.Key()))
	return resultErr
}

func (j *ProfitRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskProfitRefresh))
	}
	return slog.Default().With(slog.String("job", TaskProfitRefresh))
}

func (j *ProfitRefreshJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
