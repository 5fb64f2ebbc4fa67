package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/truemargin/truemargin/internal/jobs"
)

// Evicter removes snapshots past the retention window.
type Evicter interface {
	Evict(ctx context.Context, now time.Time) (int64, error)
}

// SnapshotSweepJob deletes snapshots whose creation time fell out of the
// retention window.
type SnapshotSweepJob struct {
	Snapshots Evicter
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewSnapshotSweepJob wires dependencies for the sweep handler.
func NewSnapshotSweepJob(snapshots Evicter, logger *slog.Logger, metrics *jobmetrics.Metrics) *SnapshotSweepJob {
	return &SnapshotSweepJob{
		Snapshots: snapshots,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes sweep tasks.
func (j *SnapshotSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Snapshots == nil {
		return errors.New("snapshot sweep: handler not configured")
	}

	tracker := j.metrics().Track(TaskSnapshotSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	evicted, err := j.Snapshots.Evict(ctx, j.now())
	if err != nil {
		resultErr = err
		j.logger().Error("evict snapshots", slog.Any("error", err))
		return resultErr
	}
	j.logger().Info("completed snapshot sweep", slog.Int64("evicted", evicted))
	return resultErr
}

func (j *SnapshotSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSnapshotSweep))
	}
	return slog.Default().With(slog.String("job", TaskSnapshotSweep))
}

func (j *SnapshotSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SnapshotSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
