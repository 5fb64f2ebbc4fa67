package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/truemargin/truemargin/internal/shared"
)

const (
	// QueueDefault is the queue all background jobs run on.
	QueueDefault = "default"
	// TaskProfitWarmup pre-computes snapshots for the common report windows.
	TaskProfitWarmup = "profit:warmup"
	// TaskProfitRefresh recomputes one store and range on demand.
	TaskProfitRefresh = "profit:refresh"
	// TaskSnapshotSweep evicts snapshots past the retention window.
	TaskSnapshotSweep = "snapshot:sweep"
)

// ProfitWarmupPayload scopes a warmup run. An empty StoreIDs warms every
// active store.
type ProfitWarmupPayload struct {
	StoreIDs []int64 `json:"store_ids,omitempty"`
}

// ProfitRefreshPayload identifies the single report to recompute.
type ProfitRefreshPayload struct {
	StoreID int64  `json:"store_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// Range parses the payload's date bounds.
func (p ProfitRefreshPayload) Range() (shared.DateRange, error) {
	return shared.ParseDateRange(p.From, p.To)
}

// NewProfitWarmupTask constructs a warmup task.
func NewProfitWarmupTask(payload ProfitWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProfitWarmup, data), nil
}

// NewProfitRefreshTask constructs a single-report refresh task.
func NewProfitRefreshTask(payload ProfitRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProfitRefresh, data), nil
}

// NewSnapshotSweepTask constructs an eviction task.
func NewSnapshotSweepTask() *asynq.Task {
	return asynq.NewTask(TaskSnapshotSweep, nil)
}
