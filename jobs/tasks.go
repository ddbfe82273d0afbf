package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskReconcileTotals compares stored parent totals with item subtotals.
	TaskReconcileTotals = "reconcile:totals"
	// TaskLowStockScan reports products under the low-stock threshold.
	TaskLowStockScan = "inventory:low-stock-scan"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// ReconcileTotalsPayload selects whether drift is repaired or only reported.
type ReconcileTotalsPayload struct {
	Repair bool `json:"repair"`
}

// NewReconcileTotalsTask constructs the reconciliation task.
func NewReconcileTotalsTask(repair bool) (*asynq.Task, error) {
	body, err := json.Marshal(ReconcileTotalsPayload{Repair: repair})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReconcileTotals, body, asynq.Queue(QueueDefault)), nil
}

// LowStockScanPayload overrides the configured threshold when positive.
type LowStockScanPayload struct {
	Threshold int `json:"threshold"`
}

// NewLowStockScanTask constructs the low-stock scan task.
func NewLowStockScanTask(threshold int) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{Threshold: threshold})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload carries the retention in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
