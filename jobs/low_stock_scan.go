package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/stockroom/stockroom/internal/dashboard"
	jobmetrics "github.com/stockroom/stockroom/internal/jobs"
)

// LowStockSource lists products under a threshold.
type LowStockSource interface {
	LowStockAlerts(ctx context.Context, threshold int) ([]dashboard.LowStockProduct, error)
}

// LowStockScanJob logs a warning for every product under the low-stock threshold.
type LowStockScanJob struct {
	Source  LowStockSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockScanJob initialises the scan handler.
func NewLowStockScanJob(source LowStockSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Source: source, Logger: logger, Metrics: metrics}
}

// Handle executes the scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Source == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskLowStockScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	products, err := j.Source.LowStockAlerts(ctx, payload.Threshold)
	if err != nil {
		logger.Error("low stock scan failed", slog.Any("error", err))
		return err
	}
	for _, p := range products {
		logger.Warn("product below stock threshold",
			slog.Int64("product_id", p.ProductID),
			slog.String("name", p.Name),
			slog.Int("stock_quantity", p.StockQuantity),
			slog.Int("reorder_level", p.ReorderLevel),
		)
	}
	logger.Info("completed low stock scan", slog.Int("products", len(products)))
	return nil
}
